// viaems-sim runs a simulated engine-management device on stdio.
//
// It is the counterpart of the -sim flag on viaems-dump and
// viaems-ctl: those tools fork this binary and speak the protocol over
// its stdin/stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/via/viaems-protocol/internal/simdevice"
	"github.com/via/viaems-protocol/pkg/version"
)

// stdio joins os.Stdin/os.Stdout into one io.ReadWriter.
type stdio struct{}

func (stdio) Read(b []byte) (int, error)  { return os.Stdin.Read(b) }
func (stdio) Write(b []byte) (int, error) { return os.Stdout.Write(b) }

var _ io.ReadWriter = stdio{}

func main() {
	interval := flag.Duration("interval", 20*time.Millisecond, "telemetry feed interval")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Current)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	device := simdevice.New(stdio{}, simdevice.Config{FeedInterval: *interval})
	if err := device.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "viaems-sim: %v\n", err)
		os.Exit(1)
	}
}
