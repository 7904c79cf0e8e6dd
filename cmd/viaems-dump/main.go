// viaems-dump connects to an engine-management device (or a forked
// simulator), watches the telemetry feed, dumps the configuration
// schema, and reads a few values back, optionally recording telemetry
// to SQLite and protocol events to a CBOR log.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/via/viaems-protocol/pkg/feed"
	"github.com/via/viaems-protocol/pkg/inspect"
	"github.com/via/viaems-protocol/pkg/log"
	"github.com/via/viaems-protocol/pkg/protocol"
	"github.com/via/viaems-protocol/pkg/record"
	"github.com/via/viaems-protocol/pkg/structure"
	"github.com/via/viaems-protocol/pkg/transport"
	"github.com/via/viaems-protocol/pkg/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "viaems-dump: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file")
	devicePath := flag.String("device", "", "serial device path")
	simPath := flag.String("sim", "", "simulator binary to fork")
	duration := flag.Duration("duration", 0, "how long to watch the feed")
	recordDB := flag.String("record", "", "record feed samples to this SQLite database")
	logFile := flag.String("log", "", "capture protocol events to this file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Current)
		return nil
	}

	config := DefaultConfig()
	if *configPath != "" {
		var err error
		if config, err = LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *devicePath != "" {
		config.Device = *devicePath
	}
	if *simPath != "" {
		config.Sim = *simPath
	}
	if *duration > 0 {
		config.Duration = *duration
	}
	if *recordDB != "" {
		config.RecordDB = *recordDB
	}
	if *logFile != "" {
		config.LogFile = *logFile
	}

	p := protocol.New()
	p.SetRequestTimeout(config.Timeout)

	streamConfig := transport.StreamConfig{}
	if config.LogFile != "" {
		logger, err := log.NewFileLogger(config.LogFile)
		if err != nil {
			return err
		}
		defer logger.Close()
		streamConfig.Logger = logger
	}

	// Feed accounting, and optionally recording.
	var samples atomic.Uint64
	var session *record.Session
	if config.RecordDB != "" {
		store, err := record.Open(config.RecordDB)
		if err != nil {
			return err
		}
		defer store.Close()

		session, err = store.BeginSession(config.Note)
		if err != nil {
			return err
		}
		fmt.Printf("recording session %s\n", session.ID)
	}
	p.SetFeedHandler(func(keys []feed.FieldKey, values []feed.FieldValue) {
		samples.Add(1)
		if session != nil {
			if err := session.Record(keys, values); err != nil {
				fmt.Fprintf(os.Stderr, "record failed: %v\n", err)
			}
		}
	})

	// Attach the transport: a forked simulator, or the serial device.
	if config.Sim != "" {
		sim, err := transport.StartSim(config.Sim, nil, p, streamConfig)
		if err != nil {
			return err
		}
		defer sim.Stop()
	} else {
		tty, err := os.OpenFile(config.Device, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("failed to open device %q: %w", config.Device, err)
		}
		stream := transport.NewStream(tty, p, streamConfig)
		stream.Start()
		defer stream.Close()
	}

	ctx := context.Background()
	formatter := inspect.NewFormatter()
	formatter.ShowPaths = true

	root, err := p.GetStructure(ctx)
	if err != nil {
		return fmt.Errorf("get structure failed: %w", err)
	}
	fmt.Print(formatter.FormatTree(root))

	// Read every plain scalar leaf back, like a config dump would.
	for _, leaf := range root.Leaves() {
		switch leaf.ValueKind {
		case structure.ValueUint32, structure.ValueFloat,
			structure.ValueBool, structure.ValueString:
			value, err := p.Get(ctx, leaf)
			if err != nil {
				fmt.Printf("%s: get failed: %v\n", leaf.Path, err)
				continue
			}
			fmt.Printf("%s = %s\n", leaf.Path, value)
		}
	}

	start := time.Now()
	before := samples.Load()
	time.Sleep(config.Duration)
	elapsed := time.Since(start).Seconds()
	count := samples.Load() - before
	if elapsed > 0 {
		fmt.Printf("%d feed samples in %.1fs (%.0f/s)\n", count, elapsed, float64(count)/elapsed)
	}

	return nil
}
