package transport

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/via/viaems-protocol/pkg/protocol"
)

// Sim runs the device simulator as a child process and couples its
// stdio to a Stream, standing in for the USB transport during
// development and testing.
type Sim struct {
	cmd    *exec.Cmd
	stream *Stream
}

// simPipe joins the child's stdout (our read side) and stdin (our
// write side) into one io.ReadWriteCloser.
type simPipe struct {
	stdout io.ReadCloser
	stdin  io.WriteCloser
}

func (p simPipe) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p simPipe) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p simPipe) Close() error {
	// Closing stdin signals the child to exit; stdout drains after.
	err := p.stdin.Close()
	if cerr := p.stdout.Close(); err == nil {
		err = cerr
	}
	return err
}

// StartSim launches the simulator binary at path with the given
// arguments and starts pumping its stdio into proto.
func StartSim(path string, args []string, proto *protocol.Protocol, config StreamConfig) (*Sim, error) {
	cmd := exec.Command(path, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open simulator stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open simulator stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start simulator %q: %w", path, err)
	}

	stream := NewStream(simPipe{stdout: stdout, stdin: stdin}, proto, config)
	stream.Start()

	return &Sim{cmd: cmd, stream: stream}, nil
}

// Stream returns the underlying stream.
func (s *Sim) Stream() *Stream {
	return s.stream
}

// Stop closes the stream and waits for the child to exit, killing it
// after a grace period.
func (s *Sim) Stop() error {
	closeErr := s.stream.Close()

	waitCh := make(chan error, 1)
	go func() { waitCh <- s.cmd.Wait() }()

	select {
	case err := <-waitCh:
		if closeErr != nil {
			return closeErr
		}
		return err
	case <-time.After(2 * time.Second):
		_ = s.cmd.Process.Kill()
		<-waitCh
		return fmt.Errorf("simulator did not exit; killed")
	}
}
