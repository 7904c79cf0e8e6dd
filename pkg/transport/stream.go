package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/via/viaems-protocol/pkg/log"
	"github.com/via/viaems-protocol/pkg/protocol"
)

// DefaultReadBufferSize is the per-read chunk size. It matches the
// bulk transfer size the device uses on USB.
const DefaultReadBufferSize = 16384

// MaxLogFrameDataSize is the maximum chunk size to include in log
// events. Larger chunks are truncated in the event to bound memory.
const MaxLogFrameDataSize = 4096

// ErrStreamClosed indicates a send on a closed stream.
var ErrStreamClosed = errors.New("stream is closed")

// StreamConfig configures a Stream.
type StreamConfig struct {
	// ReadBufferSize is the chunk size for reads (default 16 KB).
	ReadBufferSize int

	// Logger receives transport events. Nil disables logging.
	Logger log.Logger

	// OnError is called on the reader goroutine for dropped inbound
	// messages and for the error that ends the stream. Nil disables
	// the callback; errors are still logged.
	OnError func(err error)
}

// Stream pumps a full-duplex byte stream into a protocol engine. The
// reader goroutine accumulates arriving chunks and feeds the engine one
// message at a time; writes go out under a mutex so concurrent request
// submissions never interleave bytes.
type Stream struct {
	rwc    io.ReadWriteCloser
	proto  *protocol.Protocol
	config StreamConfig
	connID string

	writeMu   sync.Mutex
	closeOnce sync.Once
	started   atomic.Bool
	closed    chan struct{}
	done      chan struct{}

	// buf carries the unconsumed tail between reads.
	buf []byte
}

// NewStream creates a stream over rwc and injects itself as the
// protocol's sender. Call Start to begin pumping.
func NewStream(rwc io.ReadWriteCloser, proto *protocol.Protocol, config StreamConfig) *Stream {
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = DefaultReadBufferSize
	}

	s := &Stream{
		rwc:    rwc,
		proto:  proto,
		config: config,
		connID: uuid.NewString(),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	proto.SetSender(s)
	return s
}

// ConnID returns the stream's connection identifier, as used in log
// events.
func (s *Stream) ConnID() string {
	return s.connID
}

// Start launches the reader goroutine.
func (s *Stream) Start() {
	if s.started.CompareAndSwap(false, true) {
		go s.readLoop()
	}
}

// Send writes one encoded message to the stream.
// Thread-safe: can be called from multiple goroutines.
func (s *Stream) Send(data []byte) error {
	select {
	case <-s.closed:
		return ErrStreamClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.rwc.Write(data); err != nil {
		return fmt.Errorf("stream write failed: %w", err)
	}

	s.logFrame(data, log.DirectionOut)
	return nil
}

// Close tears the stream down and waits for the reader goroutine to
// exit. The protocol instance is left usable for another transport.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.rwc.Close()
		if s.started.Load() {
			<-s.done
		}
	})
	return err
}

// Done is closed when the reader goroutine has exited, whether by Close
// or by a stream error.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// readLoop reads chunks and drives protocol ingestion. Transfers are
// not aligned to message boundaries: a chunk may end mid-message (kept
// for the next read) or carry several messages (all dispatched).
func (s *Stream) readLoop() {
	defer close(s.done)

	chunk := make([]byte, s.config.ReadBufferSize)
	for {
		n, err := s.rwc.Read(chunk)
		if n > 0 {
			s.logFrame(chunk[:n], log.DirectionIn)
			s.ingest(chunk[:n])
		}
		if err != nil {
			select {
			case <-s.closed:
			default:
				if !errors.Is(err, io.EOF) {
					s.reportError(fmt.Errorf("stream read failed: %w", err))
				}
				s.logState("connected", "disconnected")
			}
			return
		}
	}
}

// ingest appends the chunk to the carry buffer and dispatches every
// complete message in it. A message the engine rejects is dropped and
// reported; a buffer the codec cannot make sense of at all is discarded
// whole, so the stream resynchronizes on the next transfer.
func (s *Stream) ingest(chunk []byte) {
	s.buf = append(s.buf, chunk...)

	data := s.buf
	for len(data) > 0 {
		consumed, err := s.proto.Ingest(data)
		if errors.Is(err, protocol.ErrIncomplete) {
			break
		}
		if consumed == 0 {
			s.reportError(err)
			data = nil
			break
		}
		if err != nil {
			s.reportError(err)
		}
		data = data[consumed:]
	}

	s.buf = append(s.buf[:0], data...)
}

func (s *Stream) reportError(err error) {
	if err == nil {
		return
	}
	if s.config.Logger != nil {
		s.config.Logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: s.connID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerTransport,
			Category:     log.CategoryError,
			Error:        &log.ErrorEvent{Message: err.Error(), Context: "read"},
		})
	}
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}

func (s *Stream) logFrame(data []byte, direction log.Direction) {
	if s.config.Logger == nil {
		return
	}

	// Copy out of the reused read buffer; the logger may queue events.
	size := len(data)
	truncated := false
	if size > MaxLogFrameDataSize {
		data = data[:MaxLogFrameDataSize]
		truncated = true
	}
	frameData := make([]byte, len(data))
	copy(frameData, data)

	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      size,
			Data:      frameData,
			Truncated: truncated,
		},
	})
}

func (s *Stream) logState(oldState, newState string) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		State:        &log.StateEvent{OldState: oldState, NewState: newState},
	})
}

// Compile-time interface satisfaction check.
var _ protocol.Sender = (*Stream)(nil)
