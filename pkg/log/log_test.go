package log

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(connID string, dir Direction, cat Category) Event {
	e := Event{
		Timestamp:    time.Unix(1700000000, 0).UTC(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        LayerProtocol,
		Category:     cat,
	}
	switch cat {
	case CategoryMessage:
		e.Message = &MessageEvent{Type: "request", Method: "get", ID: 7}
	case CategoryError:
		e.Error = &ErrorEvent{Message: "boom", Context: "ingest"}
	}
	return e
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.log")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	logger.Log(sampleEvent("conn-1", DirectionOut, CategoryMessage))
	logger.Log(sampleEvent("conn-1", DirectionIn, CategoryError))
	require.NoError(t, logger.Close())

	// Log after close is silently ignored
	logger.Log(sampleEvent("conn-1", DirectionIn, CategoryMessage))
	require.NoError(t, logger.Close())

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	events, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "conn-1", events[0].ConnectionID)
	require.NotNil(t, events[0].Message)
	assert.Equal(t, "get", events[0].Message.Method)
	assert.Equal(t, uint32(7), events[0].Message.ID)

	require.NotNil(t, events[1].Error)
	assert.Equal(t, "boom", events[1].Error.Message)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), events[1].Timestamp.UTC())
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.log")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	logger.Log(sampleEvent("conn-1", DirectionOut, CategoryMessage))
	logger.Log(sampleEvent("conn-2", DirectionIn, CategoryMessage))
	logger.Log(sampleEvent("conn-1", DirectionIn, CategoryError))
	require.NoError(t, logger.Close())

	t.Run("ByConnection", func(t *testing.T) {
		r, err := NewFilteredReader(path, Filter{ConnectionID: "conn-2"})
		require.NoError(t, err)
		defer r.Close()

		events, err := r.ReadAll()
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "conn-2", events[0].ConnectionID)
	})

	t.Run("ByCategory", func(t *testing.T) {
		cat := CategoryError
		r, err := NewFilteredReader(path, Filter{Category: &cat})
		require.NoError(t, err)
		defer r.Close()

		events, err := r.ReadAll()
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.NotNil(t, events[0].Error)
	})

	t.Run("ByDirection", func(t *testing.T) {
		dir := DirectionOut
		r, err := NewFilteredReader(path, Filter{Direction: &dir})
		require.NoError(t, err)
		defer r.Close()

		events, err := r.ReadAll()
		require.NoError(t, err)
		require.Len(t, events, 1)
	})
}

func TestReaderNextEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.log")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	require.NoError(t, logger.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMultiLogger(t *testing.T) {
	var a, b collectLogger
	multi := NewMultiLogger(&a, &b)

	multi.Log(sampleEvent("conn-1", DirectionIn, CategoryMessage))

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

type collectLogger struct {
	events []Event
}

func (c *collectLogger) Log(e Event) {
	c.events = append(c.events, e)
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	sl := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	adapter := NewSlogAdapter(sl)
	adapter.Log(sampleEvent("conn-1", DirectionOut, CategoryMessage))
	adapter.Log(sampleEvent("conn-1", DirectionIn, CategoryError))

	out := buf.String()
	assert.Contains(t, out, "conn_id=conn-1")
	assert.Contains(t, out, "method=get")
	assert.Contains(t, out, "error_msg=boom")
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "in", DirectionIn.String())
	assert.Equal(t, "out", DirectionOut.String())
	assert.Equal(t, "transport", LayerTransport.String())
	assert.Equal(t, "protocol", LayerProtocol.String())
	assert.Equal(t, "message", CategoryMessage.String())
	assert.Equal(t, "state", CategoryState.String())
	assert.Equal(t, "error", CategoryError.String())
}

func TestNoopLogger(t *testing.T) {
	// Must not panic and must satisfy the interface as a zero value.
	var l Logger = NoopLogger{}
	l.Log(Event{})
}
