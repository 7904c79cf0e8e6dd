package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/via/viaems-protocol/pkg/feed"
	"github.com/via/viaems-protocol/pkg/wire"
)

// captureSender records every frame handed to the sender.
type captureSender struct {
	frames [][]byte
	err    error
}

func (s *captureSender) Send(data []byte) error {
	if s.err != nil {
		return s.err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.frames = append(s.frames, buf)
	return nil
}

func (s *captureSender) lastRequest(t *testing.T) *wire.Request {
	t.Helper()
	require.NotEmpty(t, s.frames)
	req, err := wire.DecodeRequest(s.frames[len(s.frames)-1])
	require.NoError(t, err)
	return req
}

func ingestAll(t *testing.T, p *Protocol, data []byte) {
	t.Helper()
	for len(data) > 0 {
		n, err := p.Ingest(data)
		require.NoError(t, err)
		require.Positive(t, n)
		data = data[n:]
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := wire.Marshal(v)
	require.NoError(t, err)
	return data
}

// S1: description followed by a matching feed delivers one callback.
func TestDescriptionThenFeed(t *testing.T) {
	p := New()

	var gotKeys []feed.FieldKey
	var gotValues []feed.FieldValue
	calls := 0
	p.SetFeedHandler(func(keys []feed.FieldKey, values []feed.FieldValue) {
		calls++
		gotKeys = keys
		gotValues = values
	})

	ingestAll(t, p, mustMarshal(t, map[string]any{
		"type": "description",
		"keys": []string{"rpm", "map"},
	}))
	ingestAll(t, p, mustMarshal(t, map[string]any{
		"type":   "feed",
		"values": []any{uint64(3500), float32(0.85)},
	}))

	require.Equal(t, 1, calls)
	require.Len(t, gotKeys, 2)
	assert.Equal(t, feed.FieldKey{Name: "rpm", Kind: feed.FieldUint32}, gotKeys[0])
	assert.Equal(t, feed.FieldKey{Name: "map", Kind: feed.FieldFloat}, gotKeys[1])
	require.Len(t, gotValues, 2)
	assert.Equal(t, feed.Uint32Field(3500), gotValues[0])
	assert.InDelta(t, 0.85, gotValues[1].Float, 1e-6)
}

// S2: a feed whose width does not match is dropped without side effects.
func TestFeedWidthMismatch(t *testing.T) {
	p := New()

	calls := 0
	p.SetFeedHandler(func([]feed.FieldKey, []feed.FieldValue) { calls++ })

	ingestAll(t, p, mustMarshal(t, map[string]any{
		"type": "description",
		"keys": []string{"rpm", "map"},
	}))
	ingestAll(t, p, mustMarshal(t, map[string]any{
		"type":   "feed",
		"values": []any{uint64(1), uint64(2), uint64(3)},
	}))

	assert.Zero(t, calls)
	keys := p.Keys()
	require.Len(t, keys, 2)
	assert.Equal(t, feed.FieldUnknown, keys[0].Kind, "kinds must not be learned from a dropped feed")

	// A matching feed afterwards still works.
	ingestAll(t, p, mustMarshal(t, map[string]any{
		"type":   "feed",
		"values": []any{uint64(3500), float32(0.85)},
	}))
	assert.Equal(t, 1, calls)
}

func TestFeedBadScalarDropped(t *testing.T) {
	p := New()

	calls := 0
	p.SetFeedHandler(func([]feed.FieldKey, []feed.FieldValue) { calls++ })

	ingestAll(t, p, mustMarshal(t, map[string]any{
		"type": "description",
		"keys": []string{"rpm"},
	}))
	ingestAll(t, p, mustMarshal(t, map[string]any{
		"type":   "feed",
		"values": []any{"not a scalar"},
	}))

	assert.Zero(t, calls)
}

func TestKindLearnedLazily(t *testing.T) {
	p := New()

	ingestAll(t, p, mustMarshal(t, map[string]any{
		"type": "description",
		"keys": []string{"rpm"},
	}))

	// Between the description and the first feed, the kind is unknown.
	keys := p.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, feed.FieldUnknown, keys[0].Kind)

	ingestAll(t, p, mustMarshal(t, map[string]any{
		"type":   "feed",
		"values": []any{uint64(900)},
	}))
	assert.Equal(t, feed.FieldUint32, p.Keys()[0].Kind)

	// A superseding description with the same name keeps the kind.
	ingestAll(t, p, mustMarshal(t, map[string]any{
		"type": "description",
		"keys": []string{"rpm"},
	}))
	assert.Equal(t, feed.FieldUint32, p.Keys()[0].Kind)
}

func TestOversizedDescriptionRejected(t *testing.T) {
	p := New()

	ingestAll(t, p, mustMarshal(t, map[string]any{
		"type": "description",
		"keys": []string{"rpm", "map"},
	}))

	oversized := make([]string, feed.MaxKeys+1)
	for i := range oversized {
		oversized[i] = "field"
	}
	data := mustMarshal(t, map[string]any{"type": "description", "keys": oversized})
	n, err := p.Ingest(data)
	assert.ErrorIs(t, err, feed.ErrTooManyKeys)
	assert.Equal(t, len(data), n, "the message is still consumed")

	assert.Len(t, p.Keys(), 2, "prior state must be unchanged")
}

func TestIngestFraming(t *testing.T) {
	t.Run("IncompleteBuffer", func(t *testing.T) {
		p := New()
		data := mustMarshal(t, map[string]any{"type": "description", "keys": []string{"rpm"}})

		n, err := p.Ingest(data[:len(data)-1])
		assert.ErrorIs(t, err, ErrIncomplete)
		assert.Zero(t, n)

		// Retrying with the full buffer succeeds.
		n, err = p.Ingest(data)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
	})

	t.Run("UnknownTypeConsumed", func(t *testing.T) {
		p := New()
		data := mustMarshal(t, map[string]any{"type": "bogus"})

		n, err := p.Ingest(data)
		assert.ErrorIs(t, err, ErrUnknownMessage)
		assert.Equal(t, len(data), n)
	})

	t.Run("NonStringTypeConsumed", func(t *testing.T) {
		p := New()
		data := mustMarshal(t, map[string]any{"type": 9})

		n, err := p.Ingest(data)
		assert.ErrorIs(t, err, ErrUnknownMessage)
		assert.Equal(t, len(data), n)
	})

	t.Run("NonMapRejected", func(t *testing.T) {
		p := New()
		data := mustMarshal(t, []int{1, 2})

		n, err := p.Ingest(data)
		assert.ErrorIs(t, err, ErrUnknownMessage)
		assert.Equal(t, len(data), n)
	})

	t.Run("BackToBackMessages", func(t *testing.T) {
		p := New()
		calls := 0
		p.SetFeedHandler(func([]feed.FieldKey, []feed.FieldValue) { calls++ })

		buf := append(
			mustMarshal(t, map[string]any{"type": "description", "keys": []string{"rpm"}}),
			mustMarshal(t, map[string]any{"type": "feed", "values": []any{uint64(1200)}})...,
		)
		ingestAll(t, p, buf)
		assert.Equal(t, 1, calls)
	})
}

func TestIngestAfterClose(t *testing.T) {
	p := New()
	p.Close()

	_, err := p.Ingest(mustMarshal(t, map[string]any{"type": "feed", "values": []any{}}))
	assert.ErrorIs(t, err, ErrProtocolClosed)
}
