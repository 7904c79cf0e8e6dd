package feed

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/via/viaems-protocol/pkg/wire"
)

func TestKeySetApply(t *testing.T) {
	t.Run("FreshKeys", func(t *testing.T) {
		var s KeySet
		require.NoError(t, s.Apply([]string{"rpm", "map"}))
		assert.Equal(t, 2, s.Len())
		assert.Equal(t, FieldKey{Name: "rpm"}, s.At(0))
		assert.Equal(t, FieldKey{Name: "map"}, s.At(1))
	})

	t.Run("RetainsLearnedKindOnSameName", func(t *testing.T) {
		var s KeySet
		require.NoError(t, s.Apply([]string{"rpm", "map"}))
		s.LearnKind(0, FieldUint32)
		s.LearnKind(1, FieldFloat)

		require.NoError(t, s.Apply([]string{"rpm", "map"}))
		assert.Equal(t, FieldUint32, s.At(0).Kind)
		assert.Equal(t, FieldFloat, s.At(1).Kind)
	})

	t.Run("RenamedKeyForgetsKind", func(t *testing.T) {
		var s KeySet
		require.NoError(t, s.Apply([]string{"rpm", "map"}))
		s.LearnKind(1, FieldFloat)

		require.NoError(t, s.Apply([]string{"rpm", "ego"}))
		assert.Equal(t, FieldKey{Name: "ego", Kind: FieldUnknown}, s.At(1))
	})

	t.Run("ShorterDescriptionTruncates", func(t *testing.T) {
		var s KeySet
		require.NoError(t, s.Apply([]string{"rpm", "map", "ego"}))
		require.NoError(t, s.Apply([]string{"rpm"}))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("TooManyKeysRejectedWithoutStateChange", func(t *testing.T) {
		var s KeySet
		require.NoError(t, s.Apply([]string{"rpm", "map"}))
		s.LearnKind(0, FieldUint32)

		oversized := make([]string, MaxKeys+1)
		for i := range oversized {
			oversized[i] = fmt.Sprintf("field%d", i)
		}
		assert.ErrorIs(t, s.Apply(oversized), ErrTooManyKeys)

		assert.Equal(t, 2, s.Len())
		assert.Equal(t, FieldKey{Name: "rpm", Kind: FieldUint32}, s.At(0))
	})

	t.Run("ExactlyMaxKeysAccepted", func(t *testing.T) {
		var s KeySet
		names := make([]string, MaxKeys)
		for i := range names {
			names[i] = fmt.Sprintf("field%d", i)
		}
		require.NoError(t, s.Apply(names))
		assert.Equal(t, MaxKeys, s.Len())
	})
}

func TestKeySetKeysIsSnapshot(t *testing.T) {
	var s KeySet
	require.NoError(t, s.Apply([]string{"rpm"}))

	snap := s.Keys()
	s.LearnKind(0, FieldFloat)
	assert.Equal(t, FieldUnknown, snap[0].Kind)
	assert.Equal(t, FieldFloat, s.At(0).Kind)
}

func TestParseValue(t *testing.T) {
	t.Run("Uint", func(t *testing.T) {
		raw, err := wire.Marshal(uint64(3500))
		require.NoError(t, err)

		v, err := ParseValue(raw)
		require.NoError(t, err)
		assert.Equal(t, Uint32Field(3500), v)
	})

	t.Run("Float32", func(t *testing.T) {
		raw, err := wire.Marshal(float32(0.85))
		require.NoError(t, err)

		v, err := ParseValue(raw)
		require.NoError(t, err)
		assert.Equal(t, FieldFloat, v.Kind)
		assert.InDelta(t, 0.85, v.Float, 1e-6)
	})

	t.Run("RejectsOthers", func(t *testing.T) {
		for _, bad := range []any{float64(1.5), "text", true, int64(-3), []any{}} {
			raw, err := wire.Marshal(bad)
			require.NoError(t, err)

			_, err = ParseValue(raw)
			assert.ErrorIs(t, err, ErrBadValue, "%T must be rejected", bad)
		}
	})
}

func TestFieldValueDisplay(t *testing.T) {
	assert.Equal(t, "3500", Uint32Field(3500).String())
	assert.Equal(t, "0.85", FloatField(0.85).String())
	assert.Equal(t, "?", FieldValue{}.String())

	assert.Equal(t, float64(3500), Uint32Field(3500).Float64())
	assert.InDelta(t, 0.85, FloatField(0.85).Float64(), 1e-6)
}
