package inspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/via/viaems-protocol/pkg/feed"
	"github.com/via/viaems-protocol/pkg/structure"
	"github.com/via/viaems-protocol/pkg/wire"
)

func buildTree(t *testing.T, v any) *structure.Node {
	t.Helper()
	data, err := wire.Marshal(v)
	require.NoError(t, err)
	root, err := structure.Build(data)
	require.NoError(t, err)
	return root
}

func TestFormatTree(t *testing.T) {
	root := buildTree(t, map[string]any{
		"sensors": []any{
			map[string]any{"_type": "sensor", "description": "MAP"},
		},
		"fueling": map[string]any{
			"algorithm": map[string]any{
				"_type":   "string",
				"choices": []string{"alpha-n", "speed-density"},
			},
		},
	})

	out := NewFormatter().FormatTree(root)

	assert.Contains(t, out, "sensors:")
	assert.Contains(t, out, "0: (sensor) MAP")
	assert.Contains(t, out, "algorithm: (string) [alpha-n,speed-density]")
}

func TestFormatTreeShowPaths(t *testing.T) {
	root := buildTree(t, map[string]any{
		"sensors": []any{
			map[string]any{"_type": "sensor"},
		},
	})

	f := NewFormatter()
	f.ShowPaths = true
	out := f.FormatTree(root)

	assert.Contains(t, out, "<sensors/0>")
}

func TestFormatLeafWithoutDescription(t *testing.T) {
	root := buildTree(t, map[string]any{"x": map[string]any{"_type": "uint32"}})
	out := NewFormatter().FormatTree(root)
	assert.Contains(t, out, "x: (uint32)\n")
}

func TestFormatSample(t *testing.T) {
	keys := []feed.FieldKey{
		{Name: "rpm", Kind: feed.FieldUint32},
		{Name: "map", Kind: feed.FieldFloat},
	}
	values := []feed.FieldValue{
		feed.Uint32Field(3500),
		feed.FloatField(0.85),
	}

	out := NewFormatter().FormatSample(keys, values)
	assert.Equal(t, "rpm=3500 map=0.85", out)
}
