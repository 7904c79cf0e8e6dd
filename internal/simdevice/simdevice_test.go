package simdevice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/via/viaems-protocol/pkg/structure"
	"github.com/via/viaems-protocol/pkg/wire"
)

func TestResolve(t *testing.T) {
	d := New(nil, Config{})

	leaf, ok := d.resolve([]any{"ignition", "rev_limit"})
	require.True(t, ok)
	assert.Equal(t, uint32(8000), leaf.Value)

	leaf, ok = d.resolve([]any{"sensors", uint64(1)})
	require.True(t, ok)
	assert.Equal(t, "CLT", leaf.Description)

	_, ok = d.resolve([]any{"sensors", uint64(9)})
	assert.False(t, ok)

	_, ok = d.resolve([]any{"missing"})
	assert.False(t, ok)

	// A non-leaf path resolves to no leaf.
	_, ok = d.resolve([]any{"fueling"})
	assert.False(t, ok)
}

func TestSchemaDocBuilds(t *testing.T) {
	doc := schemaDoc(DefaultTree())

	data, err := wire.Marshal(doc)
	require.NoError(t, err)

	root, err := structure.Build(data)
	require.NoError(t, err)

	algo := structure.FindString(root, "fueling/algorithm")
	require.NotNil(t, algo)
	require.True(t, algo.IsLeaf())
	assert.Equal(t, structure.ValueString, algo.ValueKind)
	assert.Equal(t, []string{"alpha-n", "speed-density"}, algo.Choices)

	sensor := structure.FindString(root, "sensors/0")
	require.NotNil(t, sensor)
	assert.Equal(t, structure.ValueSensor, sensor.ValueKind)
	assert.Equal(t, "MAP", sensor.Description)
}
