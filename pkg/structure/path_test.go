package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathExtend(t *testing.T) {
	root := Path{}
	a := root.Extend(NameElement("sensors"))
	b := a.Extend(IndexElement(0))

	assert.Empty(t, root, "root path must stay empty")
	assert.Equal(t, "sensors", a.String())
	assert.Equal(t, "sensors/0", b.String())

	// Extending must copy: mutating a further extension may not alias
	// into the parent.
	c := a.Extend(IndexElement(1))
	assert.Equal(t, "sensors/0", b.String())
	assert.Equal(t, "sensors/1", c.String())
}

func TestPathEqual(t *testing.T) {
	a := Path{NameElement("config"), IndexElement(2)}
	b := Path{NameElement("config"), IndexElement(2)}
	c := Path{NameElement("config"), IndexElement(3)}
	d := Path{NameElement("config")}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.True(t, Path{}.Equal(Path{}))
}

func TestPathWireRoundTrip(t *testing.T) {
	p := Path{NameElement("sensors"), IndexElement(0), NameElement("name")}

	elems := p.Wire()
	require.Equal(t, []any{"sensors", uint32(0), "name"}, elems)

	// Simulate what the elements look like after a CBOR round trip,
	// where unsigned integers decode as uint64.
	back, err := PathFromWire([]any{"sensors", uint64(0), "name"})
	require.NoError(t, err)
	assert.True(t, p.Equal(back))
}

func TestPathWireEmpty(t *testing.T) {
	assert.Equal(t, []any{}, Path{}.Wire())

	back, err := PathFromWire(nil)
	require.NoError(t, err)
	assert.Empty(t, back)
}

func TestPathFromWireRejectsBadElements(t *testing.T) {
	_, err := PathFromWire([]any{1.5})
	assert.Error(t, err)

	_, err = PathFromWire([]any{int64(-1)})
	assert.Error(t, err)
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in   string
		want Path
	}{
		{"", Path{}},
		{"/", Path{}},
		{"sensors", Path{NameElement("sensors")}},
		{"sensors/0/name", Path{NameElement("sensors"), IndexElement(0), NameElement("name")}},
		{"/config/12", Path{NameElement("config"), IndexElement(12)}},
	}

	for _, tt := range tests {
		got, err := ParsePath(tt.in)
		require.NoError(t, err, "parse %q", tt.in)
		assert.True(t, tt.want.Equal(got), "parse %q: got %q", tt.in, got)
	}

	_, err := ParsePath("a//b")
	assert.Error(t, err)
}
