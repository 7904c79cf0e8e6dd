package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentParses(t *testing.T) {
	v, err := Parse(Current)
	require.NoError(t, err)
	assert.Equal(t, Current, v.String())
}

func TestParse(t *testing.T) {
	v, err := Parse("1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 3}, v)

	for _, bad := range []string{"", "1", "1.2", "1.2.x", "1..3", "-1.0.0"} {
		_, err := Parse(bad)
		assert.Error(t, err, "%q must not parse", bad)
	}
}
