package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint(" 1.5, -2 ,3e-1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2, 0.3}, p)

	for _, in := range []string{"", "  ", "1,,2", "1,x"} {
		_, err := ParsePoint(in)
		assert.Error(t, err, "input %q", in)
	}
}
