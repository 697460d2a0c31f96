package colorutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelHelpers(t *testing.T) {
	require.Equal(t, 192, int(Quantize(197, 24)))
	require.Equal(t, 0, int(Quantize(23, 24)))
	require.Equal(t, 163, Spread(34, 197, 94))
	require.InDelta(t, 108.333, Brightness(34, 197, 94), 0.001)
	require.Equal(t, "#22c55e", Hex(0x22, 0xc5, 0x5e))
}
