package card

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 110, 220))
	f := NewFrame(img, time.Unix(100, 0))
	require.Equal(t, 100, f.Width)
	require.Equal(t, 200, f.Height)
}

func TestEnergyFromText(t *testing.T) {
	e, ok := EnergyFromText("Weakness: Lightning x2")
	require.True(t, ok)
	require.Equal(t, Electric, e)

	_, ok = EnergyFromText("Pikachu HP 60")
	require.False(t, ok)
}

func TestParseEnergy(t *testing.T) {
	e, ok := ParseEnergy("grass")
	require.True(t, ok)
	require.Equal(t, Grass, e)

	_, ok = ParseEnergy("Dragon")
	require.False(t, ok)
}
