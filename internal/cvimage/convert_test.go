package cvimage

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 7, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 40), B: 99, A: 255})
		}
	}

	mat, err := ToMat(img)
	require.NoError(t, err)
	defer mat.Close()

	require.Equal(t, 7, mat.Cols())
	require.Equal(t, 5, mat.Rows())
	// BGR order
	require.Equal(t, uint8(99), mat.GetUCharAt(2, 3*3+0))
	require.Equal(t, uint8(90), mat.GetUCharAt(2, 3*3+2))

	back, err := ToImage(mat)
	require.NoError(t, err)
	require.Equal(t, img.Pix, back.Pix)
}

func TestToMatRejectsEmpty(t *testing.T) {
	mat, err := ToMat(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	defer mat.Close()
	require.Error(t, err)
}
