package extract

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"card-scanner/internal/card"
	"card-scanner/pkg/geometry"

	"github.com/stretchr/testify/require"
)

func TestCropRect(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		expect image.Rectangle
	}{
		{"landscape", 1920, 1080, image.Rect(632, 81, 632+655, 81+918)},
		{"portrait", 1080, 1920, image.Rect(81, 317, 81+918, 317+1285)},
		{"tiny", 1, 1, image.Rect(0, 0, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expect, CropRect(tt.w, tt.h))
		})
	}
}

func TestExtractWithoutBoundaryUsesCenterCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	out := Extract(img, nil)

	require.Equal(t, MethodCenterCrop, out.Method)
	bounds := out.Bounds()
	require.Equal(t, CropRect(640, 480).Size(), bounds.Size())
	require.InDelta(t, CardAspect, float64(bounds.Dx())/float64(bounds.Dy()), 0.01)
}

func TestCenterCropHonoursImageOrigin(t *testing.T) {
	img := image.NewRGBA(image.Rect(100, 100, 300, 400))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{255, 0, 0, 255}}, image.Point{}, draw.Src)

	out := CenterCrop(img)
	require.Equal(t, color.RGBA{255, 0, 0, 255}, out.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{255, 0, 0, 255}, out.RGBAAt(out.Bounds().Dx()-1, out.Bounds().Dy()-1))
}

func TestComputeHomographyMapsCorners(t *testing.T) {
	src := [4]geometry.Point2D{{X: 0, Y: 0}, {X: 329, Y: 0}, {X: 329, Y: 439}, {X: 0, Y: 439}}
	dst := [4]geometry.Point2D{{X: 112, Y: 40}, {X: 400, Y: 75}, {X: 380, Y: 470}, {X: 90, Y: 450}}

	h, err := ComputeHomography(src, dst)
	require.NoError(t, err)
	for i := range src {
		p, ok := h.Apply(src[i])
		require.True(t, ok)
		require.InDelta(t, dst[i].X, p.X, 1e-6)
		require.InDelta(t, dst[i].Y, p.Y, 1e-6)
	}
}

func TestWarpRejectsDegenerateQuad(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	collinear := [4]geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}

	_, err := Warp(img, collinear, CardWidth, CardHeight)
	require.Error(t, err)
}

func TestExtractWarpsAxisAlignedCard(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{0, 0, 0, 255}}, image.Point{}, draw.Src)
	// Left half of the card blue, right half yellow.
	draw.Draw(img, image.Rect(100, 50, 265, 490), &image.Uniform{C: color.RGBA{0, 0, 255, 255}}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(265, 50, 430, 490), &image.Uniform{C: color.RGBA{255, 255, 0, 255}}, image.Point{}, draw.Src)

	b := &card.Boundary{
		Corners:    [4]geometry.Point2D{{X: 100, Y: 50}, {X: 429, Y: 50}, {X: 429, Y: 489}, {X: 100, Y: 489}},
		Confidence: 0.9,
	}
	out := Extract(img, b)

	require.Equal(t, MethodWarp, out.Method)
	require.Equal(t, image.Rect(0, 0, CardWidth, CardHeight), out.Bounds())
	require.Equal(t, color.RGBA{0, 0, 255, 255}, out.RGBAAt(20, 200))
	require.Equal(t, color.RGBA{255, 255, 0, 255}, out.RGBAAt(300, 200))
}

func TestExtractDegenerateBoundaryFallsBack(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	b := &card.Boundary{Corners: [4]geometry.Point2D{{X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}}}

	out := Extract(img, b)
	require.Equal(t, MethodCenterCrop, out.Method)
	require.False(t, out.Bounds().Empty())
}
