// Package extract turns a frame into an upright, card-shaped image.
package extract

import (
	"fmt"
	"image"
	"image/draw"
	"log"
	"math"

	"card-scanner/internal/card"
	"card-scanner/pkg/geometry"
)

// Canonical output size for warped cards.
const (
	CardWidth  = 330
	CardHeight = 440
)

// CardAspect is card width divided by height.
const CardAspect = 5.0 / 7.0

// CropFraction is the share of each frame dimension kept by the center crop.
const CropFraction = 0.85

// Method records how an image was produced.
type Method string

const (
	MethodWarp       Method = "warp"
	MethodCenterCrop Method = "center-crop"
)

// Image is the extracted card bitmap.
type Image struct {
	*image.RGBA
	Method Method
}

// Extract warps the boundary quadrilateral to CardWidth x CardHeight, or
// center-crops the frame when there is no usable boundary. It never fails
// for a non-empty frame.
func Extract(img image.Image, b *card.Boundary) *Image {
	if b != nil {
		warped, err := Warp(img, b.Corners, CardWidth, CardHeight)
		if err == nil {
			return &Image{RGBA: warped, Method: MethodWarp}
		}
		log.Printf("Extract: warp failed, using center crop: %v", err)
	}
	return &Image{RGBA: CenterCrop(img), Method: MethodCenterCrop}
}

// CropRect returns the centered card-aspect crop inside the central 85% of
// a width x height frame, relative to (0,0).
func CropRect(width, height int) image.Rectangle {
	regionW := int(math.Floor(float64(width) * CropFraction))
	regionH := int(math.Floor(float64(height) * CropFraction))

	cropW, cropH := regionW, regionH
	if regionH > 0 && float64(regionW)/float64(regionH) > CardAspect {
		cropW = int(math.Floor(float64(regionH) * CardAspect))
	} else {
		cropH = int(math.Floor(float64(regionW) / CardAspect))
	}
	cropW = max(1, min(cropW, width))
	cropH = max(1, min(cropH, height))

	x := (width - cropW) / 2
	y := (height - cropH) / 2
	return image.Rect(x, y, x+cropW, y+cropH)
}

// CenterCrop copies the CropRect region of img into a new image.
func CenterCrop(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	r := CropRect(bounds.Dx(), bounds.Dy()).Add(bounds.Min)

	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// Warp maps the quadrilateral (TL, TR, BR, BL) onto a width x height image
// using inverse mapping with bilinear sampling.
func Warp(img image.Image, corners [4]geometry.Point2D, width, height int) (*image.RGBA, error) {
	quad := corners[:]
	if geometry.PolygonArea(quad) < 1 || !geometry.IsConvex(quad) {
		return nil, fmt.Errorf("degenerate quadrilateral")
	}

	dst := [4]geometry.Point2D{
		{X: 0, Y: 0},
		{X: float64(width - 1), Y: 0},
		{X: float64(width - 1), Y: float64(height - 1)},
		{X: 0, Y: float64(height - 1)},
	}

	// Output pixel -> source pixel
	h, err := ComputeHomography(dst, corners)
	if err != nil {
		return nil, err
	}

	src := toRGBA(img)
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p, ok := h.Apply(geometry.Point2D{X: float64(x), Y: float64(y)})
			if !ok {
				continue
			}
			r, g, b, a := bilinear(src, p.X, p.Y)
			i := out.PixOffset(x, y)
			out.Pix[i+0] = r
			out.Pix[i+1] = g
			out.Pix[i+2] = b
			out.Pix[i+3] = a
		}
	}
	return out, nil
}

// bilinear samples src at a fractional position, clamping to the edges.
func bilinear(src *image.RGBA, fx, fy float64) (uint8, uint8, uint8, uint8) {
	b := src.Bounds()
	fx = math.Max(0, math.Min(fx, float64(b.Dx()-1)))
	fy = math.Max(0, math.Min(fy, float64(b.Dy()-1)))

	x0, y0 := int(fx), int(fy)
	x1, y1 := min(x0+1, b.Dx()-1), min(y0+1, b.Dy()-1)
	dx, dy := fx-float64(x0), fy-float64(y0)

	var out [4]uint8
	for c := 0; c < 4; c++ {
		v00 := float64(src.Pix[src.PixOffset(b.Min.X+x0, b.Min.Y+y0)+c])
		v10 := float64(src.Pix[src.PixOffset(b.Min.X+x1, b.Min.Y+y0)+c])
		v01 := float64(src.Pix[src.PixOffset(b.Min.X+x0, b.Min.Y+y1)+c])
		v11 := float64(src.Pix[src.PixOffset(b.Min.X+x1, b.Min.Y+y1)+c])
		top := v00 + (v10-v00)*dx
		bottom := v01 + (v11-v01)*dx
		out[c] = uint8(math.Round(top + (bottom-top)*dy))
	}
	return out[0], out[1], out[2], out[3]
}

// toRGBA returns img as *image.RGBA, copying only when needed.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}
