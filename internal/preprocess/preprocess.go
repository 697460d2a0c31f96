// Package preprocess applies deterministic enhancement before text recognition.
package preprocess

import (
	"fmt"
	"image"
	"strings"

	"card-scanner/internal/cvimage"

	"gocv.io/x/gocv"
)

// Strategy names an enhancement.
type Strategy string

const (
	None     Strategy = "none"
	Light    Strategy = "light"
	Enhanced Strategy = "enhanced"
)

// Contrast/brightness constants for each strategy.
const (
	lightContrast      = 1.3
	lightBrightness    = 10
	enhancedContrast   = 1.6
	enhancedBrightness = 12
	midpoint           = 128
)

// Result is an image together with the strategy that produced it.
type Result struct {
	Image    *image.RGBA
	Strategy Strategy
}

// ParseStrategy converts a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case None, Light, Enhanced:
		return st, nil
	}
	return "", fmt.Errorf("unknown preprocess strategy %q", s)
}

// Apply runs a strategy over img. The input is never modified. Unknown
// strategies behave like None.
func Apply(img *image.RGBA, s Strategy) *Result {
	switch s {
	case Light:
		return &Result{Image: light(img), Strategy: Light}
	case Enhanced:
		return &Result{Image: enhanced(img), Strategy: Enhanced}
	default:
		return &Result{Image: clone(img), Strategy: None}
	}
}

func clone(img *image.RGBA) *image.RGBA {
	out := &image.RGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(out.Pix, img.Pix)
	return out
}

// light stretches contrast around the midpoint and lifts brightness on every
// color channel.
func light(img *image.RGBA) *image.RGBA {
	mat, err := cvimage.ToMat(img)
	if err != nil {
		return clone(img)
	}
	defer mat.Close()

	out := gocv.NewMat()
	defer out.Close()
	stretch(mat, &out, lightContrast, lightBrightness)
	return toRGBA(out, img)
}

// enhanced converts to gray, equalizes the histogram, stretches contrast and
// sharpens.
func enhanced(img *image.RGBA) *image.RGBA {
	mat, err := cvimage.ToMat(img)
	if err != nil {
		return clone(img)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.EqualizeHist(gray, &equalized)

	stretched := gocv.NewMat()
	defer stretched.Close()
	stretch(equalized, &stretched, enhancedContrast, enhancedBrightness)

	if stretched.Cols() < 3 || stretched.Rows() < 3 {
		return toRGBA(stretched, img)
	}
	sharp := gocv.NewMat()
	defer sharp.Close()
	sharpen(stretched, &sharp)
	return toRGBA(sharp, img)
}

// stretch computes (v-128)*contrast + 128 + brightness, saturated to 0-255.
func stretch(src gocv.Mat, dst *gocv.Mat, contrast, brightness float32) {
	src.ConvertToWithParams(dst, gocv.MatTypeCV8U, contrast, midpoint*(1-contrast)+brightness)
}

// sharpen applies 5*c - (t+b+l+r) with reflected borders.
func sharpen(src gocv.Mat, dst *gocv.Mat) {
	kernel := gocv.Zeros(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for _, k := range [][3]int{{0, 1, -1}, {1, 0, -1}, {1, 1, 5}, {1, 2, -1}, {2, 1, -1}} {
		kernel.SetFloatAt(k[0], k[1], float32(k[2]))
	}
	gocv.Filter2D(src, dst, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
}

// toRGBA converts mat back to an image, keeping the input when conversion
// fails.
func toRGBA(mat gocv.Mat, fallback *image.RGBA) *image.RGBA {
	out, err := cvimage.ToImage(mat)
	if err != nil {
		return clone(fallback)
	}
	return out
}
