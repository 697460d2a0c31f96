// Package boundary finds a card-shaped quadrilateral in a camera frame.
package boundary

import (
	"fmt"
	"image"
	"math"

	"card-scanner/internal/card"
	"card-scanner/internal/cvimage"
	"card-scanner/pkg/geometry"

	"gocv.io/x/gocv"
)

// Detector locates card boundaries with Canny edges and contour analysis.
type Detector struct {
	params Params
}

// NewDetector creates a detector with the given parameters.
func NewDetector(params Params) *Detector {
	return &Detector{params: params}
}

// Params returns the detector's parameters.
func (d *Detector) Params() Params {
	return d.params
}

// Detect returns the most card-like quadrilateral in the frame.
// Returns nil, nil when no outline clears the area and confidence floors.
func (d *Detector) Detect(f *card.Frame) (*card.Boundary, error) {
	if f == nil || f.Image == nil {
		return nil, fmt.Errorf("nil frame")
	}

	img, err := cvimage.ToMat(f.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	defer img.Close()

	contours := findContours(img)
	return selectBest(contours, img.Cols(), img.Rows(), d.params), nil
}

// findContours runs the edge pipeline and returns every external outline.
func findContours(img gocv.Mat) []contour {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	// Thresholds follow scene brightness and contrast
	t1, t2 := cannyThresholds(gray)

	// Equalize local contrast so card edges survive dim lighting
	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{8, 8})
	defer clahe.Close()
	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(gray, &enhanced)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(enhanced, &blurred, image.Point{5, 5}, 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, t1, t2)

	// Close gaps in the outline
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{5, 5})
	defer kernel.Close()
	gocv.Dilate(edges, &edges, kernel)
	gocv.Dilate(edges, &edges, kernel)
	gocv.Erode(edges, &edges, kernel)

	found := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	out := make([]contour, 0, found.Size())
	for i := 0; i < found.Size(); i++ {
		pv := found.At(i)
		area := gocv.ContourArea(pv)

		epsilon := 0.02 * gocv.ArcLength(pv, true)
		approx := gocv.ApproxPolyDP(pv, epsilon, true)

		out = append(out, contour{
			Points: toPoints(pv.ToPoints()),
			Approx: toPoints(approx.ToPoints()),
			Area:   area,
		})
		approx.Close()
	}
	return out
}

// cannyThresholds derives hysteresis thresholds from the gray-level mean and
// standard deviation.
func cannyThresholds(gray gocv.Mat) (float32, float32) {
	if gray.Empty() {
		return 50, 150
	}

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(gray, &mean, &stddev)

	m := mean.GetDoubleAt(0, 0)
	sd := stddev.GetDoubleAt(0, 0)
	t1 := clamp(m*0.5, 30, 150)
	t2 := clamp(m+2*sd, 60, 300)
	return float32(t1), float32(t2)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func toPoints(pts []image.Point) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}
