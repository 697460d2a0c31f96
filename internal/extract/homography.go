package extract

import (
	"fmt"
	"math"

	"card-scanner/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 projective transform with H[2][2] fixed at 1.
type Homography [9]float64

// Apply maps a point through the transform.
func (h Homography) Apply(p geometry.Point2D) (geometry.Point2D, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return geometry.Point2D{}, false
	}
	return geometry.Point2D{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// ComputeHomography solves for the transform taking each src point to the
// matching dst point. Four correspondences give an exact 8x8 system.
func ComputeHomography(src, dst [4]geometry.Point2D) (Homography, error) {
	A := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y

		// u = (h0 x + h1 y + h2) / (h6 x + h7 y + 1)
		A.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		b.SetVec(2*i, u)

		// v = (h3 x + h4 y + h5) / (h6 x + h7 y + 1)
		A.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i+1, v)
	}

	var params mat.VecDense
	if err := params.SolveVec(A, b); err != nil {
		return Homography{}, fmt.Errorf("failed to solve homography: %w", err)
	}

	var h Homography
	for i := 0; i < 8; i++ {
		h[i] = params.AtVec(i)
	}
	h[8] = 1
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Homography{}, fmt.Errorf("degenerate corner configuration")
		}
	}
	return h, nil
}
