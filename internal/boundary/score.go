package boundary

import (
	"math"

	"card-scanner/internal/card"
	"card-scanner/pkg/geometry"
)

// contour is one closed outline found in the edge map.
type contour struct {
	Points []geometry.Point2D // Full outline
	Approx []geometry.Point2D // Polygon approximation
	Area   float64
}

// scoreContour rates how card-like an outline is. Returns 0 for shapes that
// cannot be a card (fewer than 3 or more than 5 vertices).
func scoreContour(c contour, frameArea float64, p Params) float64 {
	vertices := len(c.Approx)
	if vertices < 3 || vertices > 5 || frameArea <= 0 {
		return 0
	}

	areaRatio := c.Area / frameArea
	areaScore := math.Max(0, 1-math.Abs(areaRatio-p.IdealAreaRatio)/p.IdealAreaRatio)

	convexity := 0.0
	if hullArea := geometry.PolygonArea(geometry.ConvexHull(c.Points)); hullArea > 0 {
		convexity = math.Min(1, c.Area/hullArea)
	}

	if vertices != 4 {
		return 0.4*areaScore + 0.3*convexity
	}

	bounds := geometry.BoundingBox(c.Approx)
	aspectScore := 0.0
	if bounds.Height > 0 {
		a := bounds.Width / bounds.Height
		diff := math.Min(math.Abs(a-p.TargetAspect), math.Abs(a-1/p.TargetAspect))
		aspectScore = math.Max(0, 1-diff/0.3)
	}

	const shapeScore = 1.0
	return 0.3*areaScore + 0.3*shapeScore + 0.2*convexity + 0.2*aspectScore
}

// selectBest picks the highest-scoring outline and turns it into a boundary.
// Returns nil when nothing clears MinArea and MinConfidence.
func selectBest(contours []contour, frameW, frameH int, p Params) *card.Boundary {
	frameArea := float64(frameW * frameH)

	bestIdx := -1
	bestScore := 0.0
	for i, c := range contours {
		if c.Area < p.MinArea {
			continue
		}
		score := scoreContour(c, frameArea, p)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return nil
	}

	confidence := math.Max(0, math.Min(1, bestScore))
	if confidence < p.MinConfidence {
		return nil
	}

	best := contours[bestIdx]
	return &card.Boundary{
		Corners:    cornersOf(best.Approx),
		Confidence: confidence,
		Area:       best.Area,
	}
}

// cornersOf orders a convex quadrilateral's vertices; anything else falls
// back to the corners of its bounding box.
func cornersOf(approx []geometry.Point2D) [4]geometry.Point2D {
	if len(approx) == 4 && geometry.IsConvex(approx) {
		return geometry.OrderCorners([4]geometry.Point2D{approx[0], approx[1], approx[2], approx[3]})
	}
	return geometry.BoundingBox(approx).Corners()
}
