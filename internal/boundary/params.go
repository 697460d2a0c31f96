package boundary

// Params configures boundary detection.
type Params struct {
	MinArea        float64 // Minimum contour area in px²
	MinConfidence  float64 // Minimum score (0.0 - 1.0) to report a boundary
	TargetAspect   float64 // Card width/height
	IdealAreaRatio float64 // Card area / frame area that scores best
}

// DefaultParams returns defaults tuned for a hand-held card filling a
// third of a 720p frame.
func DefaultParams() Params {
	return Params{
		MinArea:        50000,
		MinConfidence:  0.7,
		TargetAspect:   5.0 / 7.0,
		IdealAreaRatio: 0.3,
	}
}

// WithMinArea returns a copy of params with a different minimum area.
func (p Params) WithMinArea(area float64) Params {
	p.MinArea = area
	return p
}

// WithMinConfidence returns a copy of params with a different confidence floor.
func (p Params) WithMinConfidence(c float64) Params {
	p.MinConfidence = c
	return p
}
