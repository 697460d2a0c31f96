package boundary

import "card-scanner/internal/card"

// Stable reports whether every corner of cur lies within tolerance pixels
// of the matching corner of prev.
func Stable(prev, cur *card.Boundary, tolerance float64) bool {
	if prev == nil || cur == nil {
		return false
	}
	for i := range cur.Corners {
		if prev.Corners[i].Distance(cur.Corners[i]) > tolerance {
			return false
		}
	}
	return true
}
