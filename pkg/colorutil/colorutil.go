// Package colorutil provides shared color utilities for the card scanner.
package colorutil

import (
	"fmt"
)

// Brightness returns the mean of the three channels.
func Brightness(r, g, b uint8) float64 {
	return (float64(r) + float64(g) + float64(b)) / 3
}

// Spread returns max(r,g,b) - min(r,g,b), used as a cheap saturation measure.
func Spread(r, g, b uint8) int {
	hi := max(r, g, b)
	lo := min(r, g, b)
	return int(hi) - int(lo)
}

// Quantize snaps a channel value down to a multiple of width.
func Quantize(c uint8, width int) uint8 {
	return uint8(int(c) / width * width)
}

// Hex formats a color as "#rrggbb".
func Hex(r, g, b uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
