// Package colorclass infers a card's energy type from its dominant colors.
package colorclass

import (
	"image"
	"image/color"
	"sort"

	"card-scanner/internal/card"
	"card-scanner/pkg/colorutil"
)

// Sampling and scoring constants.
const (
	sampleStride    = 8
	centerRadius    = 0.4
	edgeSamplePct   = 30
	bucketWidth     = 24
	maxDominant     = 5
	detectThreshold = 4

	minBrightness = 30
	maxBrightness = 240
)

// RGB is a quantized color.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as "#rrggbb".
func (c RGB) Hex() string { return colorutil.Hex(c.R, c.G, c.B) }

func (c RGB) spread() int { return colorutil.Spread(c.R, c.G, c.B) }

func (c RGB) brightness() float64 { return colorutil.Brightness(c.R, c.G, c.B) }

// Profile is the result of classifying one image.
type Profile struct {
	Dominant []RGB               `json:"dominant_colors"`
	Scores   map[card.Energy]int `json:"energy_scores"`
	Detected card.Energy         `json:"detected_type,omitempty"`
}

// Score returns the score of the detected type, or 0.
func (p Profile) Score() int {
	if p.Detected == "" {
		return 0
	}
	return p.Scores[p.Detected]
}

// Classify samples img and scores every energy type. The result depends
// only on the pixel data.
func Classify(img image.Image) Profile {
	dominant := dominantColors(img)

	scores := make(map[card.Energy]int, len(card.Energies))
	for _, e := range card.Energies {
		scores[e] = 0
		for i, c := range dominant {
			if matches(e, c) {
				scores[e] += (6 - i) * 2
			}
		}
	}
	adjust(scores, dominant)

	p := Profile{Dominant: dominant, Scores: scores}
	best := card.Energy("")
	for _, e := range card.Energies {
		if best == "" || scores[e] > scores[best] {
			best = e
		}
	}
	if best != "" && scores[best] >= detectThreshold {
		p.Detected = best
	}
	return p
}

// dominantColors returns up to maxDominant quantized colors ordered by
// weight, ties broken by first appearance.
func dominantColors(img image.Image) []RGB {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}

	cx, cy := float64(w)/2, float64(h)/2
	radius := float64(min(w, h)) * centerRadius
	r2 := radius * radius

	weights := make(map[RGB]int)
	var order []RGB

	total := w * h
	for idx := 0; idx < total; idx += sampleStride {
		x, y := idx%w, idx/w
		dx, dy := float64(x)-cx, float64(y)-cy
		inCenter := dx*dx+dy*dy < r2
		if !inCenter && !sampleEdge(idx) {
			continue
		}

		r, g, bl := pixel(img, b.Min.X+x, b.Min.Y+y)
		br := colorutil.Brightness(r, g, bl)
		if br < minBrightness || br > maxBrightness {
			continue
		}
		if colorutil.Spread(r, g, bl) < 20 && br > 100 && br < 200 {
			continue
		}

		key := RGB{
			R: colorutil.Quantize(r, bucketWidth),
			G: colorutil.Quantize(g, bucketWidth),
			B: colorutil.Quantize(bl, bucketWidth),
		}
		if _, ok := weights[key]; !ok {
			order = append(order, key)
		}
		if inCenter {
			weights[key] += 2
		} else {
			weights[key]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return weights[order[i]] > weights[order[j]]
	})
	if len(order) > maxDominant {
		order = order[:maxDominant]
	}
	return order
}

// sampleEdge keeps roughly edgeSamplePct percent of edge pixels, chosen by
// a fixed hash of the pixel index.
func sampleEdge(idx int) bool {
	h := uint32(idx) * 2654435761
	h ^= h >> 16
	return h%100 < edgeSamplePct
}

func pixel(img image.Image, x, y int) (r, g, b uint8) {
	if rgba, ok := img.(*image.RGBA); ok {
		c := rgba.RGBAAt(x, y)
		return c.R, c.G, c.B
	}
	c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
	return c.R, c.G, c.B
}

func isGreen(c RGB) bool {
	if c.G <= c.R || c.G <= c.B {
		return false
	}
	return c.G > 120 || int(c.G) > int(max(c.R, c.B))+20
}

func isPinkPurple(c RGB) bool {
	return c.R > 170 && c.B > 140 && c.G < 160
}

func isLightPink(c RGB) bool {
	return c.R > 200 && c.G > 150 && c.G < 240 && c.B > 200
}

func isBalancedGray(c RGB) bool {
	br := c.brightness()
	greenTint := c.G > c.R && c.G > c.B
	return c.spread() < 25 && br > 120 && br < 240 && !greenTint
}

// adjust applies the corrective heuristics. Green is checked before
// pink/purple and suppresses it.
func adjust(scores map[card.Energy]int, dominant []RGB) {
	var greens, pinks, totalSpread int
	lightPink, gray := false, false
	for _, c := range dominant {
		totalSpread += c.spread()
		if isGreen(c) {
			greens++
		}
		if isPinkPurple(c) {
			pinks++
		}
		if isLightPink(c) {
			lightPink = true
		}
		if isBalancedGray(c) {
			gray = true
		}
	}
	avgSpread := 0.0
	if len(dominant) > 0 {
		avgSpread = float64(totalSpread) / float64(len(dominant))
	}
	saturated := avgSpread > 40
	hasGreen, hasPink := greens > 0, pinks > 0

	penalize := func(e card.Energy, n int) {
		scores[e] = max(0, scores[e]-n)
	}

	if hasGreen {
		scores[card.Grass] += greens * 30
		penalize(card.Psychic, 20)
		penalize(card.Darkness, 20)
		penalize(card.Metal, 20)
	}

	if hasPink && !hasGreen {
		boost := pinks * 20
		if saturated {
			boost += 15
		}
		scores[card.Psychic] += boost
		penalize(card.Metal, 20)
	}

	if !hasPink && !hasGreen && !saturated {
		if gray {
			scores[card.Metal] += 10
		}
	} else if hasGreen {
		penalize(card.Metal, 20)
	} else {
		penalize(card.Metal, 15)
	}

	if hasGreen {
		penalize(card.Darkness, 25)
	}

	if lightPink && !hasPink {
		scores[card.Fairy] += 5
	}
}
