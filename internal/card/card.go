// Package card defines the values passed between scan stages.
package card

import (
	"image"
	"strings"
	"time"

	"card-scanner/pkg/geometry"
)

// Frame is a single camera or file image.
type Frame struct {
	Image     image.Image
	Timestamp time.Time
	Width     int
	Height    int
}

// NewFrame wraps an image, taking dimensions from its bounds.
func NewFrame(img image.Image, ts time.Time) *Frame {
	b := img.Bounds()
	return &Frame{
		Image:     img,
		Timestamp: ts,
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
}

// Boundary is a detected card quadrilateral.
type Boundary struct {
	Corners    [4]geometry.Point2D // Ordered: TL, TR, BR, BL
	Confidence float64             // 0.0 - 1.0
	Area       float64             // Enclosed area in px²
}

// Energy is the elemental category printed on a card.
type Energy string

const (
	Psychic  Energy = "Psychic"
	Fairy    Energy = "Fairy"
	Fire     Energy = "Fire"
	Water    Energy = "Water"
	Grass    Energy = "Grass"
	Electric Energy = "Electric"
	Fighting Energy = "Fighting"
	Darkness Energy = "Darkness"
	Metal    Energy = "Metal"
)

// Energies lists the color-classified categories in their fixed order.
// Ties between equal scores resolve to the earlier entry.
var Energies = []Energy{Psychic, Fairy, Fire, Water, Grass, Electric, Fighting, Darkness, Metal}

// energyWords maps printed type names to categories. Catalog records use
// "Lightning" where the classifier says Electric.
var energyWords = []struct {
	word   string
	energy Energy
}{
	{"fire", Fire},
	{"water", Water},
	{"grass", Grass},
	{"lightning", Electric},
	{"electric", Electric},
	{"psychic", Psychic},
	{"fighting", Fighting},
	{"darkness", Darkness},
	{"metal", Metal},
	{"fairy", Fairy},
}

// EnergyFromText returns the first energy type named in text, if any.
func EnergyFromText(text string) (Energy, bool) {
	lower := strings.ToLower(text)
	for _, ew := range energyWords {
		if strings.Contains(lower, ew.word) {
			return ew.energy, true
		}
	}
	return "", false
}

// ParseEnergy matches a category name case-insensitively.
func ParseEnergy(s string) (Energy, bool) {
	for _, e := range Energies {
		if strings.EqualFold(string(e), s) {
			return e, true
		}
	}
	if strings.EqualFold(s, "lightning") {
		return Electric, true
	}
	return "", false
}
