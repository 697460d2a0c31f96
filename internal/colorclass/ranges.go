package colorclass

import "card-scanner/internal/card"

// span is an inclusive channel interval.
type span struct{ lo, hi uint8 }

func (s span) has(v uint8) bool { return v >= s.lo && v <= s.hi }

// colorRange is a box in RGB space.
type colorRange struct{ r, g, b span }

func (cr colorRange) contains(c RGB) bool {
	return cr.r.has(c.R) && cr.g.has(c.G) && cr.b.has(c.B)
}

func box(rlo, rhi, glo, ghi, blo, bhi uint8) colorRange {
	return colorRange{span{rlo, rhi}, span{glo, ghi}, span{blo, bhi}}
}

// signatures are the RGB boxes that count toward each category.
var signatures = map[card.Energy][]colorRange{
	card.Psychic: {
		box(200, 255, 50, 150, 150, 255), // bright pink / magenta
		box(180, 255, 0, 120, 180, 255),  // deep pink / purple
		box(150, 220, 0, 100, 150, 220),  // purple
		box(220, 255, 100, 200, 200, 255),
		box(200, 255, 80, 180, 200, 255),
	},
	card.Fairy: {
		box(220, 255, 180, 240, 220, 255),
		box(200, 255, 150, 220, 200, 255),
		box(240, 255, 200, 255, 240, 255),
	},
	card.Fire: {
		box(200, 255, 50, 150, 0, 100),
		box(220, 255, 100, 200, 0, 80),
		box(180, 255, 30, 120, 0, 60),
	},
	card.Water: {
		box(0, 100, 100, 200, 150, 255),
		box(50, 150, 150, 255, 200, 255),
		box(0, 80, 120, 220, 180, 255),
	},
	card.Grass: {
		box(0, 120, 150, 255, 0, 150),
		box(0, 100, 180, 255, 0, 180),
		box(50, 150, 160, 255, 50, 160),
		box(0, 80, 120, 255, 0, 120),
		box(0, 60, 100, 255, 0, 100),
		box(20, 140, 140, 255, 20, 140),
	},
	card.Electric: {
		box(200, 255, 200, 255, 0, 100),
		box(220, 255, 220, 255, 50, 150),
		box(240, 255, 240, 255, 100, 200),
	},
	card.Fighting: {
		box(150, 255, 80, 180, 0, 100),
		box(120, 200, 60, 150, 0, 80),
		box(100, 180, 50, 120, 0, 60),
	},
	card.Darkness: {
		box(0, 60, 0, 60, 0, 60),
		box(0, 80, 0, 80, 0, 80),
		box(50, 120, 0, 80, 80, 150), // dark purple
	},
	card.Metal: {
		box(150, 220, 150, 220, 150, 220),
		box(180, 240, 180, 240, 180, 240),
		box(120, 180, 120, 180, 120, 180),
	},
}

// matches reports whether c falls in any of e's boxes.
func matches(e card.Energy, c RGB) bool {
	for _, cr := range signatures[e] {
		if cr.contains(c) {
			return true
		}
	}
	return false
}
