package quad

import (
	"image/color"
)

// RGBA represents a color with red, green, blue, and alpha components.
// Each component is in the range [0, 1]. The color channels are
// premultiplied by alpha, as in image/color.RGBA, so a half transparent red
// is {0.5, 0, 0, 0.5}. Targets blend with source-over on premultiplied
// values.
type RGBA struct {
	R, G, B, A float32
}

// RGB creates an opaque color from RGB components.
func RGB(r, g, b float32) RGBA {
	return RGBA{R: r, G: g, B: b, A: 1}
}

// Mul returns the component-wise product of two colors. This is the tint
// rule used by the textured variant: vertex color times sampled texel.
func (c RGBA) Mul(o RGBA) RGBA {
	return RGBA{R: c.R * o.R, G: c.G * o.G, B: c.B * o.B, A: c.A * o.A}
}

// Scale multiplies every component by s.
func (c RGBA) Scale(s float32) RGBA {
	return RGBA{R: c.R * s, G: c.G * s, B: c.B * s, A: c.A * s}
}

// Add returns the component-wise sum of two colors.
func (c RGBA) Add(o RGBA) RGBA {
	return RGBA{R: c.R + o.R, G: c.G + o.G, B: c.B + o.B, A: c.A + o.A}
}

// Array returns the color as a 4-component array in RGBA order.
func (c RGBA) Array() [4]float32 {
	return [4]float32{c.R, c.G, c.B, c.A}
}

// RGBA implements color.Color.
func (c RGBA) RGBA() (r, g, b, a uint32) {
	a = to16(c.A)
	return min(to16(c.R), a), min(to16(c.G), a), min(to16(c.B), a), a
}

// NRGBA converts the color to an 8-bit non-premultiplied color. A fully
// transparent color converts to zero.
func (c RGBA) NRGBA() color.NRGBA {
	if c.A <= 0 {
		return color.NRGBA{}
	}
	return color.NRGBA{
		R: to8(c.R / c.A),
		G: to8(c.G / c.A),
		B: to8(c.B / c.A),
		A: to8(c.A),
	}
}

// FromColor converts a standard color.Color to RGBA.
func FromColor(c color.Color) RGBA {
	r, g, b, a := c.RGBA()
	return RGBA{
		R: float32(r) / 0xffff,
		G: float32(g) / 0xffff,
		B: float32(b) / 0xffff,
		A: float32(a) / 0xffff,
	}
}

// premultiply builds a color from straight alpha components.
func premultiply(r, g, b, a float32) RGBA {
	return RGBA{R: r * a, G: g * a, B: b * a, A: a}
}

// Hex creates a color from a hex string of straight alpha components.
// Supports formats: "RGB", "RGBA", "RRGGBB", "RRGGBBAA", with or without '#'.
// Malformed input yields opaque black.
func Hex(hex string) RGBA {
	if hex != "" && hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint32
	a = 255

	switch len(hex) {
	case 3:
		r, g, b = parseHex(hex[0:1])*17, parseHex(hex[1:2])*17, parseHex(hex[2:3])*17
	case 4:
		r, g, b, a = parseHex(hex[0:1])*17, parseHex(hex[1:2])*17, parseHex(hex[2:3])*17, parseHex(hex[3:4])*17
	case 6:
		r, g, b = parseHex(hex[0:2]), parseHex(hex[2:4]), parseHex(hex[4:6])
	case 8:
		r, g, b, a = parseHex(hex[0:2]), parseHex(hex[2:4]), parseHex(hex[4:6]), parseHex(hex[6:8])
	default:
		return Black
	}

	return premultiply(float32(r)/255, float32(g)/255, float32(b)/255, float32(a)/255)
}

func parseHex(s string) uint32 {
	var v uint32
	for i := 0; i < len(s); i++ {
		c := s[i]
		v *= 16
		switch {
		case '0' <= c && c <= '9':
			v += uint32(c - '0')
		case 'a' <= c && c <= 'f':
			v += uint32(c - 'a' + 10)
		case 'A' <= c && c <= 'F':
			v += uint32(c - 'A' + 10)
		default:
			return 0
		}
	}
	return v
}

func to8(x float32) uint8 {
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 255
	}
	return uint8(x*255 + 0.5)
}

func to16(x float32) uint32 {
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 0xffff
	}
	return uint32(x*0xffff + 0.5)
}

// Common colors
var (
	Black       = RGB(0, 0, 0)
	White       = RGB(1, 1, 1)
	Red         = RGB(1, 0, 0)
	Green       = RGB(0, 1, 0)
	Blue        = RGB(0, 0, 1)
	Transparent = RGBA{}
)
