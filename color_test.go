package quad

import (
	"image/color"
	"testing"
)

func TestHex(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#ff0000", color.NRGBA{255, 0, 0, 255}},
		{"00ff00", color.NRGBA{0, 255, 0, 255}},
		{"#00f", color.NRGBA{0, 0, 255, 255}},
		{"#ff000080", color.NRGBA{255, 0, 0, 128}},
		{"f0f8", color.NRGBA{255, 0, 255, 136}},
		{"", color.NRGBA{0, 0, 0, 255}},
		{"#12345", color.NRGBA{0, 0, 0, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Hex(tt.in).NRGBA(); got != tt.want {
				t.Errorf("Hex(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRGBAMul(t *testing.T) {
	c := RGBA{R: 1, G: 0.5, B: 0.25, A: 1}
	tex := RGBA{R: 0.5, G: 0.5, B: 1, A: 0.5}
	want := RGBA{R: 0.5, G: 0.25, B: 0.25, A: 0.5}
	if got := c.Mul(tex); got != want {
		t.Errorf("Mul = %+v, want %+v", got, want)
	}
	if got := c.Mul(White); got != c {
		t.Errorf("Mul(White) = %+v, want %+v", got, c)
	}
}

func TestFromColor(t *testing.T) {
	c := FromColor(color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	if !approx(c.R, 1) || !approx(c.G, 0) || !approx(c.B, 0.2) || !approx(c.A, 1) {
		t.Errorf("FromColor = %+v", c)
	}
	if got := c.NRGBA(); got != (color.NRGBA{R: 255, G: 0, B: 51, A: 255}) {
		t.Errorf("round trip = %v", got)
	}
}

func TestHexPremultiplies(t *testing.T) {
	c := Hex("#ff000080")
	if !approx(c.R, 128.0/255) || c.G != 0 || !approx(c.A, 128.0/255) {
		t.Errorf("Hex(#ff000080) = %+v, want red premultiplied by alpha 0x80", c)
	}
	if got := Transparent.NRGBA(); got != (color.NRGBA{}) {
		t.Errorf("Transparent.NRGBA() = %v, want zero", got)
	}
}

func TestRGBAColorModel(t *testing.T) {
	c := RGBA{R: 0.5, G: 0, B: 0.25, A: 0.5}
	got := color.RGBAModel.Convert(c).(color.RGBA)
	want := color.RGBA{R: 128, G: 0, B: 64, A: 128}
	if got != want {
		t.Errorf("RGBAModel.Convert = %v, want %v", got, want)
	}
	if back := FromColor(got); !approx(back.R, 128.0/255) || !approx(back.A, 128.0/255) {
		t.Errorf("FromColor(%v) = %+v, want R and A of 128/255", got, back)
	}
}

func TestNRGBAClamps(t *testing.T) {
	got := RGBA{R: 2, G: -1, B: 0.5, A: 1}.NRGBA()
	want := color.NRGBA{R: 255, G: 0, B: 128, A: 255}
	if got != want {
		t.Errorf("NRGBA = %v, want %v", got, want)
	}
}
