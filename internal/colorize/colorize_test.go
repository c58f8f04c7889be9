package colorize

import (
	"errors"
	"math"
	"strconv"
	"testing"
)

func lightnessOf(t *testing.T, hex string) float64 {
	t.Helper()
	if len(hex) != 7 || hex[0] != '#' {
		t.Fatalf("not a hex color: %q", hex)
	}
	r, err1 := strconv.ParseUint(hex[1:3], 16, 8)
	g, err2 := strconv.ParseUint(hex[3:5], 16, 8)
	b, err3 := strconv.ParseUint(hex[5:7], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		t.Fatalf("not a hex color: %q", hex)
	}
	_, _, l := rgbToHSL(int(r), int(g), int(b))
	return l
}

func TestNormalizeRaisesBlack(t *testing.T) {
	out, err := Normalize("#000000")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out == "#000000" {
		t.Fatalf("black must be raised out of the dark band")
	}
	if l := lightnessOf(t, out); math.Abs(l-0.2) > 0.01 {
		t.Fatalf("expected lightness ~0.2, got %f (%s)", l, out)
	}
}

func TestNormalizeLowersWhite(t *testing.T) {
	out, err := Normalize("#FFFFFF")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out == "#FFFFFF" {
		t.Fatalf("white must be lowered out of the bright band")
	}
	if l := lightnessOf(t, out); math.Abs(l-0.8) > 0.01 {
		t.Fatalf("expected lightness ~0.8, got %f (%s)", l, out)
	}
}

func TestNormalizeKeepsInBandColors(t *testing.T) {
	// #3A66B0 has lightness ~0.46, safely inside [0.2, 0.8].
	out, err := Normalize("#3A66B0")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out != "#3A66B0" {
		t.Fatalf("in-band color must round-trip, got %s", out)
	}
}

func TestNormalizeLightnessAlwaysInBand(t *testing.T) {
	inputs := []string{
		"#000000", "#FFFFFF", "#FF4500", "#2E8B57", "#1E90FF",
		"#8A2BE2", "#FFD700", "#FF69B4", "#010203", "#FEFEFE",
		"rgb(255, 0, 0)", "rgb(12, 200, 44)", "rgb(0, 0, 0)",
	}
	for _, in := range inputs {
		out, err := Normalize(in)
		if err != nil {
			t.Fatalf("normalize %q: %v", in, err)
		}
		l := lightnessOf(t, out)
		if l < 0.2-0.01 || l > 0.8+0.01 {
			t.Fatalf("normalize %q: lightness %f outside [0.2, 0.8] (%s)", in, l, out)
		}
	}
}

func TestNormalizePreservesHueAndSaturation(t *testing.T) {
	in := "#FF4500"
	h0, s0, _ := rgbToHSL(0xFF, 0x45, 0x00)

	out, err := Normalize(in)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	r, _ := strconv.ParseUint(out[1:3], 16, 8)
	g, _ := strconv.ParseUint(out[3:5], 16, 8)
	b, _ := strconv.ParseUint(out[5:7], 16, 8)
	h1, s1, _ := rgbToHSL(int(r), int(g), int(b))

	if math.Abs(h0-h1) > 0.02 {
		t.Fatalf("hue moved: %f -> %f", h0, h1)
	}
	if math.Abs(s0-s1) > 0.05 {
		t.Fatalf("saturation moved: %f -> %f", s0, s1)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"#000000", "#FFFFFF", "#FF4500", "#123456", "rgb(9, 9, 9)"}
	for _, in := range inputs {
		once, err := Normalize(in)
		if err != nil {
			t.Fatalf("normalize %q: %v", in, err)
		}
		twice, err := Normalize(once)
		if err != nil {
			t.Fatalf("normalize %q: %v", once, err)
		}
		if once != twice {
			t.Fatalf("not idempotent for %q: %s != %s", in, once, twice)
		}
	}
}

func TestNormalizeRGBTextualForm(t *testing.T) {
	out, err := Normalize("rgb(18, 52, 86)")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want, err := Normalize("#123456")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out != want {
		t.Fatalf("rgb() and hex forms disagree: %s != %s", out, want)
	}
}

func TestNormalizeCustomBounds(t *testing.T) {
	out, err := NormalizeRange("#000000", 0.4, 0.6)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if l := lightnessOf(t, out); math.Abs(l-0.4) > 0.01 {
		t.Fatalf("expected lightness ~0.4, got %f", l)
	}
}

func TestNormalizeRejectsUnsupportedFormats(t *testing.T) {
	for _, in := range []string{"", "red", "hsl(10, 20%, 30%)", "#FFF", "#GGHHII", "rgb(1,2,3,4)"} {
		if _, err := Normalize(in); !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("expected ErrUnsupportedFormat for %q, got %v", in, err)
		}
	}
}

func TestFallbackStableAndInPalette(t *testing.T) {
	first := Fallback("prodbyeagle")
	if first != Fallback("prodbyeagle") {
		t.Fatal("fallback color not stable for the same username")
	}
	found := false
	for _, c := range defaultPalette {
		if c == first {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("fallback %s not in palette", first)
	}
	// "a" is byte 97, 97%6 == 1.
	if got := Fallback("a"); got != defaultPalette[1] {
		t.Fatalf("expected %s for single-byte username, got %s", defaultPalette[1], got)
	}
}
