// Package colorize remaps arbitrary user chat colors into a readable
// lightness band. Hue and saturation are preserved; only lightness is
// clamped, so a user's color identity survives normalization.
package colorize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnsupportedFormat is returned for any color string that is neither
// "#RRGGBB" nor "rgb(r, g, b)". It indicates a data-contract violation from
// the transport and is never swallowed here.
var ErrUnsupportedFormat = errors.New("colorize: unsupported color format")

const (
	DefaultMinLightness = 0.2
	DefaultMaxLightness = 0.8
)

var rgbRe = regexp.MustCompile(`rgb\((\d+), (\d+), (\d+)\)`)

// defaultPalette holds the colors assigned to users who never picked one.
var defaultPalette = [...]string{
	"#FF4500",
	"#2E8B57",
	"#1E90FF",
	"#8A2BE2",
	"#FFD700",
	"#FF69B4",
}

// Fallback picks a stable palette color for a user without one, keyed on
// the byte sum of the username so the same user always gets the same color.
func Fallback(username string) string {
	sum := 0
	for i := 0; i < len(username); i++ {
		sum += int(username[i])
	}
	return defaultPalette[sum%len(defaultPalette)]
}

// Normalize clamps the color's lightness into the default readable band and
// returns it as an uppercase "#RRGGBB" hex string.
func Normalize(color string) (string, error) {
	return NormalizeRange(color, DefaultMinLightness, DefaultMaxLightness)
}

// NormalizeRange is Normalize with explicit lightness bounds. The function is
// pure: the same input always yields the same output, and an input whose
// lightness already lies within [minL, maxL] round-trips unchanged up to
// channel rounding.
func NormalizeRange(color string, minL, maxL float64) (string, error) {
	r, g, b, err := parseColor(color)
	if err != nil {
		return "", err
	}

	h, s, l := rgbToHSL(r, g, b)

	if l < minL {
		l = minL
	} else if l > maxL {
		l = maxL
	}

	nr, ng, nb := hslToRGB(h, s, l)
	return fmt.Sprintf("#%02X%02X%02X", nr, ng, nb), nil
}

func parseColor(color string) (r, g, b int, err error) {
	switch {
	case strings.HasPrefix(color, "#"):
		if len(color) < 7 {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, color)
		}
		rv, err1 := strconv.ParseUint(color[1:3], 16, 8)
		gv, err2 := strconv.ParseUint(color[3:5], 16, 8)
		bv, err3 := strconv.ParseUint(color[5:7], 16, 8)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, color)
		}
		return int(rv), int(gv), int(bv), nil
	case strings.HasPrefix(color, "rgb"):
		m := rgbRe.FindStringSubmatch(color)
		if m == nil {
			return 0, 0, 0, fmt.Errorf("%w: invalid rgb() form %q", ErrUnsupportedFormat, color)
		}
		rv, _ := strconv.Atoi(m[1])
		gv, _ := strconv.Atoi(m[2])
		bv, _ := strconv.Atoi(m[3])
		return rv, gv, bv, nil
	default:
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, color)
	}
}

// rgbToHSL converts 8-bit channels to HSL with h, s, l in [0, 1).
func rgbToHSL(ri, gi, bi int) (h, s, l float64) {
	r := float64(ri) / 255
	g := float64(gi) / 255
	b := float64(bi) / 255

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	l = (max + min) / 2

	if max == min {
		return 0, 0, l
	}

	d := max - min
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}

	switch max {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	case b:
		h = (r-g)/d + 4
	}
	h /= 6

	return h, s, l
}

// hslToRGB converts back using the piecewise chroma formulation, rounding
// each channel to the nearest integer in [0, 255].
func hslToRGB(h, s, l float64) (r, g, b int) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h*6, 2)-1))
	m := l - c/2

	var rf, gf, bf float64
	switch {
	case h < 1.0/6:
		rf, gf, bf = c, x, 0
	case h < 2.0/6:
		rf, gf, bf = x, c, 0
	case h < 3.0/6:
		rf, gf, bf = 0, c, x
	case h < 4.0/6:
		rf, gf, bf = 0, x, c
	case h < 5.0/6:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}

	r = clampChannel(math.Round((rf + m) * 255))
	g = clampChannel(math.Round((gf + m) * 255))
	b = clampChannel(math.Round((bf + m) * 255))
	return r, g, b
}

func clampChannel(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return int(v)
}
