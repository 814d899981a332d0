package gradient

import (
	"image/color"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// ParseColor resolves a CSS color literal to straight-alpha RGBA.
// Supported: #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(), rgba(), hsl(), hsla(),
// CSS named colors and "transparent".
func ParseColor(literal string) (color.NRGBA, error) {
	s := strings.ToLower(strings.TrimSpace(literal))
	switch {
	case s == "transparent":
		return color.NRGBA{}, nil
	case strings.HasPrefix(s, "#"):
		return parseHexColor(literal, s)
	case strings.HasSuffix(s, ")"):
		return parseFuncColor(literal, s)
	}
	if c, ok := colornames.Map[s]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
	}
	return color.NRGBA{}, &ColorError{Literal: literal}
}

func parseHexColor(literal, s string) (color.NRGBA, error) {
	var rgb, alpha string
	switch len(s) {
	case 4, 7:
		rgb = s
	case 5:
		rgb, alpha = s[:4], strings.Repeat(s[4:], 2)
	case 9:
		rgb, alpha = s[:7], s[7:]
	default:
		return color.NRGBA{}, &ColorError{Literal: literal}
	}

	c, err := colorful.Hex(rgb)
	if err != nil {
		return color.NRGBA{}, &ColorError{Literal: literal}
	}
	r, g, b := c.RGB255()
	out := color.NRGBA{R: r, G: g, B: b, A: 255}
	if alpha != "" {
		a, err := strconv.ParseUint(alpha, 16, 8)
		if err != nil {
			return color.NRGBA{}, &ColorError{Literal: literal}
		}
		out.A = uint8(a)
	}
	return out, nil
}

func parseFuncColor(literal, s string) (color.NRGBA, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return color.NRGBA{}, &ColorError{Literal: literal}
	}
	name := strings.TrimSpace(s[:open])
	args := strings.Fields(strings.NewReplacer(",", " ", "/", " ").Replace(s[open+1 : len(s)-1]))
	if len(args) != 3 && len(args) != 4 {
		return color.NRGBA{}, &ColorError{Literal: literal}
	}

	alpha := 1.0
	if len(args) == 4 {
		a, ok := parseFraction(args[3])
		if !ok {
			return color.NRGBA{}, &ColorError{Literal: literal}
		}
		alpha = a
	}

	var c colorful.Color
	switch name {
	case "rgb", "rgba":
		var ch [3]float64
		for i := range ch {
			v, ok := parseChannel(args[i])
			if !ok {
				return color.NRGBA{}, &ColorError{Literal: literal}
			}
			ch[i] = v
		}
		c = colorful.Color{R: ch[0], G: ch[1], B: ch[2]}
	case "hsl", "hsla":
		h, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "deg"), 64)
		if err != nil {
			return color.NRGBA{}, &ColorError{Literal: literal}
		}
		sat, ok1 := parsePercent(args[1])
		light, ok2 := parsePercent(args[2])
		if !ok1 || !ok2 {
			return color.NRGBA{}, &ColorError{Literal: literal}
		}
		h = math.Mod(h, 360)
		if h < 0 {
			h += 360
		}
		c = colorful.Hsl(h, sat, light)
	default:
		return color.NRGBA{}, &ColorError{Literal: literal}
	}

	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(alpha * 255))}, nil
}

// parseChannel parses an rgb() channel ("128" or "50%") into [0,1].
func parseChannel(tok string) (float64, bool) {
	if strings.HasSuffix(tok, "%") {
		return parsePercent(tok)
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return clamp01(v / 255), true
}

// parseFraction parses an alpha value ("0.5" or "50%") into [0,1].
func parseFraction(tok string) (float64, bool) {
	if strings.HasSuffix(tok, "%") {
		return parsePercent(tok)
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return clamp01(v), true
}

// parsePercent parses "40%" (or a bare 40) into 0.4.
func parsePercent(tok string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(tok, "%"), 64)
	if err != nil {
		return 0, false
	}
	return clamp01(v / 100), true
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
