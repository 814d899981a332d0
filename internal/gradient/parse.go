// Package gradient parses CSS linear-gradient strings and rasterizes their
// color stops into fixed-width lookup tables.
package gradient

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultAngle is used when the gradient has no direction token ("to bottom").
const DefaultAngle = 180.0

const envelopeName = "linear-gradient"

// ColorStop is one anchor of a gradient. Color is passed through verbatim.
// Position is a normalized fraction, nil when the stop has no explicit position.
type ColorStop struct {
	Position *float64 `json:"position,omitempty"`
	Color    string   `json:"color"`
}

// HasPosition reports whether the stop carries an explicit position.
func (s ColorStop) HasPosition() bool { return s.Position != nil }

// Gradient is a parsed linear gradient. Angle is in degrees, 0 meaning "to top".
type Gradient struct {
	Stops []ColorStop `json:"stops"`
	Angle float64     `json:"angle"`
}

var directions = map[string]float64{
	"to top":          0,
	"to top right":    45,
	"to right top":    45,
	"to right":        90,
	"to bottom right": 135,
	"to right bottom": 135,
	"to bottom":       180,
	"to bottom left":  225,
	"to left bottom":  225,
	"to left":         270,
	"to top left":     315,
	"to left top":     315,
}

var (
	angleRe    = regexp.MustCompile(`(?i)^([+-]?(?:\d+\.?\d*|\.\d+))(deg)?$`)
	positionRe = regexp.MustCompile(`^([+-]?(?:\d+\.?\d*|\.\d+))(%?)$`)
)

// Parse parses a linear-gradient(<direction-or-angle>, <stop>, <stop>, ...)
// string. Only this constrained grammar is supported; color literals are not
// validated here.
func Parse(input string) (Gradient, error) {
	inner, err := envelope(strings.TrimSpace(input))
	if err != nil {
		return Gradient{}, &ParseError{Input: input, Reason: err.Error()}
	}
	if strings.TrimSpace(inner) == "" {
		return Gradient{}, &ParseError{Input: input, Reason: "no color stops"}
	}

	segments := splitTopLevel(inner)
	g := Gradient{Angle: DefaultAngle}
	if angle, ok := parseDirection(segments[0]); ok {
		g.Angle = angle
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return Gradient{}, &ParseError{Input: input, Reason: "no color stops after direction"}
	}

	g.Stops = make([]ColorStop, 0, len(segments))
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return Gradient{}, &ParseError{Input: input, Reason: "empty color stop at index " + strconv.Itoa(i)}
		}
		g.Stops = append(g.Stops, parseStop(seg))
	}
	return g, nil
}

// envelope returns the argument text of linear-gradient( ... ). The closing
// parenthesis of the envelope must be the last character of src.
func envelope(src string) (string, error) {
	if len(src) < len(envelopeName) || !strings.EqualFold(src[:len(envelopeName)], envelopeName) {
		return "", errors.New("missing linear-gradient prefix")
	}
	rest := strings.TrimLeft(src[len(envelopeName):], " \t\r\n")
	if rest == "" || rest[0] != '(' {
		return "", errors.New("missing opening parenthesis")
	}

	depth := 0
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				if i != len(rest)-1 {
					return "", errors.New("unexpected text after closing parenthesis")
				}
				return rest[1:i], nil
			}
		}
	}
	return "", errors.New("missing closing parenthesis")
}

// splitTopLevel splits on commas that are not nested inside parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func parseDirection(seg string) (float64, bool) {
	seg = strings.TrimSpace(seg)
	if m := angleRe.FindStringSubmatch(seg); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return v, true
		}
	}
	key := strings.Join(strings.Fields(strings.ToLower(seg)), " ")
	angle, ok := directions[key]
	return angle, ok
}

// parseStop splits "<color> [<position>]". A trailing token that is not a
// number or percentage stays part of the color literal.
func parseStop(seg string) ColorStop {
	idx := strings.LastIndexAny(seg, " \t\r\n")
	if idx < 0 {
		return ColorStop{Color: seg}
	}
	m := positionRe.FindStringSubmatch(seg[idx+1:])
	if m == nil {
		return ColorStop{Color: seg}
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return ColorStop{Color: seg}
	}
	if m[2] == "%" {
		v /= 100
	}
	return ColorStop{Color: strings.TrimSpace(seg[:idx]), Position: &v}
}

// String renders the gradient back into canonical CSS form.
func (g Gradient) String() string {
	var b strings.Builder
	b.WriteString(envelopeName)
	b.WriteByte('(')
	b.WriteString(strconv.FormatFloat(g.Angle, 'f', -1, 64))
	b.WriteString("deg")
	for _, s := range g.Stops {
		b.WriteString(", ")
		b.WriteString(s.Color)
		if s.Position != nil {
			b.WriteByte(' ')
			b.WriteString(strconv.FormatFloat(*s.Position*100, 'f', -1, 64))
			b.WriteByte('%')
		}
	}
	b.WriteByte(')')
	return b.String()
}

// Hash returns a stable 64-bit FNV-1a hash of the angle and stops. Gradients
// that differ only in whitespace or keyword spelling hash equal.
func (g Gradient) Hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(g.Angle))
	h.Write(buf[:])
	for _, s := range g.Stops {
		h.Write([]byte(strings.ToLower(s.Color)))
		h.Write([]byte{0})
		if s.Position != nil {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(*s.Position))
			h.Write([]byte{1})
			h.Write(buf[:])
		} else {
			h.Write([]byte{2})
		}
	}
	return h.Sum64()
}
