package classify

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidColor is returned when text is not a recognized color literal.
var ErrInvalidColor = errors.New("invalid color")

// Color is an sRGB color with alpha in [0,1].
type Color struct {
	R, G, B uint8
	A       float64
}

// Hex formats the color as #rrggbb, or #rrggbbaa when translucent.
func (c Color) Hex() string {
	if c.A >= 1 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, uint8(math.Round(c.A*255)))
}

// ParseColor parses a CSS color literal. Accepted forms, case-insensitive:
//
//	#rgb  #rgba  #rrggbb  #rrggbbaa
//	rgb(r, g, b)  rgba(r, g, b, a)  rgb(r g b [/ a])
//	hsl(h, s%, l%)  hsla(h, s%, l%, a)  hsl(h s% l% [/ a])
//	hwb(h w% b% [/ a])
//	named colors and "transparent"
//
// r, g, b are numbers in [0,255] or percentages in [0%,100%]. Hues are
// numbers with an optional deg, grad, rad or turn unit. Alpha is a number in
// [0,1] or a percentage. Out-of-range components are rejected.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Color{}, ErrInvalidColor
	}

	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}

	if open := strings.IndexByte(s, '('); open > 0 {
		if !strings.HasSuffix(s, ")") {
			return Color{}, fmt.Errorf("%w: unterminated %q", ErrInvalidColor, s)
		}
		return parseFunc(strings.TrimSpace(s[:open]), s[open+1:len(s)-1])
	}

	if v, ok := namedColors[s]; ok {
		return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 1}, nil
	}
	if s == "transparent" {
		return Color{}, nil
	}

	return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

func parseHex(h string) (Color, error) {
	for _, r := range h {
		if !isHexDigit(r) {
			return Color{}, fmt.Errorf("%w: bad hex digit %q", ErrInvalidColor, r)
		}
	}

	digit := func(i int) uint8 {
		v, _ := strconv.ParseUint(h[i:i+1], 16, 8)
		return uint8(v)
	}
	pair := func(i int) uint8 {
		v, _ := strconv.ParseUint(h[i:i+2], 16, 8)
		return uint8(v)
	}

	switch len(h) {
	case 3, 4:
		c := Color{R: digit(0) * 17, G: digit(1) * 17, B: digit(2) * 17, A: 1}
		if len(h) == 4 {
			c.A = float64(digit(3)*17) / 255
		}
		return c, nil
	case 6, 8:
		c := Color{R: pair(0), G: pair(2), B: pair(4), A: 1}
		if len(h) == 8 {
			c.A = float64(pair(6)) / 255
		}
		return c, nil
	}
	return Color{}, fmt.Errorf("%w: hex length %d", ErrInvalidColor, len(h))
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}

// splitArgs splits function arguments in either legacy comma syntax or
// modern space syntax with an optional "/ alpha" suffix.
func splitArgs(body string) ([]string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrInvalidColor
	}

	if strings.Contains(body, ",") {
		if strings.Contains(body, "/") {
			return nil, fmt.Errorf("%w: mixed separators", ErrInvalidColor)
		}
		parts := strings.Split(body, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] == "" || strings.ContainsAny(parts[i], " \t") {
				return nil, fmt.Errorf("%w: bad argument list", ErrInvalidColor)
			}
		}
		if len(parts) != 3 && len(parts) != 4 {
			return nil, fmt.Errorf("%w: want 3 or 4 arguments", ErrInvalidColor)
		}
		return parts, nil
	}

	channels, alpha, hasAlpha := strings.Cut(body, "/")
	parts := strings.Fields(channels)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: want 3 channels", ErrInvalidColor)
	}
	if hasAlpha {
		alpha = strings.TrimSpace(alpha)
		if alpha == "" || strings.ContainsAny(alpha, " \t/") {
			return nil, fmt.Errorf("%w: bad alpha", ErrInvalidColor)
		}
		parts = append(parts, alpha)
	}
	return parts, nil
}

func parseFunc(name, body string) (Color, error) {
	args, err := splitArgs(body)
	if err != nil {
		return Color{}, err
	}

	alpha := 1.0
	if len(args) == 4 {
		if alpha, err = parseAlpha(args[3]); err != nil {
			return Color{}, err
		}
	}

	switch name {
	case "rgb", "rgba":
		var ch [3]uint8
		for i := 0; i < 3; i++ {
			if ch[i], err = parseChannel(args[i]); err != nil {
				return Color{}, err
			}
		}
		return Color{R: ch[0], G: ch[1], B: ch[2], A: alpha}, nil

	case "hsl", "hsla", "hwb":
		hue, err := parseHue(args[0])
		if err != nil {
			return Color{}, err
		}
		x, err := parsePercent(args[1])
		if err != nil {
			return Color{}, err
		}
		y, err := parsePercent(args[2])
		if err != nil {
			return Color{}, err
		}

		var r, g, b float64
		if name == "hwb" {
			r, g, b = hwbToRGB(hue, x, y)
		} else {
			r, g, b = hslToRGB(hue, x, y)
		}
		return Color{R: to8(r), G: to8(g), B: to8(b), A: alpha}, nil
	}

	return Color{}, fmt.Errorf("%w: unknown function %q", ErrInvalidColor, name)
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: bad number %q", ErrInvalidColor, s)
	}
	return v, nil
}

// parseChannel parses an rgb component as 0..255 or 0%..100%.
func parseChannel(s string) (uint8, error) {
	if p, ok := strings.CutSuffix(s, "%"); ok {
		v, err := parseNumber(p)
		if err != nil || v < 0 || v > 100 {
			return 0, fmt.Errorf("%w: channel %q", ErrInvalidColor, s)
		}
		return to8(v / 100), nil
	}
	v, err := parseNumber(s)
	if err != nil || v < 0 || v > 255 {
		return 0, fmt.Errorf("%w: channel %q", ErrInvalidColor, s)
	}
	return uint8(math.Round(v)), nil
}

// parsePercent parses a saturation/lightness/whiteness/blackness value into
// [0,1]. The % sign is optional.
func parsePercent(s string) (float64, error) {
	v, err := parseNumber(strings.TrimSuffix(s, "%"))
	if err != nil || v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: percentage %q", ErrInvalidColor, s)
	}
	return v / 100, nil
}

func parseAlpha(s string) (float64, error) {
	if p, ok := strings.CutSuffix(s, "%"); ok {
		v, err := parseNumber(p)
		if err != nil || v < 0 || v > 100 {
			return 0, fmt.Errorf("%w: alpha %q", ErrInvalidColor, s)
		}
		return v / 100, nil
	}
	v, err := parseNumber(s)
	if err != nil || v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: alpha %q", ErrInvalidColor, s)
	}
	return v, nil
}

// parseHue returns the hue in degrees normalized to [0,360).
func parseHue(s string) (float64, error) {
	units := []struct {
		suffix string
		scale  float64
	}{
		{"deg", 1},
		{"grad", 0.9},
		{"rad", 180 / math.Pi},
		{"turn", 360},
	}

	scale := 1.0
	for _, u := range units {
		if v, ok := strings.CutSuffix(s, u.suffix); ok {
			s, scale = v, u.scale
			break
		}
	}

	v, err := parseNumber(s)
	if err != nil {
		return 0, fmt.Errorf("%w: hue %q", ErrInvalidColor, s)
	}
	h := math.Mod(v*scale, 360)
	if h < 0 {
		h += 360
	}
	return h, nil
}

func hslToRGB(h, s, l float64) (float64, float64, float64) {
	f := func(n float64) float64 {
		k := math.Mod(n+h/30, 12)
		a := s * math.Min(l, 1-l)
		return l - a*math.Max(-1, math.Min(math.Min(k-3, 9-k), 1))
	}
	return f(0), f(8), f(4)
}

func hwbToRGB(h, w, b float64) (float64, float64, float64) {
	if w+b >= 1 {
		gray := w / (w + b)
		return gray, gray, gray
	}
	r, g, bl := hslToRGB(h, 1, 0.5)
	scale := 1 - w - b
	return r*scale + w, g*scale + w, bl*scale + w
}

func to8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// namedColors holds the CSS Color Module Level 4 named colors.
var namedColors = map[string]uint32{
	"aliceblue": 0xf0f8ff, "antiquewhite": 0xfaebd7, "aqua": 0x00ffff, "aquamarine": 0x7fffd4,
	"azure": 0xf0ffff, "beige": 0xf5f5dc, "bisque": 0xffe4c4, "black": 0x000000,
	"blanchedalmond": 0xffebcd, "blue": 0x0000ff, "blueviolet": 0x8a2be2, "brown": 0xa52a2a,
	"burlywood": 0xdeb887, "cadetblue": 0x5f9ea0, "chartreuse": 0x7fff00, "chocolate": 0xd2691e,
	"coral": 0xff7f50, "cornflowerblue": 0x6495ed, "cornsilk": 0xfff8dc, "crimson": 0xdc143c,
	"cyan": 0x00ffff, "darkblue": 0x00008b, "darkcyan": 0x008b8b, "darkgoldenrod": 0xb8860b,
	"darkgray": 0xa9a9a9, "darkgreen": 0x006400, "darkgrey": 0xa9a9a9, "darkkhaki": 0xbdb76b,
	"darkmagenta": 0x8b008b, "darkolivegreen": 0x556b2f, "darkorange": 0xff8c00, "darkorchid": 0x9932cc,
	"darkred": 0x8b0000, "darksalmon": 0xe9967a, "darkseagreen": 0x8fbc8f, "darkslateblue": 0x483d8b,
	"darkslategray": 0x2f4f4f, "darkslategrey": 0x2f4f4f, "darkturquoise": 0x00ced1, "darkviolet": 0x9400d3,
	"deeppink": 0xff1493, "deepskyblue": 0x00bfff, "dimgray": 0x696969, "dimgrey": 0x696969,
	"dodgerblue": 0x1e90ff, "firebrick": 0xb22222, "floralwhite": 0xfffaf0, "forestgreen": 0x228b22,
	"fuchsia": 0xff00ff, "gainsboro": 0xdcdcdc, "ghostwhite": 0xf8f8ff, "gold": 0xffd700,
	"goldenrod": 0xdaa520, "gray": 0x808080, "green": 0x008000, "greenyellow": 0xadff2f,
	"grey": 0x808080, "honeydew": 0xf0fff0, "hotpink": 0xff69b4, "indianred": 0xcd5c5c,
	"indigo": 0x4b0082, "ivory": 0xfffff0, "khaki": 0xf0e68c, "lavender": 0xe6e6fa,
	"lavenderblush": 0xfff0f5, "lawngreen": 0x7cfc00, "lemonchiffon": 0xfffacd, "lightblue": 0xadd8e6,
	"lightcoral": 0xf08080, "lightcyan": 0xe0ffff, "lightgoldenrodyellow": 0xfafad2, "lightgray": 0xd3d3d3,
	"lightgreen": 0x90ee90, "lightgrey": 0xd3d3d3, "lightpink": 0xffb6c1, "lightsalmon": 0xffa07a,
	"lightseagreen": 0x20b2aa, "lightskyblue": 0x87cefa, "lightslategray": 0x778899, "lightslategrey": 0x778899,
	"lightsteelblue": 0xb0c4de, "lightyellow": 0xffffe0, "lime": 0x00ff00, "limegreen": 0x32cd32,
	"linen": 0xfaf0e6, "magenta": 0xff00ff, "maroon": 0x800000, "mediumaquamarine": 0x66cdaa,
	"mediumblue": 0x0000cd, "mediumorchid": 0xba55d3, "mediumpurple": 0x9370db, "mediumseagreen": 0x3cb371,
	"mediumslateblue": 0x7b68ee, "mediumspringgreen": 0x00fa9a, "mediumturquoise": 0x48d1cc, "mediumvioletred": 0xc71585,
	"midnightblue": 0x191970, "mintcream": 0xf5fffa, "mistyrose": 0xffe4e1, "moccasin": 0xffe4b5,
	"navajowhite": 0xffdead, "navy": 0x000080, "oldlace": 0xfdf5e6, "olive": 0x808000,
	"olivedrab": 0x6b8e23, "orange": 0xffa500, "orangered": 0xff4500, "orchid": 0xda70d6,
	"palegoldenrod": 0xeee8aa, "palegreen": 0x98fb98, "paleturquoise": 0xafeeee, "palevioletred": 0xdb7093,
	"papayawhip": 0xffefd5, "peachpuff": 0xffdab9, "peru": 0xcd853f, "pink": 0xffc0cb,
	"plum": 0xdda0dd, "powderblue": 0xb0e0e6, "purple": 0x800080, "rebeccapurple": 0x663399,
	"red": 0xff0000, "rosybrown": 0xbc8f8f, "royalblue": 0x4169e1, "saddlebrown": 0x8b4513,
	"salmon": 0xfa8072, "sandybrown": 0xf4a460, "seagreen": 0x2e8b57, "seashell": 0xfff5ee,
	"sienna": 0xa0522d, "silver": 0xc0c0c0, "skyblue": 0x87ceeb, "slateblue": 0x6a5acd,
	"slategray": 0x708090, "slategrey": 0x708090, "snow": 0xfffafa, "springgreen": 0x00ff7f,
	"steelblue": 0x4682b4, "tan": 0xd2b48c, "teal": 0x008080, "thistle": 0xd8bfd8,
	"tomato": 0xff6347, "turquoise": 0x40e0d0, "violet": 0xee82ee, "wheat": 0xf5deb3,
	"white": 0xffffff, "whitesmoke": 0xf5f5f5, "yellow": 0xffff00, "yellowgreen": 0x9acd32,
}
