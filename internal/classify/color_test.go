package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want Color
	}{
		{"#FF0000", Color{R: 255, A: 1}},
		{"#0f0", Color{G: 255, A: 1}},
		{"#0000ff80", Color{B: 255, A: 128.0 / 255}},
		{"#fff8", Color{R: 255, G: 255, B: 255, A: 136.0 / 255}},
		{"rgb(1, 2, 3)", Color{R: 1, G: 2, B: 3, A: 1}},
		{"RGBA(255,255,255,0.5)", Color{R: 255, G: 255, B: 255, A: 0.5}},
		{"rgb(100% 0% 0% / 25%)", Color{R: 255, A: 0.25}},
		{"rgb(0 128 255)", Color{G: 128, B: 255, A: 1}},
		{"hsl(0, 100%, 50%)", Color{R: 255, A: 1}},
		{"hsl(120deg 100% 50%)", Color{G: 255, A: 1}},
		{"hsla(0.5turn, 100%, 50%, 1)", Color{G: 255, B: 255, A: 1}},
		{"hwb(240 0% 0%)", Color{B: 255, A: 1}},
		{"hwb(0 50% 50%)", Color{R: 128, G: 128, B: 128, A: 1}},
		{"red", Color{R: 255, A: 1}},
		{"  RebeccaPurple ", Color{R: 0x66, G: 0x33, B: 0x99, A: 1}},
		{"transparent", Color{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want.R, got.R)
			assert.Equal(t, tt.want.G, got.G)
			assert.Equal(t, tt.want.B, got.B)
			assert.InDelta(t, tt.want.A, got.A, 0.001)
		})
	}
}

func TestParseColor_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"#",
		"#ff",
		"#12345",
		"#gggggg",
		"rgb(1, 2)",
		"rgb(1 2 3 4)",
		"rgb(256, 0, 0)",
		"rgb(-1, 0, 0)",
		"rgb(1, 2, 3, 2)",
		"rgb(1, 2 / 3)",
		"rgb(1 2 3",
		"hsl(0, 120%, 50%)",
		"cmyk(0, 0, 0, 0)",
		"console.log('x')",
		"not a color",
		"reddish",
	} {
		_, err := ParseColor(in)
		assert.ErrorIs(t, err, ErrInvalidColor, in)
	}
}

func TestColor_Hex(t *testing.T) {
	assert.Equal(t, "#ff0000", Color{R: 255, A: 1}.Hex())
	assert.Equal(t, "#00000080", Color{A: 128.0 / 255}.Hex())
}
