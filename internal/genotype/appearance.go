package genotype

import (
	"fmt"
	"math"
	"strings"

	"cubelife/internal/model"
)

var materials = []model.Material{
	{Name: "matte", Roughness: 0.9, Metalness: 0.0},
	{Name: "glossy", Roughness: 0.25, Metalness: 0.05},
	{Name: "metallic", Roughness: 0.35, Metalness: 0.9},
	{Name: "rubber", Roughness: 0.8, Metalness: 0.0},
	{Name: "crystal", Roughness: 0.05, Metalness: 0.2},
	{Name: "stone", Roughness: 0.95, Metalness: 0.1},
}

// MaterialFor picks the material of a block from its material seed.
func MaterialFor(seed uint8) model.Material {
	m := materials[int(seed)%len(materials)]
	// the upper bits nudge roughness so equal materials still differ slightly
	m.Roughness = math.Min(1, m.Roughness+float64(seed/uint8(len(materials)))/255*0.2)
	return m
}

// ColorFor maps a color seed onto the hue wheel at fixed saturation and
// lightness.
func ColorFor(seed uint8) model.Color {
	hue := float64(seed) / 256 * 360
	return hslToRGB(hue, 0.65, 0.55)
}

func hslToRGB(h, s, l float64) model.Color {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return model.Color{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
	}
}

var syllables = []string{
	"ka", "vo", "mi", "zu", "ren", "ta", "lo", "shi",
	"qua", "bex", "dri", "no", "pa", "yel", "gor", "fi",
}

// NameFor builds a creature name from the sub-seed of its most recent block.
func NameFor(subseed uint32) string {
	var sb strings.Builder
	for i := 0; i < 3; i++ {
		sb.WriteString(syllables[(subseed>>(4*i))&0xf])
	}
	word := sb.String()
	return fmt.Sprintf("%s%s-%08x", strings.ToUpper(word[:1]), word[1:], subseed)
}
