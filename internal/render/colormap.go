package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Colormap names a false-color palette for 8-bit thermal intensities.
// The names are written verbatim into file names and the index.
type Colormap string

const (
	JET     Colormap = "JET"     // blue, cyan, yellow, red
	TURBO   Colormap = "TURBO"   // improved jet with smooth luminance
	HOT     Colormap = "HOT"     // black, red, yellow, white
	RAINBOW Colormap = "RAINBOW" // violet to red hue sweep
	INFERNO Colormap = "INFERNO" // perceptually uniform black to yellow
	PLASMA  Colormap = "PLASMA"  // perceptually uniform blue to yellow

	colorMapSize = 256
)

// DefaultRotation is the order colormaps are cycled through after each save
var DefaultRotation = []Colormap{JET, TURBO, HOT, RAINBOW, INFERNO, PLASMA}

var themes = map[Colormap]func(float64) color.RGBA{
	JET:     jet,
	TURBO:   turbo,
	HOT:     hot,
	RAINBOW: rainbow,
	INFERNO: gradient(infernoStops),
	PLASMA:  gradient(plasmaStops),
}

// ParseColormap returns the colormap named s, case-insensitively.
func ParseColormap(s string) (Colormap, error) {
	c := Colormap(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := themes[c]; !ok {
		return "", fmt.Errorf("unknown colormap '%s'", s)
	}
	return c, nil
}

// ColorMapper maps intensities to colors through a pre-computed 256 entry table
type ColorMapper struct {
	name     Colormap
	colorMap [colorMapSize]color.RGBA
}

// NewColorMapper builds the lookup table for the named colormap.
func NewColorMapper(name Colormap) (*ColorMapper, error) {
	theme, ok := themes[name]
	if !ok {
		return nil, fmt.Errorf("unknown colormap '%s'", name)
	}

	cm := ColorMapper{name: name}
	for i := range cm.colorMap {
		cm.colorMap[i] = theme(float64(i) / float64(colorMapSize-1))
	}
	return &cm, nil
}

func (cm *ColorMapper) Name() Colormap {
	return cm.name
}

// Color returns the color of an 8-bit intensity.
func (cm *ColorMapper) Color(v uint8) color.RGBA {
	return cm.colorMap[v]
}

// Scaled returns the color of v within [lo, hi], clamping out of range values.
func (cm *ColorMapper) Scaled(v, lo, hi float64) color.RGBA {
	if hi <= lo {
		return cm.colorMap[0]
	}
	index := int((v - lo) / (hi - lo) * float64(colorMapSize-1))
	return cm.colorMap[max(0, min(colorMapSize-1, index))]
}

// Colorize renders an 8-bit frame through the lookup table.
func (cm *ColorMapper) Colorize(gray *image.Gray) *image.RGBA {
	b := gray.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			img.SetRGBA(x, y, cm.colorMap[gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y])
		}
	}
	return img
}

func rgb(r, g, b float64) color.RGBA {
	return color.RGBA{
		R: uint8(math.Round(clamp01(r) * 255)),
		G: uint8(math.Round(clamp01(g) * 255)),
		B: uint8(math.Round(clamp01(b) * 255)),
		A: 255,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func jet(v float64) color.RGBA {
	return rgb(
		1.5-math.Abs(4*v-3),
		1.5-math.Abs(4*v-2),
		1.5-math.Abs(4*v-1),
	)
}

func hot(v float64) color.RGBA {
	return rgb(3*v, 3*v-1, 3*v-2)
}

func rainbow(v float64) color.RGBA {
	r, g, b := colorful.Hsv(270*(1-v), 1, 1).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// turbo uses the polynomial fit published with the Turbo colormap.
func turbo(v float64) color.RGBA {
	r := 0.13572138 + v*(4.61539260+v*(-42.66032258+v*(132.13108234+v*(-152.94239396+v*59.28637943))))
	g := 0.09140261 + v*(2.19418839+v*(4.84296658+v*(-14.18503333+v*(4.27729857+v*2.82956604))))
	b := 0.10667330 + v*(12.64194608+v*(-60.58204836+v*(110.36276771+v*(-89.90310912+v*27.34824973))))
	return rgb(r, g, b)
}

var (
	infernoStops = []string{
		"#000004", "#1f0c48", "#550f6d", "#88226a", "#ba3655",
		"#e35933", "#f98c0a", "#f9c932", "#fcffa4",
	}
	plasmaStops = []string{
		"#0d0887", "#41049d", "#6a00a8", "#8f0da4", "#b12a90",
		"#cc4778", "#e16462", "#f2844b", "#f0f921",
	}
)

// gradient interpolates evenly spaced color stops in RGB space.
func gradient(hexStops []string) func(float64) color.RGBA {
	stops := make([]colorful.Color, len(hexStops))
	for i, h := range hexStops {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(fmt.Sprintf("render: bad color stop %s: %s", h, err))
		}
		stops[i] = c
	}

	return func(v float64) color.RGBA {
		pos := clamp01(v) * float64(len(stops)-1)
		i := min(int(pos), len(stops)-2)
		c := stops[i].BlendRgb(stops[i+1], pos-float64(i))
		return rgb(c.R, c.G, c.B)
	}
}
