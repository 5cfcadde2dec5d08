package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi = 72.0

	defaultFontSize    = 9.0
	defaultMinFontSize = 6.0
	fontSizeStep       = 0.5

	hudMarginX   = 4
	hudBaselineY = 10
	labelGap     = 4
)

// WithFontSize sets the HUD font size in points and the smallest size the HUD
// may shrink to when the text does not fit the frame width.
func WithFontSize(size, minSize float64) func(*Annotator) {
	return func(a *Annotator) {
		a.fontSize = size
		a.minFontSize = min(size, minSize)
	}
}

// Annotator draws the HUD line and the hotspot box onto colorized frames. It is
// not safe for concurrent use.
type Annotator struct {
	font    *truetype.Font
	context *freetype.Context
	faces   map[float64]font.Face

	fontSize    float64
	minFontSize float64
	color       color.Color
}

// NewAnnotator parses the embedded Go regular font and prepares a drawing
// context.
func NewAnnotator(options ...func(*Annotator)) (*Annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	a := Annotator{
		font:        parsedFont,
		faces:       make(map[float64]font.Face),
		fontSize:    defaultFontSize,
		minFontSize: defaultMinFontSize,
		color:       color.White,
	}

	for _, option := range options {
		option(&a)
	}

	a.context = freetype.NewContext()
	a.context.SetDPI(dpi)
	a.context.SetFont(parsedFont)
	a.context.SetHinting(font.HintingFull)
	a.context.SetSrc(image.NewUniform(a.color))

	return &a, nil
}

func (a *Annotator) face(size float64) font.Face {
	if f, ok := a.faces[size]; ok {
		return f
	}

	f := truetype.NewFace(a.font, &truetype.Options{
		Size:    size,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	a.faces[size] = f
	return f
}

// DrawHUD writes text along the top edge, shrinking the font until it fits the
// frame width or the minimum size is reached.
func (a *Annotator) DrawHUD(img *image.RGBA, text string) error {
	width := img.Bounds().Dx() - 2*hudMarginX

	size := a.fontSize
	for font.MeasureString(a.face(size), text).Round() > width && size-fontSizeStep >= a.minFontSize {
		size -= fontSizeStep
	}

	ascent := a.face(size).Metrics().Ascent.Round()
	baseline := max(hudBaselineY, ascent+2)

	if err := a.drawString(img, text, size, image.Pt(img.Bounds().Min.X+hudMarginX, img.Bounds().Min.Y+baseline)); err != nil {
		return fmt.Errorf("drawing HUD: %w", err)
	}
	return nil
}

// DrawROI outlines box and places label to its right, kept inside the frame.
func (a *Annotator) DrawROI(img *image.RGBA, box image.Rectangle, label string) error {
	drawRect(img, box, a.color)

	if label == "" {
		return nil
	}

	face := a.face(a.minFontSize)
	labelWidth := font.MeasureString(face, label).Round()
	ascent := face.Metrics().Ascent.Round()
	b := img.Bounds()

	x := min(b.Max.X-labelWidth, max(b.Min.X, box.Max.X+labelGap))
	x = max(b.Min.X, x)
	y := max(b.Min.Y+ascent+1, box.Min.Y-labelGap/2)

	if err := a.drawString(img, label, a.minFontSize, image.Pt(x, y)); err != nil {
		return fmt.Errorf("drawing ROI label: %w", err)
	}
	return nil
}

func (a *Annotator) drawString(img *image.RGBA, s string, size float64, at image.Point) error {
	a.context.SetFontSize(size)
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	_, err := a.context.DrawString(s, freetype.Pt(at.X, at.Y))
	return err
}

// Close releases the cached font faces.
func (a *Annotator) Close() error {
	for size, f := range a.faces {
		if err := f.Close(); err != nil {
			return err
		}
		delete(a.faces, size)
	}
	return nil
}

// drawRect draws a one pixel outline of r (Max exclusive) clipped to img.
func drawRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}

	x2, y2 := r.Max.X-1, r.Max.Y-1
	for x := r.Min.X; x <= x2; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, y2, c)
	}
	for y := r.Min.Y; y <= y2; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(x2, y, c)
	}
}
