package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/roman-kulish/thermal-logger/internal/render"
	"github.com/roman-kulish/thermal-logger/internal/storage"
	"github.com/roman-kulish/thermal-logger/internal/thermal"
)

const (
	trackMargin   = 24
	trackDotSize  = 5
	legendHeight  = 8
	legendPadding = 4
)

var (
	ErrNoPositions = errors.New("no captures with a GPS position")

	trackBackground = color.RGBA{R: 0x10, G: 0x10, B: 0x14, A: 0xff}
	trackPathColor  = color.RGBA{R: 0x50, G: 0x50, B: 0x58, A: 0xff}
)

// TrackSummary describes a rendered track.
type TrackSummary struct {
	Points     int
	Skipped    int // captures without a position
	MinLat     float64
	MaxLat     float64
	MinLon     float64
	MaxLon     float64
	MinROIMax  float64
	MaxROIMax  float64
	Units      string
	FirstPoint image.Point
}

// TrackRenderer draws the positions of a session's captures as dots colored
// by their ROI maximum, joined in capture order.
type TrackRenderer struct {
	mapper    *render.ColorMapper
	annotator *render.Annotator
	width     int
	height    int
}

func NewTrackRenderer(colormap render.Colormap, width, height int) (*TrackRenderer, error) {
	mapper, err := render.NewColorMapper(colormap)
	if err != nil {
		return nil, err
	}

	annotator, err := render.NewAnnotator(render.WithFontSize(14, 9))
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}

	return &TrackRenderer{
		mapper:    mapper,
		annotator: annotator,
		width:     width,
		height:    height,
	}, nil
}

func (r *TrackRenderer) Close() error {
	return r.annotator.Close()
}

// Render draws the track of captures. Captures without a position are counted
// and skipped.
func (r *TrackRenderer) Render(name string, captures []*storage.Capture) (*image.RGBA, *TrackSummary, error) {
	var points []*storage.Capture
	for _, c := range captures {
		if c.HasPosition() {
			points = append(points, c)
		}
	}
	if len(points) == 0 {
		return nil, nil, ErrNoPositions
	}

	summary := TrackSummary{
		Points:    len(points),
		Skipped:   len(captures) - len(points),
		MinLat:    math.Inf(1),
		MaxLat:    math.Inf(-1),
		MinLon:    math.Inf(1),
		MaxLon:    math.Inf(-1),
		MinROIMax: math.Inf(1),
		MaxROIMax: math.Inf(-1),
		Units:     points[0].Mode.Units(),
	}
	for _, c := range points {
		summary.MinLat = min(summary.MinLat, *c.Latitude)
		summary.MaxLat = max(summary.MaxLat, *c.Latitude)
		summary.MinLon = min(summary.MinLon, *c.Longitude)
		summary.MaxLon = max(summary.MaxLon, *c.Longitude)
		summary.MinROIMax = min(summary.MinROIMax, c.ROI.Max)
		summary.MaxROIMax = max(summary.MaxROIMax, c.ROI.Max)
		if c.Mode != thermal.Radiometric {
			summary.Units = c.Mode.Units()
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(trackBackground), image.Point{}, draw.Src)

	proj := newProjection(&summary, r.width, r.height-legendHeight-legendPadding)
	summary.FirstPoint = proj.point(*points[0].Latitude, *points[0].Longitude)

	for i := 1; i < len(points); i++ {
		from := proj.point(*points[i-1].Latitude, *points[i-1].Longitude)
		to := proj.point(*points[i].Latitude, *points[i].Longitude)
		drawLine(img, from, to, trackPathColor)
	}

	for _, c := range points {
		at := proj.point(*c.Latitude, *c.Longitude)
		clr := r.mapper.Scaled(c.ROI.Max, summary.MinROIMax, summary.MaxROIMax)
		dot := image.Rect(at.X-trackDotSize/2, at.Y-trackDotSize/2, at.X+trackDotSize/2+1, at.Y+trackDotSize/2+1)
		draw.Draw(img, dot, image.NewUniform(clr), image.Point{}, draw.Src)
	}

	r.drawLegend(img)

	hud := fmt.Sprintf("%s  fixes:%d  ROI max %.1f..%.1f %s", name, summary.Points, summary.MinROIMax, summary.MaxROIMax, summary.Units)
	if err := r.annotator.DrawHUD(img, hud); err != nil {
		return nil, nil, err
	}

	return img, &summary, nil
}

// drawLegend paints the colormap along the bottom edge, coldest on the left.
func (r *TrackRenderer) drawLegend(img *image.RGBA) {
	y0 := r.height - legendHeight
	for x := 0; x < r.width; x++ {
		clr := r.mapper.Scaled(float64(x), 0, float64(r.width-1))
		for y := y0; y < r.height; y++ {
			img.SetRGBA(x, y, clr)
		}
	}
}

// projection maps latitude and longitude linearly onto the drawing area. A
// degenerate span, a single fix for instance, is centered.
type projection struct {
	minLat, maxLat float64
	minLon, maxLon float64
	width, height  int
}

func newProjection(s *TrackSummary, width, height int) projection {
	return projection{
		minLat: s.MinLat,
		maxLat: s.MaxLat,
		minLon: s.MinLon,
		maxLon: s.MaxLon,
		width:  width - 2*trackMargin,
		height: height - 2*trackMargin,
	}
}

func (p projection) point(lat, lon float64) image.Point {
	x, y := 0.5, 0.5
	if p.maxLon > p.minLon {
		x = (lon - p.minLon) / (p.maxLon - p.minLon)
	}
	if p.maxLat > p.minLat {
		y = (p.maxLat - lat) / (p.maxLat - p.minLat)
	}
	return image.Pt(
		trackMargin+int(math.Round(x*float64(p.width-1))),
		trackMargin+int(math.Round(y*float64(p.height-1))))
}

// drawLine draws a one pixel line using Bresenham's algorithm.
func drawLine(img *image.RGBA, from, to image.Point, c color.RGBA) {
	dx := abs(to.X - from.X)
	dy := -abs(to.Y - from.Y)
	sx, sy := 1, 1
	if from.X > to.X {
		sx = -1
	}
	if from.Y > to.Y {
		sy = -1
	}

	e := dx + dy
	x, y := from.X, from.Y
	for {
		if (image.Point{X: x, Y: y}).In(img.Bounds()) {
			img.SetRGBA(x, y, c)
		}
		if x == to.X && y == to.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
