package thermal

import (
	"image"
	"math"
	"time"
)

const (
	Radiometric Mode = iota // calibrated 16-bit capture, metric in °C
	RawFallback             // uncalibrated 8-bit capture, metric is raw intensity
)

// Mode tells how a frame was acquired. It is decided per frame and never mixed.
type Mode int

func (m Mode) String() string {
	if m == Radiometric {
		return "Radiometric"
	}
	return "RawFallback"
}

// ParseMode is the inverse of Mode.String. Unknown names parse as RawFallback.
func ParseMode(s string) Mode {
	if s == Radiometric.String() {
		return Radiometric
	}
	return RawFallback
}

// Units returns the unit label of the metric matrix for this mode.
func (m Mode) Units() string {
	if m == Radiometric {
		return "C"
	}
	return "raw"
}

// Frame is one sampling instant's sensor output
type Frame struct {
	Mode       Mode
	Metric     *Metric       // °C when Radiometric, raw intensity otherwise
	Display8   *image.Gray   // used only for colorization
	Raw16      *image.Gray16 // present only when Radiometric
	Fallback   error         // why the calibrated path was skipped, nil when Radiometric
	CapturedAt time.Time
}

// Stats holds min/max/mean of a matrix region
type Stats struct {
	Min  float64
	Max  float64
	Mean float64
}

// Metric is a row-major float32 matrix
type Metric struct {
	Pix    []float32
	Width  int
	Height int
}

// NewMetric allocates a zeroed w x h matrix.
func NewMetric(w, h int) *Metric {
	return &Metric{
		Pix:    make([]float32, w*h),
		Width:  w,
		Height: h,
	}
}

func (m *Metric) At(x, y int) float32 {
	return m.Pix[y*m.Width+x]
}

func (m *Metric) Set(x, y int, v float32) {
	m.Pix[y*m.Width+x] = v
}

func (m *Metric) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// Stats returns statistics over the whole matrix.
func (m *Metric) Stats() Stats {
	return m.RegionStats(m.Bounds())
}

// RegionStats returns statistics over r clipped to the matrix bounds. An empty
// region yields zero Stats.
func (m *Metric) RegionStats(r image.Rectangle) Stats {
	r = r.Intersect(m.Bounds())
	if r.Empty() {
		return Stats{}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	var sum float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x := r.Min.X; x < r.Max.X; x++ {
			v := float64(row[x])
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			sum += v
		}
	}

	return Stats{
		Min:  lo,
		Max:  hi,
		Mean: sum / float64(r.Dx()*r.Dy()),
	}
}

// MetricFromGray converts an 8-bit frame to a metric matrix of raw intensities.
func MetricFromGray(g *image.Gray) *Metric {
	b := g.Bounds()
	m := NewMetric(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			m.Set(x, y, float32(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
		}
	}
	return m
}
