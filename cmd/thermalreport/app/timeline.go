package app

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/roman-kulish/thermal-logger/internal/storage"
	"github.com/roman-kulish/thermal-logger/internal/thermal"
)

// Plot.Save renders raster formats at 96 dpi
const chartDPI = 96

var ErrNoCaptures = errors.New("no captures to report")

// TimelineSeries holds the charted values of one capture mode, X being Unix
// seconds.
type TimelineSeries struct {
	Mode     thermal.Mode
	FrameMax plotter.XYs
	ROIMax   plotter.XYs
	ROIMean  plotter.XYs
	Skipped  int // captures of the other mode
}

// NewTimelineSeries collects the captures of a single mode. Calibrated values
// and raw intensities do not share a scale, so radiometric captures are
// charted whenever there is at least one and raw captures are skipped.
func NewTimelineSeries(captures []*storage.Capture) (*TimelineSeries, error) {
	if len(captures) == 0 {
		return nil, ErrNoCaptures
	}

	s := TimelineSeries{Mode: thermal.RawFallback}
	for _, c := range captures {
		if c.Mode == thermal.Radiometric {
			s.Mode = thermal.Radiometric
			break
		}
	}

	for _, c := range captures {
		if c.Mode != s.Mode {
			s.Skipped++
			continue
		}

		x := float64(c.CapturedAt.Unix())
		s.FrameMax = append(s.FrameMax, plotter.XY{X: x, Y: c.Frame.Max})
		s.ROIMax = append(s.ROIMax, plotter.XY{X: x, Y: c.ROI.Max})
		s.ROIMean = append(s.ROIMean, plotter.XY{X: x, Y: c.ROI.Mean})
	}
	return &s, nil
}

// Len returns the number of charted captures.
func (s *TimelineSeries) Len() int {
	return len(s.FrameMax)
}

// NewTimelinePlot charts the frame maximum, ROI maximum and ROI mean of a
// session over time.
func NewTimelinePlot(sess *storage.SessionInfo, series *TimelineSeries, loc *time.Location) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", sess.Name, sess.StartTime.In(loc).Format(time.DateTime))
	p.X.Label.Text = "Time"
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05", Time: plot.UnixTimeIn(loc)}
	p.Legend.Top = true

	if series.Mode == thermal.Radiometric {
		p.Y.Label.Text = "Temperature (°C)"
	} else {
		p.Y.Label.Text = "Intensity (raw)"
	}

	p.Add(plotter.NewGrid())

	err := plotutil.AddLinePoints(p,
		"Frame max", series.FrameMax,
		"ROI max", series.ROIMax,
		"ROI mean", series.ROIMean)
	if err != nil {
		return nil, fmt.Errorf("adding series: %w", err)
	}
	return p, nil
}

// SaveTimeline writes the chart to path, the image format following the file
// extension.
func SaveTimeline(p *plot.Plot, width, height int, path string) error {
	if err := p.Save(pixels(width), pixels(height), path); err != nil {
		return fmt.Errorf("saving chart: %w", err)
	}
	return nil
}

func pixels(n int) vg.Length {
	return vg.Length(n) * vg.Inch / chartDPI
}
