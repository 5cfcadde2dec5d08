package app

import (
	"context"
	"errors"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/thermal-logger/internal/render"
	"github.com/roman-kulish/thermal-logger/internal/session"
	"github.com/roman-kulish/thermal-logger/internal/storage"
	"github.com/roman-kulish/thermal-logger/internal/telemetry"
	"github.com/roman-kulish/thermal-logger/internal/thermal"
)

func capture(at time.Time, mode thermal.Mode, roiMax float64, lat, lon *float64) *storage.Capture {
	return &storage.Capture{
		CapturedAt: at,
		Colormap:   "JET",
		Mode:       mode,
		Frame:      thermal.Stats{Min: 10, Max: roiMax + 1, Mean: 15},
		ROI:        thermal.Stats{Min: 12, Max: roiMax, Mean: roiMax - 2},
		Box:        image.Rect(0, 0, 24, 24),
		Latitude:   lat,
		Longitude:  lon,
	}
}

func ptr(v float64) *float64 {
	return &v
}

func TestNewTimelineSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	series, err := NewTimelineSeries([]*storage.Capture{
		capture(start, thermal.RawFallback, 200, nil, nil),
		capture(start.Add(3*time.Second), thermal.Radiometric, 40, nil, nil),
		capture(start.Add(6*time.Second), thermal.Radiometric, 42, nil, nil),
	})
	if err != nil {
		t.Fatalf("NewTimelineSeries failed: %v", err)
	}

	if series.Mode != thermal.Radiometric || series.Len() != 2 || series.Skipped != 1 {
		t.Fatalf("unexpected series mode=%s len=%d skipped=%d", series.Mode, series.Len(), series.Skipped)
	}
	if series.ROIMax[0].X != float64(start.Unix()+3) || series.ROIMax[0].Y != 40 {
		t.Errorf("unexpected first point %+v", series.ROIMax[0])
	}
	if series.FrameMax[1].Y != 43 || series.ROIMean[1].Y != 40 {
		t.Errorf("unexpected second point frame=%+v mean=%+v", series.FrameMax[1], series.ROIMean[1])
	}

	series, err = NewTimelineSeries([]*storage.Capture{capture(start, thermal.RawFallback, 200, nil, nil)})
	if err != nil {
		t.Fatal(err)
	}
	if series.Mode != thermal.RawFallback || series.Len() != 1 {
		t.Errorf("expected raw series with one point, got %s/%d", series.Mode, series.Len())
	}

	if _, err = NewTimelineSeries(nil); !errors.Is(err, ErrNoCaptures) {
		t.Errorf("expected ErrNoCaptures, got %v", err)
	}
}

func TestTrackRenderer_Render(t *testing.T) {
	renderer, err := NewTrackRenderer(render.INFERNO, 200, 160)
	if err != nil {
		t.Fatalf("NewTrackRenderer failed: %v", err)
	}
	defer renderer.Close()

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	img, summary, err := renderer.Render("launch01", []*storage.Capture{
		capture(start, thermal.Radiometric, 10, ptr(0), ptr(0)),
		capture(start.Add(3*time.Second), thermal.Radiometric, 15, nil, nil),
		capture(start.Add(6*time.Second), thermal.Radiometric, 20, ptr(1), ptr(1)),
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if summary.Points != 2 || summary.Skipped != 1 {
		t.Errorf("expected 2 points and 1 skipped, got %d/%d", summary.Points, summary.Skipped)
	}
	if summary.MinROIMax != 10 || summary.MaxROIMax != 20 || summary.Units != "C" {
		t.Errorf("unexpected ROI range %+v", summary)
	}

	// drawing area: 200x148 minus the margins, south-west fix at the bottom left
	first, last := image.Pt(24, 123), image.Pt(175, 24)
	if summary.FirstPoint != first {
		t.Errorf("expected first point at %v, got %v", first, summary.FirstPoint)
	}

	mapper, err := render.NewColorMapper(render.INFERNO)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(first.X, first.Y); got != mapper.Color(0) {
		t.Errorf("expected the coolest color at %v, got %v", first, got)
	}
	if got := img.RGBAAt(last.X, last.Y); got != mapper.Color(255) {
		t.Errorf("expected the hottest color at %v, got %v", last, got)
	}
	if got := img.RGBAAt(0, 159); got != mapper.Color(0) {
		t.Errorf("expected the legend to start with the coolest color, got %v", got)
	}
	if got := img.RGBAAt(199, 159); got != mapper.Color(255) {
		t.Errorf("expected the legend to end with the hottest color, got %v", got)
	}
}

func TestTrackRenderer_NoPositions(t *testing.T) {
	renderer, err := NewTrackRenderer(render.JET, 200, 160)
	if err != nil {
		t.Fatal(err)
	}
	defer renderer.Close()

	_, _, err = renderer.Render("launch01", []*storage.Capture{capture(time.Now(), thermal.Radiometric, 10, nil, nil)})
	if !errors.Is(err, ErrNoPositions) {
		t.Errorf("expected ErrNoPositions, got %v", err)
	}
}

func seedStore(t *testing.T) (string, int64) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "thermal.sqlite")

	sess, err := session.Open(filepath.Join(dir, "data"), "launch")
	if err != nil {
		t.Fatal(err)
	}

	store := storage.NewSqliteStore(dbPath)
	defer store.Close()

	ctx := context.Background()
	sessionID, err := store.CreateSession(ctx, sess, nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	for i, ts := range []string{"20240101_120000", "20240101_120003", "20240101_120006"} {
		rec := &session.IndexRecord{
			Timestamp: ts,
			Filename:  ts + "_JET.png",
			Colormap:  "JET",
			Mode:      thermal.Radiometric,
			Frame:     thermal.Stats{Min: 20, Max: 40 + float64(i), Mean: 25},
			ROI:       thermal.Stats{Min: 30, Max: 38 + float64(i), Mean: 35},
			Box:       image.Rect(1, 2, 25, 26),
			Position:  &telemetry.GPS{Latitude: 37.5 + float64(i)*0.001, Longitude: -122.3},
		}
		if _, err = store.StoreCapture(ctx, sessionID, rec); err != nil {
			t.Fatalf("StoreCapture failed: %v", err)
		}
	}
	return dbPath, sessionID
}

func TestRun(t *testing.T) {
	dbPath, sessionID := seedStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, kind := range []ReportKind{KindTimeline, KindTrack} {
		t.Run(string(kind), func(t *testing.T) {
			config := NewConfig()
			config.DBPath = dbPath
			config.SessionID = sessionID
			config.Kind = kind
			config.Width, config.Height = 320, 240
			config.OutputFile = filepath.Join(t.TempDir(), string(kind)+".png")

			if err := Run(context.Background(), config, logger); err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			f, err := os.Open(config.OutputFile)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			if _, _, err = image.Decode(f); err != nil {
				t.Errorf("report is not a valid image: %v", err)
			}
		})
	}
}

func TestRun_MissingDatabase(t *testing.T) {
	config := NewConfig()
	config.DBPath = filepath.Join(t.TempDir(), "missing.sqlite")
	config.OutputFile = filepath.Join(t.TempDir(), "report.png")

	err := Run(context.Background(), config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}
