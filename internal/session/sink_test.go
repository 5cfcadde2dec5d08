package session

import (
	"context"
	"errors"
	"image"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/thermal-logger/internal/telemetry"
	"github.com/roman-kulish/thermal-logger/internal/thermal"
)

func radiometricRecord() IndexRecord {
	return IndexRecord{
		Timestamp: "20240101_120000",
		Filename:  "20240101_120000_JET.png",
		Colormap:  "JET",
		Mode:      thermal.Radiometric,
		Frame:     thermal.Stats{Min: 20.5, Max: 41.25, Mean: 29.123456},
		ROI:       thermal.Stats{Min: 38, Max: 41.25, Mean: 39.5},
		Box:       image.Rect(10, 20, 34, 44),
		Position:  &telemetry.GPS{Latitude: 37.5, Longitude: -122.3},
	}
}

func TestIndexRecord_CSVRow(t *testing.T) {
	rec := radiometricRecord()

	want := []string{
		"20240101_120000", "20240101_120000_JET.png", "JET", "Radiometric", "C",
		"20.5000", "41.2500", "29.1235",
		"38.0000", "41.2500", "39.5000",
		"10", "20", "34", "44",
		"37.500000", "-122.300000",
	}
	if got := rec.CSVRow(); !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected row\n got %v\nwant %v", got, want)
	}

	rec.Mode = thermal.RawFallback
	rec.Position = nil
	row := rec.CSVRow()
	if len(row) != len(IndexHeader) {
		t.Fatalf("expected %d columns, got %d", len(IndexHeader), len(row))
	}
	if row[3] != "RawFallback" || row[4] != "raw" {
		t.Errorf("expected raw fallback labels, got %s/%s", row[3], row[4])
	}
	if row[15] != "" || row[16] != "" {
		t.Errorf("expected empty coordinates, got %q,%q", row[15], row[16])
	}
}

func TestIndexRecord_Summary(t *testing.T) {
	rec := radiometricRecord()

	summary := rec.Summary()
	for _, part := range []string{"THERMAL | 20240101_120000 | JET", "mode=Radiometric units=C", "frame_max=41.25C", "roi_mean=39.50C", "roi=(10,20)-(34,44)", "gps=(37.500000,-122.300000)"} {
		if !strings.Contains(summary, part) {
			t.Errorf("summary %q is missing %q", summary, part)
		}
	}

	rec.Mode = thermal.RawFallback
	rec.Frame = thermal.Stats{Min: 12, Max: 250, Mean: 80.25}
	rec.Position = nil

	summary = rec.Summary()
	for _, part := range []string{"mode=RawFallback units=raw", "frame_min=12 frame_max=250 frame_avg=80.2", "gps=(,)"} {
		if !strings.Contains(summary, part) {
			t.Errorf("summary %q is missing %q", summary, part)
		}
	}
}

type recordingMirror struct {
	mu       sync.Mutex
	captures []IndexRecord
	samples  []telemetry.Sample
	err      error
}

func (m *recordingMirror) StoreCapture(_ context.Context, rec IndexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = append(m.captures, rec)
	return m.err
}

func (m *recordingMirror) StoreTelemetry(_ context.Context, s telemetry.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s)
	return m.err
}

func TestSink_AppendsAndMirrors(t *testing.T) {
	s, err := Open(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}

	mirror := &recordingMirror{err: errors.New("database is locked")}
	sink, err := NewSink(s, WithMirror(mirror))
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}

	received := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if err = sink.AppendIndexRecord(context.Background(), radiometricRecord()); err != nil {
		t.Fatalf("AppendIndexRecord failed: %v", err)
	}
	sink.HandleTelemetry(telemetry.GPS{Timestamp: "20240101120000", Latitude: 37.5, Longitude: -122.3, Altitude: 12, Satellites: 7, ReceivedAt: received})
	sink.HandleTelemetry(telemetry.Clock{Timestamp: "20240101120001", ReceivedAt: received})
	if err = sink.AppendLogLine("Session started"); err != nil {
		t.Fatal(err)
	}

	if err = sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err = sink.AppendIndexRecord(context.Background(), radiometricRecord()); !errors.Is(err, os.ErrClosed) {
		t.Errorf("expected os.ErrClosed after close, got %v", err)
	}

	index := readCSV(t, s.IndexPath)
	if len(index) != 2 || index[1][1] != "20240101_120000_JET.png" {
		t.Errorf("unexpected index contents %v", index)
	}

	gps := readCSV(t, s.Path(GPSFile))
	if want := []string{"20240101120000", "37.500000", "-122.300000", "12.0", "7"}; len(gps) != 2 || !reflect.DeepEqual(gps[1], want) {
		t.Errorf("unexpected gps contents %v", gps)
	}

	clock := readCSV(t, s.Path(ClockFile))
	if len(clock) != 2 || clock[1][0] != "20240101120001" {
		t.Errorf("unexpected clock contents %v", clock)
	}

	data, err := os.ReadFile(s.LogPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 log lines, got %d: %q", len(lines), lines)
	}
	if want := "2024-01-01 12:00:00.000 GPS     | 20240101120000 | 37.500000, -122.300000"; lines[0] != want {
		t.Errorf("unexpected GPS log line %q", lines[0])
	}
	if want := "2024-01-01 12:00:00.000 CLOCK   | 20240101_120000 | 20240101120001"; lines[1] != want {
		t.Errorf("unexpected CLOCK log line %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], " Session started") {
		t.Errorf("unexpected log line %q", lines[2])
	}

	if len(mirror.captures) != 1 || len(mirror.samples) != 2 {
		t.Errorf("expected mirror to see 1 capture and 2 samples, got %d and %d", len(mirror.captures), len(mirror.samples))
	}

	captures, fixes, clocks := sink.Counts()
	if captures != 1 || fixes != 1 || clocks != 1 {
		t.Errorf("unexpected counts %d/%d/%d", captures, fixes, clocks)
	}
}

func TestSink_ConcurrentAppends(t *testing.T) {
	s, err := Open(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}

	sink, err := NewSink(s)
	if err != nil {
		t.Fatal(err)
	}

	const n = 50

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if err := sink.AppendIndexRecord(context.Background(), radiometricRecord()); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			sink.HandleTelemetry(telemetry.GPS{Timestamp: "ts", ReceivedAt: time.Now()})
		}
	}()
	wg.Wait()

	if err = sink.Close(); err != nil {
		t.Fatal(err)
	}

	if rows := readCSV(t, s.IndexPath); len(rows) != n+1 {
		t.Errorf("expected %d index rows, got %d", n+1, len(rows))
	}
	if rows := readCSV(t, s.Path(GPSFile)); len(rows) != n+1 {
		t.Errorf("expected %d gps rows, got %d", n+1, len(rows))
	}

	data, err := os.ReadFile(s.LogPath)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(data), "\n"); lines != n {
		t.Errorf("expected %d log lines, got %d", n, lines)
	}
}
