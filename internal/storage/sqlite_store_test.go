package storage

import (
	"context"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/thermal-logger/internal/session"
	"github.com/roman-kulish/thermal-logger/internal/telemetry"
	"github.com/roman-kulish/thermal-logger/internal/thermal"
)

func newTestStore(t *testing.T) (*SqliteStore, *session.Session) {
	t.Helper()

	dir := t.TempDir()

	sess, err := session.Open(filepath.Join(dir, "data"), "")
	if err != nil {
		t.Fatal(err)
	}

	store := NewSqliteStore(filepath.Join(dir, "thermal.db"))
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store, sess
}

func record(ts string, pos *telemetry.GPS, roiMax float64) *session.IndexRecord {
	return &session.IndexRecord{
		Timestamp: ts,
		Filename:  ts + "_JET.png",
		Raw16File: ts + "_raw16.png",
		Colormap:  "JET",
		Mode:      thermal.Radiometric,
		Frame:     thermal.Stats{Min: 20, Max: roiMax, Mean: 25},
		ROI:       thermal.Stats{Min: 30, Max: roiMax, Mean: 35},
		Box:       image.Rect(1, 2, 25, 26),
		Position:  pos,
	}
}

func TestSqliteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, sess := newTestStore(t)

	sessionID, err := store.CreateSession(ctx, sess, map[string]any{"sensor": "simulated"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	pos := &telemetry.GPS{Latitude: -33.865, Longitude: 151.209}
	for _, rec := range []*session.IndexRecord{
		record("20240101_120000", pos, 40),
		record("20240101_120003", nil, 41),
		record("20240101_120006", pos, 42),
	} {
		if _, err = store.StoreCapture(ctx, sessionID, rec); err != nil {
			t.Fatalf("StoreCapture failed: %v", err)
		}
	}

	now := time.Now()
	if _, err = store.StoreTelemetry(ctx, sessionID, telemetry.GPS{Timestamp: "ts", Latitude: 1, Longitude: 2, ReceivedAt: now}); err != nil {
		t.Fatalf("StoreTelemetry failed: %v", err)
	}
	if _, err = store.StoreTelemetry(ctx, sessionID, telemetry.Clock{Timestamp: "ts", ReceivedAt: now}); err != nil {
		t.Fatalf("StoreTelemetry failed: %v", err)
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].RunID != sess.RunID || sessions[0].Name != sess.Name {
		t.Errorf("unexpected session %+v", sessions[0])
	}
	if sessions[0].Config == nil || *sessions[0].Config != `{"sensor":"simulated"}` {
		t.Errorf("unexpected config %v", sessions[0].Config)
	}

	reader, err := store.ReadCaptures(ctx, sessionID)
	if err != nil {
		t.Fatalf("ReadCaptures failed: %v", err)
	}
	if reader.Session().ID != sessionID {
		t.Errorf("expected reader session %d, got %d", sessionID, reader.Session().ID)
	}

	captures, err := reader.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(captures) != 3 {
		t.Fatalf("expected 3 captures, got %d", len(captures))
	}

	first := captures[0]
	if first.Filename != "20240101_120000_JET.png" || first.Raw16File != "20240101_120000_raw16.png" {
		t.Errorf("unexpected file names %q, %q", first.Filename, first.Raw16File)
	}
	if first.Mode != thermal.Radiometric {
		t.Errorf("expected radiometric mode, got %s", first.Mode)
	}
	if first.Box != image.Rect(1, 2, 25, 26) {
		t.Errorf("unexpected box %v", first.Box)
	}
	if !first.HasPosition() || *first.Latitude != -33.865 {
		t.Errorf("expected position on first capture")
	}
	if want := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC); !first.CapturedAt.Equal(want) {
		t.Errorf("expected captured at %s, got %s", want, first.CapturedAt)
	}
	if captures[1].HasPosition() {
		t.Error("expected no position on second capture")
	}

	reader, err = store.ReadCaptures(ctx, sessionID, WithPositionOnly())
	if err != nil {
		t.Fatal(err)
	}
	located, err := reader.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(located) != 2 || located[1].ROI.Max != 42 {
		t.Errorf("expected 2 located captures, got %d", len(located))
	}

	reader, err = store.ReadCaptures(ctx, sessionID, WithTimeRange(
		time.Date(2024, 1, 1, 12, 0, 1, 0, time.UTC),
		time.Date(2024, 1, 1, 12, 0, 5, 0, time.UTC),
	))
	if err != nil {
		t.Fatal(err)
	}
	ranged, err := reader.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 1 || ranged[0].Filename != "20240101_120003_JET.png" {
		t.Errorf("expected only the middle capture, got %d", len(ranged))
	}

	if err = store.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err = store.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestSqliteStore_InvalidInput(t *testing.T) {
	ctx := context.Background()
	store, sess := newTestStore(t)

	sessionID, err := store.CreateSession(ctx, sess, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = store.StoreCapture(ctx, sessionID, record("not-a-timestamp", nil, 1)); err == nil {
		t.Error("expected error for a malformed capture timestamp")
	}

	if _, err = store.ReadCaptures(ctx, sessionID, WithTimeRange(time.Now(), time.Now().Add(-time.Hour))); err == nil {
		t.Error("expected error for an inverted time range")
	}

	if _, err = store.ReadCaptures(ctx, 0); err == nil {
		t.Error("expected error for a missing session ID")
	}
}

func TestSessionMirror(t *testing.T) {
	ctx := context.Background()
	store, sess := newTestStore(t)

	mirror, err := NewSessionMirror(ctx, store, sess, "interval: 3s")
	if err != nil {
		t.Fatalf("NewSessionMirror failed: %v", err)
	}

	if err = mirror.StoreCapture(ctx, *record("20240101_120000", nil, 40)); err != nil {
		t.Fatalf("StoreCapture failed: %v", err)
	}
	if err = mirror.StoreTelemetry(ctx, telemetry.Clock{Timestamp: "ts", ReceivedAt: time.Now()}); err != nil {
		t.Fatalf("StoreTelemetry failed: %v", err)
	}

	reader, err := store.ReadCaptures(ctx, mirror.SessionID())
	if err != nil {
		t.Fatal(err)
	}
	captures, err := reader.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(captures) != 1 {
		t.Errorf("expected 1 mirrored capture, got %d", len(captures))
	}
}
