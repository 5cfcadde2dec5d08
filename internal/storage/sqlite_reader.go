package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/roman-kulish/thermal-logger/internal/thermal"
)

// ReaderOption configures a CaptureReader with filtering criteria.
type ReaderOption func(*CaptureReader)

// WithStartTime excludes captures taken before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *CaptureReader) {
		t = t.UTC()
		r.startTime = &t
	}
}

// WithEndTime excludes captures taken after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *CaptureReader) {
		t = t.UTC()
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *CaptureReader) {
		WithStartTime(startTime)(r)
		WithEndTime(endTime)(r)
	}
}

// WithPositionOnly skips captures that carry no GPS fix.
func WithPositionOnly() ReaderOption {
	return func(r *CaptureReader) {
		r.positionOnly = true
	}
}

// CaptureReader iterates over the captures of one session. A reader instance
// should only be used from a single goroutine.
type CaptureReader struct {
	db *sql.DB

	sessionID int64
	session   *SessionInfo

	startTime    *time.Time
	endTime      *time.Time
	positionOnly bool

	current *Capture
	rows    *sql.Rows
	err     error
}

func newCaptureReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*CaptureReader, error) {
	r := &CaptureReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *CaptureReader) init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection required")
	}
	if r.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: r.loadSession},
		{msg: "checking filters", fn: r.checkFilters},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *CaptureReader) loadSession(ctx context.Context) (err error) {
	r.session, err = loadSession(ctx, r.db, r.sessionID)
	return
}

func (r *CaptureReader) checkFilters(context.Context) error {
	if r.startTime != nil && r.endTime != nil && r.startTime.After(*r.endTime) {
		return fmt.Errorf("start time %s is after end time %s", r.startTime, r.endTime)
	}
	return nil
}

func (r *CaptureReader) initQuery(ctx context.Context) (err error) {
	positionOnly := 0
	if r.positionOnly {
		positionOnly = 1
	}

	r.rows, err = r.db.QueryContext(ctx, selectCapturesSQL,
		r.sessionID,
		r.startTime, r.startTime,
		r.endTime, r.endTime,
		positionOnly,
	)
	return
}

// Session returns the session this reader is accessing.
func (r *CaptureReader) Session() *SessionInfo {
	return r.session
}

// Next advances to the next capture. It returns false when the iteration is
// complete or an error occurred; check Error to tell them apart.
func (r *CaptureReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if !r.rows.Next() {
		return false
	}

	r.current, r.err = r.scanCapture()
	return r.err == nil
}

func (r *CaptureReader) scanCapture() (*Capture, error) {
	var data captureData
	var id int64

	err := r.rows.Scan(
		&id,
		&data.SessionID,
		&data.CapturedAt,
		&data.Filename,
		&data.Raw16File,
		&data.Colormap,
		&data.Mode,
		&data.FrameMin,
		&data.FrameMax,
		&data.FrameAvg,
		&data.ROIMin,
		&data.ROIMax,
		&data.ROIMean,
		&data.ROIX1,
		&data.ROIY1,
		&data.ROIX2,
		&data.ROIY2,
		&data.Latitude,
		&data.Longitude,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning capture: %w", err)
	}

	return &Capture{
		ID:         id,
		SessionID:  data.SessionID,
		CapturedAt: data.CapturedAt,
		Filename:   data.Filename,
		Raw16File:  data.Raw16File.String,
		Colormap:   data.Colormap,
		Mode:       thermal.ParseMode(data.Mode),
		Frame:      thermal.Stats{Min: data.FrameMin, Max: data.FrameMax, Mean: data.FrameAvg},
		ROI:        thermal.Stats{Min: data.ROIMin, Max: data.ROIMax, Mean: data.ROIMean},
		Box:        image.Rect(data.ROIX1, data.ROIY1, data.ROIX2, data.ROIY2),
		Latitude:   nullableFloat(data.Latitude),
		Longitude:  nullableFloat(data.Longitude),
	}, nil
}

// Current returns the capture Next advanced to.
func (r *CaptureReader) Current() *Capture {
	return r.current
}

func (r *CaptureReader) Error() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

func (r *CaptureReader) Close() error {
	if r.rows != nil {
		err := r.rows.Close()
		r.current = nil
		r.rows = nil
		return err
	}
	return nil
}

// ReadAll drains the reader into a slice and closes it.
func (r *CaptureReader) ReadAll(ctx context.Context) (captures []*Capture, err error) {
	defer closeWithError(r, &err)

	for r.Next(ctx) {
		captures = append(captures, r.Current())
	}
	err = r.Error()
	return
}
