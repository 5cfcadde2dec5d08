package session

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/roman-kulish/thermal-logger/internal/telemetry"
)

// LogTimeFormat prefixes every line of the session log
const LogTimeFormat = "2006-01-02 15:04:05.000"

var (
	gpsHeader   = []string{"timestamp", "latitude", "longitude", "altitude", "satellites"}
	clockHeader = []string{"timestamp", "source"}
)

// Mirror receives a copy of every persisted record, e.g. a database. Mirror
// failures never fail the session files.
type Mirror interface {
	StoreCapture(ctx context.Context, rec IndexRecord) error
	StoreTelemetry(ctx context.Context, s telemetry.Sample) error
}

// WithLogger sets the logger for the sink
func WithLogger(logger *slog.Logger) func(*Sink) {
	return func(s *Sink) {
		s.logger = logger
	}
}

// WithMirror adds a secondary destination for records
func WithMirror(m Mirror) func(*Sink) {
	return func(s *Sink) {
		s.mirror = m
	}
}

// Sink serializes every append to the session files. It is safe for
// concurrent use by the capture loop and the telemetry ingest.
type Sink struct {
	session *Session

	mu      sync.Mutex
	index   *os.File
	log     *os.File
	gps     *os.File
	clock   *os.File
	indexW  *csv.Writer
	gpsW    *csv.Writer
	clockW  *csv.Writer
	closed  bool
	mirror  Mirror
	logger  *slog.Logger
	counter struct {
		captures, gps, clock int64
	}
}

// NewSink opens the session files for appending. Per-kind telemetry CSVs get
// their header on first use.
func NewSink(s *Session, options ...func(*Sink)) (_ *Sink, err error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	sink := Sink{
		session: s,
		logger:  logger,
	}

	for _, option := range options {
		option(&sink)
	}

	defer func() {
		if err != nil {
			_ = sink.closeFiles()
		}
	}()

	if err = s.InitIndex(); err != nil {
		return nil, fmt.Errorf("initialising index: %w", err)
	}
	if err = initCSV(s.Path(GPSFile), gpsHeader); err != nil {
		return nil, fmt.Errorf("initialising gps log: %w", err)
	}
	if err = initCSV(s.Path(ClockFile), clockHeader); err != nil {
		return nil, fmt.Errorf("initialising clock log: %w", err)
	}

	if sink.index, err = openAppend(s.IndexPath); err != nil {
		return nil, err
	}
	if sink.log, err = openAppend(s.LogPath); err != nil {
		return nil, err
	}
	if sink.gps, err = openAppend(s.Path(GPSFile)); err != nil {
		return nil, err
	}
	if sink.clock, err = openAppend(s.Path(ClockFile)); err != nil {
		return nil, err
	}

	sink.indexW = csv.NewWriter(sink.index)
	sink.gpsW = csv.NewWriter(sink.gps)
	sink.clockW = csv.NewWriter(sink.clock)

	return &sink, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerm)
	if err != nil {
		return nil, fmt.Errorf("opening '%s': %w", path, err)
	}
	return f, nil
}

// AppendIndexRecord writes one row to index.csv and flushes it.
func (s *Sink) AppendIndexRecord(ctx context.Context, rec IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return os.ErrClosed
	}

	if err := writeRow(s.indexW, rec.CSVRow()); err != nil {
		return fmt.Errorf("appending index record: %w", err)
	}
	s.counter.captures++

	if s.mirror != nil {
		if err := s.mirror.StoreCapture(ctx, rec); err != nil {
			s.logger.Warn("mirroring capture failed", slog.String("filename", rec.Filename), slog.Any("error", err))
		}
	}
	return nil
}

// AppendLogLine writes a timestamped line to the session log.
func (s *Sink) AppendLogLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return os.ErrClosed
	}
	return s.appendLogLine(time.Now(), line)
}

func (s *Sink) appendLogLine(t time.Time, line string) error {
	if _, err := fmt.Fprintf(s.log, "%s %s\n", t.Format(LogTimeFormat), line); err != nil {
		return fmt.Errorf("appending log line: %w", err)
	}
	return nil
}

// HandleTelemetry appends a sample to its per-kind CSV and to the session
// log. Errors are logged; the ingest has nowhere to return them to.
func (s *Sink) HandleTelemetry(sample telemetry.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	var err error
	switch v := sample.(type) {
	case telemetry.GPS:
		err = writeRow(s.gpsW, []string{v.Timestamp, ftoa(v.Latitude, 6), ftoa(v.Longitude, 6), ftoa(v.Altitude, 1), fmt.Sprint(v.Satellites)})
		if err == nil {
			s.counter.gps++
			err = s.appendLogLine(v.ReceivedAt, fmt.Sprintf("GPS     | %s | %s, %s", v.Timestamp, ftoa(v.Latitude, 6), ftoa(v.Longitude, 6)))
		}

	case telemetry.Clock:
		err = writeRow(s.clockW, []string{v.Timestamp, "device"})
		if err == nil {
			s.counter.clock++
			err = s.appendLogLine(v.ReceivedAt, fmt.Sprintf("CLOCK   | %s | %s", v.ReceivedAt.UTC().Format(TimestampFormat), v.Timestamp))
		}

	default:
		err = fmt.Errorf("unsupported sample %T", sample)
	}

	if err != nil {
		s.logger.Error("recording telemetry failed", slog.Any("error", err))
		return
	}

	if s.mirror != nil {
		if err = s.mirror.StoreTelemetry(context.Background(), sample); err != nil {
			s.logger.Warn("mirroring telemetry failed", slog.Any("error", err))
		}
	}
}

// Counts returns the number of captures, GPS fixes and clock readings written
func (s *Sink) Counts() (captures, gps, clock int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counter.captures, s.counter.gps, s.counter.clock
}

// Close flushes and closes every file. Further appends fail with os.ErrClosed.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.closeFiles()
}

func (s *Sink) closeFiles() error {
	var errs []error
	for _, f := range []*os.File{s.index, s.log, s.gps, s.clock} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeRow(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
