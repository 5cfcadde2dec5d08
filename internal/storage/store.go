package storage

import (
	"context"

	"github.com/roman-kulish/thermal-logger/internal/session"
	"github.com/roman-kulish/thermal-logger/internal/telemetry"
)

// Store mirrors logging sessions, their captures and telemetry samples into a
// queryable database. The session directory stays the primary record; the
// store exists for offline reporting.
type Store interface {
	// CreateSession registers a logging run and returns its database identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sess: The opened session directory
	//   - config: Optional run configuration. Can be string, []byte, or JSON-serializable object
	CreateSession(ctx context.Context, sess *session.Session, config any) (sessionID int64, err error)

	// Session retrieves a specific logging run by its ID.
	Session(ctx context.Context, id int64) (*SessionInfo, error)

	// Sessions returns all logging runs ordered by start time.
	Sessions(ctx context.Context) ([]*SessionInfo, error)

	// ReadCaptures returns a reader over the captures of a session. The reader
	// must be closed after use.
	ReadCaptures(ctx context.Context, sessionID int64, opts ...ReaderOption) (*CaptureReader, error)

	// StoreCapture saves one committed index record.
	StoreCapture(ctx context.Context, sessionID int64, rec *session.IndexRecord) (captureID int64, err error)

	// StoreTelemetry saves a GPS fix or a clock reading.
	StoreTelemetry(ctx context.Context, sessionID int64, s telemetry.Sample) (telemetryID int64, err error)

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}

var _ Store = (*SqliteStore)(nil)
