package storage

import (
	"context"

	"github.com/roman-kulish/thermal-logger/internal/session"
	"github.com/roman-kulish/thermal-logger/internal/telemetry"
)

// SessionMirror binds a Store to one session so it can be plugged into a
// session.Sink.
type SessionMirror struct {
	store     Store
	sessionID int64
}

// NewSessionMirror registers sess in store and returns the bound mirror.
func NewSessionMirror(ctx context.Context, store Store, sess *session.Session, config any) (*SessionMirror, error) {
	id, err := store.CreateSession(ctx, sess, config)
	if err != nil {
		return nil, err
	}
	return &SessionMirror{store: store, sessionID: id}, nil
}

// SessionID returns the database identifier of the bound session
func (m *SessionMirror) SessionID() int64 {
	return m.sessionID
}

func (m *SessionMirror) StoreCapture(ctx context.Context, rec session.IndexRecord) error {
	_, err := m.store.StoreCapture(ctx, m.sessionID, &rec)
	return err
}

func (m *SessionMirror) StoreTelemetry(ctx context.Context, s telemetry.Sample) error {
	_, err := m.store.StoreTelemetry(ctx, m.sessionID, s)
	return err
}

var _ session.Mirror = (*SessionMirror)(nil)
