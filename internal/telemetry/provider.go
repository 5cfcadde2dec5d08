package telemetry

import (
	"sync"
	"time"
)

// Provider answers the position to attach to a capture taken at now
type Provider interface {
	Position(now time.Time) (GPS, bool)
}

// Disabled is the provider used when telemetry is switched off
type Disabled struct{}

func (Disabled) Position(time.Time) (GPS, bool) {
	return GPS{}, false
}

// Tracker remembers the latest GPS fix and serves it while it is fresh. It is
// a Handler for the ingest side and a Provider for the capture side.
type Tracker struct {
	window time.Duration

	mu   sync.Mutex
	last GPS
	ok   bool
}

// NewTracker returns a tracker serving fixes received within window.
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{window: window}
}

func (t *Tracker) HandleTelemetry(s Sample) {
	gps, ok := s.(GPS)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = gps
	t.ok = true
}

func (t *Tracker) Position(now time.Time) (GPS, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ok {
		return GPS{}, false
	}

	age := now.Sub(t.last.ReceivedAt)
	if age > t.window || age < -t.window {
		return GPS{}, false
	}

	return t.last, true
}
