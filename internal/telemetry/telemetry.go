package telemetry

import (
	"time"
)

// Sample is one parsed telemetry record: either GPS or Clock
type Sample interface {
	Received() time.Time
	sample()
}

// GPS is a position fix reported by the microcontroller
type GPS struct {
	Timestamp  string    // device timestamp, verbatim
	Latitude   float64   // degrees
	Longitude  float64   // degrees
	Altitude   float64   // meters
	Satellites int       // satellites in view
	ReceivedAt time.Time // host time the line was read
}

func (g GPS) Received() time.Time { return g.ReceivedAt }
func (GPS) sample() {}

// Clock is a real-time clock reading reported by the microcontroller
type Clock struct {
	Timestamp  string // device timestamp, verbatim
	ReceivedAt time.Time
}

func (c Clock) Received() time.Time { return c.ReceivedAt }
func (Clock) sample() {}

// Handler consumes parsed samples. Implementations must be safe for use from
// the ingest goroutine while other goroutines use them.
type Handler interface {
	HandleTelemetry(s Sample)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(s Sample)

func (f HandlerFunc) HandleTelemetry(s Sample) {
	f(s)
}

// Handlers fans a sample out to every handler in order
type Handlers []Handler

func (hs Handlers) HandleTelemetry(s Sample) {
	for _, h := range hs {
		h.HandleTelemetry(s)
	}
}
