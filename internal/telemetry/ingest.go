package telemetry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// DefaultBackoff is the wait between reconnection attempts
	DefaultBackoff = 5 * time.Second

	// DefaultWindow is how long a GPS fix stays attachable to captures
	DefaultWindow = 6 * time.Second
)

const (
	Disconnected State = iota
	Connected
	Reading
)

// DefaultPorts are probed in order when no ports are configured
var DefaultPorts = []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyACM0", "/dev/ttyACM1"}

// ErrTelemetryDisconnected is returned when the telemetry stream drops
var ErrTelemetryDisconnected = errors.New("telemetry disconnected")

// State of the ingest connection
type State int32

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Reading:
		return "reading"
	default:
		return "disconnected"
	}
}

// Dialer opens a line-oriented byte stream on the named port
type Dialer interface {
	Dial(ctx context.Context, port string) (io.ReadCloser, error)
}

// WithLogger sets the logger for the ingest
func WithLogger(logger *slog.Logger) func(*Ingest) {
	return func(in *Ingest) {
		in.logger = logger.With(slog.String("component", "telemetry"))
	}
}

// WithBackoff sets the wait between reconnection attempts
func WithBackoff(d time.Duration) func(*Ingest) {
	return func(in *Ingest) {
		in.backoff = d
	}
}

// WithPorts sets the ordered list of candidate ports
func WithPorts(ports ...string) func(*Ingest) {
	return func(in *Ingest) {
		in.ports = ports
	}
}

// Ingest reads telemetry lines from the first port that opens, forwards
// parsed samples to a Handler, and reconnects after any I/O error. It never
// gives up; it stops only when its context ends.
type Ingest struct {
	dialer  Dialer
	handler Handler
	ports   []string
	backoff time.Duration

	state  atomic.Int32
	logger *slog.Logger
}

// NewIngest creates a new Ingest instance with a discard logger
func NewIngest(dialer Dialer, handler Handler, options ...func(*Ingest)) *Ingest {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	in := Ingest{
		dialer:  dialer,
		handler: handler,
		ports:   DefaultPorts,
		backoff: DefaultBackoff,
		logger:  logger,
	}

	for _, option := range options {
		option(&in)
	}

	return &in
}

// State returns the current connection state
func (in *Ingest) State() State {
	return State(in.state.Load())
}

// Run connects, reads and reconnects until ctx is done. It returns nil on
// cancellation.
func (in *Ingest) Run(ctx context.Context) error {
	if len(in.ports) == 0 {
		return fmt.Errorf("no telemetry ports configured")
	}

	for ctx.Err() == nil {
		port, name, err := in.connect(ctx)
		if err != nil {
			in.logger.Debug(err.Error())
			if !sleep(ctx, in.backoff) {
				break
			}
			continue
		}

		in.setState(Connected)
		in.logger.Info("telemetry connected", slog.String("port", name))

		err = in.read(ctx, port)
		in.setState(Disconnected)
		if err == nil {
			break
		}

		in.logger.Info(err.Error(), slog.String("port", name), slog.Duration("retryIn", in.backoff))
		if !sleep(ctx, in.backoff) {
			break
		}
	}

	in.setState(Disconnected)
	return nil
}

func (in *Ingest) connect(ctx context.Context) (io.ReadCloser, string, error) {
	var errs []error
	for _, name := range in.ports {
		port, err := in.dialer.Dial(ctx, name)
		if err == nil {
			return port, name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return nil, "", fmt.Errorf("%w: no telemetry port available: %w", ErrTelemetryDisconnected, errors.Join(errs...))
}

// read consumes lines until the stream fails. It returns nil when ctx ends;
// the port is closed on cancellation to unblock a pending read.
func (in *Ingest) read(ctx context.Context, port io.ReadCloser) error {
	stop := context.AfterFunc(ctx, func() {
		_ = port.Close()
	})
	defer func() {
		if stop() {
			_ = port.Close()
		}
	}()

	in.setState(Reading)

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sample, err := ParseLine(line, time.Now().UTC())
		if err != nil {
			in.logger.Debug(fmt.Sprintf("dropping telemetry line: %s", err.Error()), slog.String("line", line))
			continue
		}

		in.handler.HandleTelemetry(sample)
	}

	if ctx.Err() != nil {
		return nil
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	return fmt.Errorf("%w: %w", ErrTelemetryDisconnected, err)
}

func (in *Ingest) setState(s State) {
	in.state.Store(int32(s))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
