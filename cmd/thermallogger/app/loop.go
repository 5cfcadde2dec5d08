package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/thermal-logger/internal/render"
	"github.com/roman-kulish/thermal-logger/internal/session"
	"github.com/roman-kulish/thermal-logger/internal/telemetry"
	"github.com/roman-kulish/thermal-logger/internal/thermal"
)

const (
	CommandSave Command = iota
	CommandNextColormap
	CommandQuit
)

const fpsSmoothing = 0.9

// Command is an operator request handled between two ticks
type Command int

func (c Command) String() string {
	switch c {
	case CommandSave:
		return "save"
	case CommandNextColormap:
		return "next colormap"
	case CommandQuit:
		return "quit"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// ImageSaver writes an image into the session directory
type ImageSaver interface {
	SaveImage(img image.Image, filename string) (session.SaveResult, error)
}

// Recorder receives index rows and session log lines
type Recorder interface {
	AppendIndexRecord(ctx context.Context, rec session.IndexRecord) error
	AppendLogLine(line string) error
}

// Status is a snapshot of the loop counters
type Status struct {
	FPS       float64
	Frames    int64
	Saves     int64
	Failures  int64
	Fallbacks int64
	Mode      thermal.Mode
	Colormap  render.Colormap
}

// WithLogger sets the logger for the loop
func WithLogger(logger *slog.Logger) func(*Loop) {
	return func(l *Loop) {
		l.logger = logger.With(slog.String("component", "capture"))
	}
}

// WithPositionProvider sets where GPS fixes for captures come from
func WithPositionProvider(p telemetry.Provider) func(*Loop) {
	return func(l *Loop) {
		l.position = p
	}
}

// WithColormaps sets the colormap rotation
func WithColormaps(rotation []render.Colormap) func(*Loop) {
	return func(l *Loop) {
		l.rotation = rotation
	}
}

// WithSaveInterval sets the autosave period
func WithSaveInterval(d time.Duration) func(*Loop) {
	return func(l *Loop) {
		l.interval = d
	}
}

// WithRetryDelay sets the wait before a failed save is retried
func WithRetryDelay(d time.Duration) func(*Loop) {
	return func(l *Loop) {
		l.retryDelay = d
	}
}

// WithTickInterval sets the pause between two ticks in Run
func WithTickInterval(d time.Duration) func(*Loop) {
	return func(l *Loop) {
		l.tickInterval = d
	}
}

// WithStatusReport calls hook with a Status every interval while Run is active
func WithStatusReport(interval time.Duration, hook func(Status)) func(*Loop) {
	return func(l *Loop) {
		l.statusInterval = interval
		l.statusHook = hook
	}
}

// WithHotBoxSize sets the side of the hotspot box
func WithHotBoxSize(size int) func(*Loop) {
	return func(l *Loop) {
		l.hotBoxSize = size
	}
}

// WithImageFormat sets the colorized image format
func WithImageFormat(f ImageFormat) func(*Loop) {
	return func(l *Loop) {
		l.format = f
	}
}

// Loop is the acquisition loop: capture, locate the hotspot, colorize,
// annotate and, when due, save. It owns the sensor and is driven from a
// single goroutine.
type Loop struct {
	sensor   thermal.Sensor
	saver    ImageSaver
	recorder Recorder
	position telemetry.Provider

	annotator *render.Annotator
	rotation  []render.Colormap
	mappers   []*render.ColorMapper
	current   int

	interval       time.Duration
	retryDelay     time.Duration
	tickInterval   time.Duration
	statusInterval time.Duration
	statusHook     func(Status)
	hotBoxSize     int
	format         ImageFormat

	fps      float64
	lastTick time.Time
	lastSave time.Time
	lastTS   string // timestamp of the previous save attempt
	sameTS   int    // save attempts sharing lastTS
	mode     thermal.Mode
	counters struct {
		frames, saves, failures, fallbacks int64
	}

	logger *slog.Logger
}

// NewLoop creates a new Loop with a discard logger and telemetry disabled
func NewLoop(sensor thermal.Sensor, saver ImageSaver, recorder Recorder, options ...func(*Loop)) (*Loop, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	l := Loop{
		sensor:       sensor,
		saver:        saver,
		recorder:     recorder,
		position:     telemetry.Disabled{},
		rotation:     render.DefaultRotation,
		interval:     3 * time.Second,
		retryDelay:   200 * time.Millisecond,
		tickInterval: 10 * time.Millisecond,
		hotBoxSize:   24,
		format:       ImageFormatPNG,
		logger:       logger,
	}

	for _, option := range options {
		option(&l)
	}

	if len(l.rotation) == 0 {
		return nil, fmt.Errorf("empty colormap rotation")
	}
	for _, name := range l.rotation {
		cm, err := render.NewColorMapper(name)
		if err != nil {
			return nil, err
		}
		l.mappers = append(l.mappers, cm)
	}

	annotator, err := render.NewAnnotator()
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	l.annotator = annotator

	return &l, nil
}

// Colormap returns the colormap the next frame is rendered with
func (l *Loop) Colormap() render.Colormap {
	return l.mappers[l.current].Name()
}

// NextColormap advances the rotation without saving
func (l *Loop) NextColormap() {
	l.current = (l.current + 1) % len(l.mappers)
}

// ForceSave makes the next tick save regardless of the interval
func (l *Loop) ForceSave() {
	l.lastSave = time.Time{}
}

func (l *Loop) Status() Status {
	return Status{
		FPS:       l.fps,
		Frames:    l.counters.frames,
		Saves:     l.counters.saves,
		Failures:  l.counters.failures,
		Fallbacks: l.counters.fallbacks,
		Mode:      l.mode,
		Colormap:  l.Colormap(),
	}
}

// Run ticks until ctx is done or a quit command arrives. Commands may be nil.
// The sensor is left open; the caller closes it after Run returns.
func (l *Loop) Run(ctx context.Context, commands <-chan Command) error {
	lastStatus := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil

		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			l.logger.Info("command received", slog.String("command", cmd.String()))

			switch cmd {
			case CommandSave:
				l.ForceSave()
			case CommandNextColormap:
				l.NextColormap()
			case CommandQuit:
				return nil
			}

		default:
		}

		now := time.Now()
		if err := l.Tick(ctx, now); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Debug(err.Error())
		}

		if l.statusInterval > 0 && now.Sub(lastStatus) >= l.statusInterval {
			lastStatus = now
			l.reportStatus()
		}

		if !sleep(ctx, l.tickInterval) {
			return nil
		}
	}
}

func (l *Loop) reportStatus() {
	s := l.Status()
	l.logger.Info("status",
		slog.String("fps", fmt.Sprintf("%.1f", s.FPS)),
		slog.String("frames", humanize.Comma(s.Frames)),
		slog.Int64("saves", s.Saves),
		slog.Int64("failures", s.Failures),
		slog.Int64("fallbacks", s.Fallbacks),
		slog.String("mode", s.Mode.String()),
		slog.String("colormap", string(s.Colormap)))

	if l.statusHook != nil {
		l.statusHook(s)
	}
}

// Tick runs one iteration at time now. A sensor failure is returned and the
// tick is skipped; save failures are handled internally.
func (l *Loop) Tick(ctx context.Context, now time.Time) error {
	frame, err := thermal.Acquire(ctx, l.sensor)
	if err != nil {
		l.counters.failures++
		return fmt.Errorf("acquiring frame: %w", err)
	}
	l.counters.frames++

	if frame.Mode != l.mode || l.counters.frames == 1 {
		attrs := []any{slog.String("mode", frame.Mode.String())}
		if frame.Fallback != nil {
			attrs = append(attrs, slog.String("reason", frame.Fallback.Error()))
		}
		l.logger.Info("acquisition mode", attrs...)
	}
	l.mode = frame.Mode
	if frame.Mode == thermal.RawFallback {
		l.counters.fallbacks++
	}

	if !l.lastTick.IsZero() {
		if dt := now.Sub(l.lastTick).Seconds(); dt > 0 {
			l.fps = fpsSmoothing*l.fps + (1-fpsSmoothing)/dt
		}
	}
	l.lastTick = now

	roi := thermal.Locate(frame.Metric, l.hotBoxSize)
	frameStats := frame.Metric.Stats()

	img := l.mappers[l.current].Colorize(frame.Display8)
	if err = l.annotate(img, frame.Mode, frameStats, roi); err != nil {
		l.logger.Debug(fmt.Sprintf("annotating frame: %s", err.Error()))
	}

	if now.Sub(l.lastSave) >= l.interval {
		l.save(ctx, now, frame, frameStats, roi, img)
	}

	return nil
}

func (l *Loop) annotate(img *image.RGBA, mode thermal.Mode, s thermal.Stats, roi thermal.HotspotROI) error {
	var label, hud string
	if mode == thermal.Radiometric {
		label = fmt.Sprintf("%.2fC", roi.Mean)
		hud = fmt.Sprintf("FPS:%.1f Min:%.2fC Max:%.2fC Avg:%.2fC  [%s] (%s)", l.fps, s.Min, s.Max, s.Mean, l.Colormap(), mode)
	} else {
		label = fmt.Sprintf("%.2f", roi.Mean)
		hud = fmt.Sprintf("FPS:%.1f Min:%.0f Max:%.0f Avg:%.1f  [%s] (%s)", l.fps, s.Min, s.Max, s.Mean, l.Colormap(), mode)
	}

	return errors.Join(
		l.annotator.DrawROI(img, roi.Box, label),
		l.annotator.DrawHUD(img, hud),
	)
}

// save writes the images, retrying once, then records the capture. lastSave
// advances whether or not the save succeeded; the colormap rotates only on
// success. The save runs to completion even if ctx ends meanwhile.
func (l *Loop) save(ctx context.Context, now time.Time, frame *thermal.Frame, frameStats thermal.Stats, roi thermal.HotspotROI, img *image.RGBA) {
	ctx = context.WithoutCancel(ctx)

	ts := now.UTC().Format(session.TimestampFormat)
	stem := l.fileStem(ts)
	rec := session.IndexRecord{
		Timestamp: ts,
		Filename:  fmt.Sprintf("%s_%s.%s", stem, l.Colormap(), l.format.Ext()),
		Colormap:  string(l.Colormap()),
		Mode:      frame.Mode,
		Frame:     frameStats,
		ROI:       roi.Stats,
		Box:       roi.Box,
	}
	if frame.Mode == thermal.Radiometric {
		rec.Raw16File = stem + "_raw16.png"
	}
	if gps, ok := l.position.Position(now); ok {
		rec.Position = &gps
	}

	size, err := l.writeImages(&rec, img, frame.Raw16)
	if err != nil {
		l.logger.Warn("save failed, retrying", slog.String("filename", rec.Filename), slog.Any("error", err))
		time.Sleep(l.retryDelay)

		size, err = l.writeImages(&rec, img, frame.Raw16)
	}

	l.lastSave = now

	if err != nil {
		l.counters.failures++
		l.logger.Error("save failed", slog.String("filename", rec.Filename), slog.Any("error", err))
		if err = l.recorder.AppendLogLine(fmt.Sprintf("THERMAL | %s | save failed", ts)); err != nil {
			l.logger.Error(err.Error())
		}
		return
	}

	if err = l.recorder.AppendIndexRecord(ctx, rec); err != nil {
		l.logger.Error(err.Error())
	}
	if err = l.recorder.AppendLogLine(rec.Summary()); err != nil {
		l.logger.Error(err.Error())
	}

	l.counters.saves++
	l.logger.Info("frame saved",
		slog.String("filename", rec.Filename),
		slog.String("size", humanize.Bytes(uint64(size))),
		slog.String("mode", rec.Mode.String()),
		slog.Bool("gps", rec.Position != nil))

	l.NextColormap()
}

// fileStem returns ts for the first save in a second and ts_N for the N-th,
// so a forced save never overwrites an autosave from the same second.
func (l *Loop) fileStem(ts string) string {
	if ts != l.lastTS {
		l.lastTS, l.sameTS = ts, 1
		return ts
	}
	l.sameTS++
	return fmt.Sprintf("%s_%d", ts, l.sameTS)
}

func (l *Loop) writeImages(rec *session.IndexRecord, img image.Image, raw16 *image.Gray16) (int64, error) {
	result, err := l.saver.SaveImage(img, rec.Filename)
	if err != nil {
		return 0, err
	}
	size := result.Size

	if rec.Raw16File != "" && raw16 != nil {
		if result, err = l.saver.SaveImage(raw16, rec.Raw16File); err != nil {
			return 0, err
		}
		size += result.Size
	}

	return size, nil
}

// Close releases the annotator. The sensor belongs to the caller.
func (l *Loop) Close() error {
	return l.annotator.Close()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
