package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/thermal-logger/internal/session"
	"github.com/roman-kulish/thermal-logger/internal/storage"
	"github.com/roman-kulish/thermal-logger/internal/telemetry"
	"github.com/roman-kulish/thermal-logger/internal/thermal"
	"github.com/roman-kulish/thermal-logger/internal/thermal/lepton"
)

// Run opens a new session and logs frames and telemetry into it until ctx is
// done or the operator quits. Only failures to set up the session are
// returned; everything after that is logged and survived.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	sess, err := session.Open(config.Session.DataRoot, config.Session.Prefix)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	sess.JPEGQuality = config.Capture.JPEGQuality

	logger = logger.With(slog.String("session", sess.Name))

	sinkOptions := []func(*session.Sink){session.WithLogger(logger)}
	if config.Storage.Enabled {
		store, mirror, err := createMirror(ctx, config, sess)
		if err != nil {
			logger.Warn("database mirror disabled", slog.Any("error", err))
		} else {
			defer closeAndLog(store, "closing database", logger)
			sinkOptions = append(sinkOptions, session.WithMirror(mirror))
		}
	}

	sink, err := session.NewSink(sess, sinkOptions...)
	if err != nil {
		return fmt.Errorf("opening session files: %w", err)
	}
	defer closeAndLog(sink, "closing session files", logger)

	sensor, err := createSensor(&config.Sensor)
	if err != nil {
		return fmt.Errorf("opening %s sensor: %w", config.Sensor.Type, err)
	}
	defer closeAndLog(sensor, "closing sensor", logger)

	var provider telemetry.Provider = telemetry.Disabled{}
	var ingest *telemetry.Ingest
	if config.Telemetry.Enabled {
		tracker := telemetry.NewTracker(config.Telemetry.Window.Duration())
		provider = tracker

		ingest = telemetry.NewIngest(
			telemetry.SerialDialer{BaudRate: config.Telemetry.BaudRate},
			telemetry.Handlers{tracker, sink},
			telemetry.WithLogger(logger),
			telemetry.WithBackoff(config.Telemetry.Backoff.Duration()),
			telemetry.WithPorts(config.Telemetry.Ports...))
	}

	rotation, err := config.Capture.Rotation()
	if err != nil {
		return err
	}

	loop, err := NewLoop(sensor, sess, sink,
		WithLogger(logger),
		WithPositionProvider(provider),
		WithColormaps(rotation),
		WithSaveInterval(config.Capture.Interval.Duration()),
		WithRetryDelay(config.Capture.RetryDelay.Duration()),
		WithTickInterval(config.Capture.TickInterval.Duration()),
		WithHotBoxSize(config.Capture.HotBoxSize),
		WithImageFormat(config.Capture.ImageFormat),
		WithStatusReport(config.Capture.StatusInterval.Duration(), func(Status) {
			notify(daemon.SdNotifyWatchdog, logger)
		}))
	if err != nil {
		return fmt.Errorf("creating acquisition loop: %w", err)
	}
	defer closeAndLog(loop, "closing annotator", logger)

	if err = sink.AppendLogLine(fmt.Sprintf("SESSION | %s | started run=%s sensor=%s telemetry=%t", sess.Name, sess.RunID, config.Sensor.Type, config.Telemetry.Enabled)); err != nil {
		return fmt.Errorf("writing session log: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var commands <-chan Command
	if config.Settings.Keyboard {
		commands = ReadCommands(ctx, os.Stdin)
		logger.Info("keyboard commands: s = save now, c = next colormap, q = quit")
	}

	var wg sync.WaitGroup
	if ingest != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := ingest.Run(ctx); err != nil {
				logger.Error(err.Error())
			}
		}()
	}

	logger.Info("logging started",
		slog.String("directory", sess.Dir),
		slog.String("runID", sess.RunID),
		slog.String("sensor", string(config.Sensor.Type)),
		slog.Duration("interval", config.Capture.Interval.Duration()))
	notify(daemon.SdNotifyReady, logger)

	err = loop.Run(ctx, commands)

	cancel() // a quit command ends the loop first; stop telemetry too
	wg.Wait()

	notify(daemon.SdNotifyStopping, logger)

	status := loop.Status()
	captures, fixes, clocks := sink.Counts()
	elapsed := time.Since(sess.StartedAt).Round(time.Second)

	_ = sink.AppendLogLine(fmt.Sprintf("SESSION | %s | stopped after %s captures=%d gps=%d clock=%d failures=%d",
		sess.Name, elapsed, captures, fixes, clocks, status.Failures))

	logger.Info("logging finished",
		slog.String("directory", sess.Dir),
		slog.Duration("elapsed", elapsed),
		slog.String("frames", humanize.Comma(status.Frames)),
		slog.String("captures", humanize.Comma(captures)),
		slog.String("gpsFixes", humanize.Comma(fixes)),
		slog.String("clockReadings", humanize.Comma(clocks)),
		slog.Int64("failures", status.Failures),
		slog.Int64("fallbackFrames", status.Fallbacks))

	return err
}

func createSensor(config *SensorConfig) (thermal.Sensor, error) {
	switch config.Type {
	case SensorLepton:
		sensor, err := lepton.Open(lepton.Config{
			SPI:         config.SPI,
			I2C:         config.I2C,
			SPIHz:       config.SPIHz,
			Radiometric: config.Radiometric,
		})
		if err != nil {
			return nil, err
		}
		return sensor, nil

	case SensorSimulated:
		var options []func(*thermal.Simulated)
		if config.FramePeriod > 0 {
			options = append(options, thermal.WithFramePeriod(config.FramePeriod.Duration()))
		}
		if !config.Radiometric {
			options = append(options, thermal.WithoutCalibration())
		}
		return thermal.NewSimulated(config.Width, config.Height, config.Seed, options...), nil

	default:
		return nil, fmt.Errorf("unknown sensor type '%s'", config.Type)
	}
}

func createMirror(ctx context.Context, config *Config, sess *session.Session) (*storage.SqliteStore, *storage.SessionMirror, error) {
	dbPath := config.Storage.Database
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(config.Session.DataRoot, dbPath)
	}

	store := storage.NewSqliteStore(dbPath)

	mirror, err := storage.NewSessionMirror(ctx, store, sess, config)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("registering session in '%s': %w", dbPath, err)
	}
	return store, mirror, nil
}

func notify(state string, logger *slog.Logger) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		logger.Debug(fmt.Sprintf("notifying service manager: %s", err.Error()))
	}
}

func closeAndLog(cl interface{ Close() error }, msg string, logger *slog.Logger) {
	if err := cl.Close(); err != nil {
		logger.Error(fmt.Sprintf("%s: %s", msg, err.Error()))
	}
}
