package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/thermal-logger/internal/session"
	"github.com/roman-kulish/thermal-logger/internal/storage"
)

const jpegQuality = 95

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	sess, captures, err := readCaptures(ctx, store, config, logger)
	if err != nil {
		return err
	}

	switch config.Kind {
	case KindTrack:
		err = renderTrack(sess, captures, config, logger)
	default:
		err = renderTimeline(sess, captures, config, logger)
	}
	if err != nil {
		return err
	}

	if stat, err := os.Stat(config.OutputFile); err == nil {
		logger.Info("report written",
			slog.String("destination", config.OutputFile),
			slog.String("size", humanize.Bytes(uint64(stat.Size()))))
	}
	return nil
}

func readCaptures(ctx context.Context, store storage.Store, config *Config, logger *slog.Logger) (*storage.SessionInfo, []*storage.Capture, error) {
	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.MinTimestamp != nil && config.MaxTimestamp != nil:
		opts = append(opts, storage.WithTimeRange(*config.MinTimestamp, *config.MaxTimestamp))

		filters = append(filters,
			slog.String("minTimestamp", config.MinTimestamp.Format(time.DateTime)),
			slog.String("maxTimestamp", config.MaxTimestamp.Format(time.DateTime)))

	case config.MinTimestamp != nil:
		opts = append(opts, storage.WithStartTime(*config.MinTimestamp))
		filters = append(filters, slog.String("minTimestamp", config.MinTimestamp.Format(time.DateTime)))

	case config.MaxTimestamp != nil:
		opts = append(opts, storage.WithEndTime(*config.MaxTimestamp))
		filters = append(filters, slog.String("maxTimestamp", config.MaxTimestamp.Format(time.DateTime)))
	}

	if config.Kind == KindTrack {
		opts = append(opts, storage.WithPositionOnly())
		filters = append(filters, slog.Bool("positionOnly", true))
	}

	if config.Verbose {
		logger.Info("reader configuration", filters...)
	}

	reader, err := store.ReadCaptures(ctx, config.SessionID, opts...)
	if err != nil {
		return nil, nil, err
	}

	captures, err := reader.ReadAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	sess := reader.Session()
	logger.Info("finished reading captures",
		slog.Group("session",
			slog.Int64("id", sess.ID),
			slog.String("name", sess.Name),
			slog.String("runID", sess.RunID),
			slog.String("started", sess.StartTime.In(config.TimeZone).Format(time.DateTime))),
		slog.String("captures", humanize.Comma(int64(len(captures)))))

	return sess, captures, nil
}

func renderTimeline(sess *storage.SessionInfo, captures []*storage.Capture, config *Config, logger *slog.Logger) error {
	series, err := NewTimelineSeries(captures)
	if err != nil {
		return err
	}
	if series.Skipped > 0 {
		logger.Warn(fmt.Sprintf("skipped %d captures not in %s mode", series.Skipped, series.Mode))
	}

	p, err := NewTimelinePlot(sess, series, config.TimeZone)
	if err != nil {
		return fmt.Errorf("creating chart: %w", err)
	}

	logger.Info("rendering timeline",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
			slog.Int("points", series.Len())))

	return SaveTimeline(p, config.Width, config.Height, config.OutputFile)
}

func renderTrack(sess *storage.SessionInfo, captures []*storage.Capture, config *Config, logger *slog.Logger) error {
	renderer, err := NewTrackRenderer(config.Colormap, config.Width, config.Height)
	if err != nil {
		return fmt.Errorf("creating track renderer: %w", err)
	}
	defer renderer.Close()

	img, summary, err := renderer.Render(sess.Name, captures)
	if err != nil {
		return fmt.Errorf("rendering track: %w", err)
	}

	logger.Info("rendering track",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("colormap", string(config.Colormap)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height)),
		slog.Group("stats",
			slog.Int("fixes", summary.Points),
			slog.String("minLat", fmt.Sprintf("%.6f", summary.MinLat)),
			slog.String("maxLat", fmt.Sprintf("%.6f", summary.MaxLat)),
			slog.String("minLon", fmt.Sprintf("%.6f", summary.MinLon)),
			slog.String("maxLon", fmt.Sprintf("%.6f", summary.MaxLon)),
			slog.String("roiMax", fmt.Sprintf("%.2f..%.2f %s", summary.MinROIMax, summary.MaxROIMax, summary.Units))))

	dir, filename := filepath.Split(config.OutputFile)
	if dir == "" {
		dir = "."
	}

	_, err = session.SaveAtomic(dir, filename, img, session.EncoderFor(filename, jpegQuality))
	return err
}
