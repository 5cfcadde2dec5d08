package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roman-kulish/thermal-logger/internal/session"
	"github.com/roman-kulish/thermal-logger/internal/telemetry"
)

const (
	kindGPS   = "gps"
	kindClock = "clock"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func toCaptureData(sessionID int64, rec *session.IndexRecord) (*captureData, error) {
	capturedAt, err := time.ParseInLocation(session.TimestampFormat, rec.Timestamp, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parsing capture timestamp '%s': %w", rec.Timestamp, err)
	}

	data := captureData{
		SessionID:  sessionID,
		CapturedAt: capturedAt,
		Filename:   rec.Filename,
		Raw16File:  sql.NullString{String: rec.Raw16File, Valid: rec.Raw16File != ""},
		Colormap:   rec.Colormap,
		Mode:       rec.Mode.String(),
		FrameMin:   rec.Frame.Min,
		FrameMax:   rec.Frame.Max,
		FrameAvg:   rec.Frame.Mean,
		ROIMin:     rec.ROI.Min,
		ROIMax:     rec.ROI.Max,
		ROIMean:    rec.ROI.Mean,
		ROIX1:      rec.Box.Min.X,
		ROIY1:      rec.Box.Min.Y,
		ROIX2:      rec.Box.Max.X,
		ROIY2:      rec.Box.Max.Y,
	}

	if rec.Position != nil {
		data.Latitude = sql.NullFloat64{Float64: rec.Position.Latitude, Valid: true}
		data.Longitude = sql.NullFloat64{Float64: rec.Position.Longitude, Valid: true}
	}

	return &data, nil
}

func toTelemetryData(sessionID int64, s telemetry.Sample) (*telemetryData, error) {
	switch v := s.(type) {
	case telemetry.GPS:
		return &telemetryData{
			SessionID:       sessionID,
			Kind:            kindGPS,
			DeviceTimestamp: v.Timestamp,
			ReceivedAt:      v.ReceivedAt.UTC(),
			Latitude:        sql.NullFloat64{Float64: v.Latitude, Valid: true},
			Longitude:       sql.NullFloat64{Float64: v.Longitude, Valid: true},
			Altitude:        sql.NullFloat64{Float64: v.Altitude, Valid: true},
			Satellites:      sql.NullInt64{Int64: int64(v.Satellites), Valid: true},
		}, nil

	case telemetry.Clock:
		return &telemetryData{
			SessionID:       sessionID,
			Kind:            kindClock,
			DeviceTimestamp: v.Timestamp,
			ReceivedAt:      v.ReceivedAt.UTC(),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported telemetry sample %T", s)
	}
}

func nullableFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
