package thermal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// Sensor is a thermal camera. The 8-bit path is mandatory; the calibrated
// 16-bit path may fail at any time, which is recoverable.
type Sensor interface {
	CaptureRaw16(ctx context.Context) (*image.Gray16, error)
	CaptureRaw8(ctx context.Context) (*image.Gray, error)

	// Calibration returns nil when the sensor is not in calibrated mode.
	Calibration() *Calibration

	Close() error
}

// Acquire captures one frame, preferring the calibrated path. Any failure on
// that path falls back to the 8-bit capture for this call only; the reason is
// kept in Frame.Fallback. An error is returned only when both paths fail.
func Acquire(ctx context.Context, s Sensor) (*Frame, error) {
	frame, err := acquireRadiometric(ctx, s)
	if err == nil {
		return frame, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	fallback, fbErr := acquireRaw(ctx, s)
	if fbErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrSensorUnavailable, errors.Join(err, fbErr))
	}

	fallback.Fallback = err
	return fallback, nil
}

func acquireRadiometric(ctx context.Context, s Sensor) (*Frame, error) {
	cal := s.Calibration()
	if cal == nil {
		return nil, ErrCalibrationUnavailable
	}

	raw, err := s.CaptureRaw16(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: capturing raw16: %w", ErrSensorUnavailable, err)
	}

	metric, err := ToCelsius(raw, cal)
	if err != nil {
		return nil, fmt.Errorf("converting to celsius: %w", err)
	}

	return &Frame{
		Mode:       Radiometric,
		Metric:     metric,
		Display8:   ToDisplay8(raw),
		Raw16:      raw,
		CapturedAt: time.Now().UTC(),
	}, nil
}

func acquireRaw(ctx context.Context, s Sensor) (*Frame, error) {
	gray, err := s.CaptureRaw8(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing raw8: %w", err)
	}

	return &Frame{
		Mode:       RawFallback,
		Metric:     MetricFromGray(gray),
		Display8:   gray,
		CapturedAt: time.Now().UTC(),
	}, nil
}
