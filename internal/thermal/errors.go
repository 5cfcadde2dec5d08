package thermal

import "errors"

var (
	// ErrSensorUnavailable is returned when a capture path cannot produce a frame
	ErrSensorUnavailable = errors.New("sensor unavailable")

	// ErrCalibrationUnavailable is returned when the sensor is not in calibrated mode
	ErrCalibrationUnavailable = errors.New("calibration unavailable")
)
