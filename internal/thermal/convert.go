package thermal

import (
	"fmt"
	"image"
	"image/color"
)

// TLinear is the Lepton radiometric calibration: pixels are centi-Kelvin.
var TLinear = Calibration{Scale: 0.01, Offset: -273.15}

// Calibration is the linear transform from sensor counts to °C
type Calibration struct {
	Scale  float64
	Offset float64
}

// Apply converts a single sensor count.
func (c Calibration) Apply(raw uint16) float32 {
	return float32(c.Scale*float64(raw) + c.Offset)
}

// ToCelsius converts a 16-bit linear frame to °C. A nil calibration means the
// sensor is not in calibrated mode.
func ToCelsius(raw *image.Gray16, cal *Calibration) (*Metric, error) {
	if cal == nil {
		return nil, ErrCalibrationUnavailable
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty frame", ErrSensorUnavailable)
	}

	b := raw.Bounds()
	m := NewMetric(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			m.Set(x, y, cal.Apply(raw.Gray16At(b.Min.X+x, b.Min.Y+y).Y))
		}
	}
	return m, nil
}

// ToDisplay8 rescales a 16-bit frame to 8 bits using the frame's own min and
// max. A uniform frame maps to black.
func ToDisplay8(raw *image.Gray16) *image.Gray {
	b := raw.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if b.Empty() {
		return out
	}

	lo, hi := uint16(0xFFFF), uint16(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := raw.Gray16At(x, y).Y
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}

	span := uint32(hi - lo)
	if span == 0 {
		return out
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := uint32(raw.Gray16At(b.Min.X+x, b.Min.Y+y).Y - lo)
			out.SetGray(x, y, color.Gray{Y: uint8((v*255 + span/2) / span)})
		}
	}
	return out
}
