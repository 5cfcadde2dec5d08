package thermal

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func gray16(w, h int, values ...uint16) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for i, v := range values {
		img.SetGray16(i%w, i/w, color.Gray16{Y: v})
	}
	return img
}

func TestToCelsius_Affine(t *testing.T) {
	raw := gray16(3, 1, 27315, 29315, 31315)

	m, err := ToCelsius(raw, &TLinear)
	if err != nil {
		t.Fatalf("ToCelsius failed: %v", err)
	}

	expected := []float64{0, 20, 40}
	for x, want := range expected {
		got := float64(m.At(x, 0))
		if math.Abs(got-want) > 1e-3 {
			t.Errorf("pixel %d: expected %.3f°C, got %.3f°C", x, want, got)
		}
	}
}

func TestToCelsius_Deterministic(t *testing.T) {
	raw := gray16(2, 2, 0, 1, 30000, 65535)
	cal := Calibration{Scale: 0.5, Offset: -10}

	first, err := ToCelsius(raw, &cal)
	if err != nil {
		t.Fatalf("ToCelsius failed: %v", err)
	}
	second, err := ToCelsius(raw, &cal)
	if err != nil {
		t.Fatalf("ToCelsius failed: %v", err)
	}

	for i := range first.Pix {
		want := float32(cal.Scale*float64(raw.Gray16At(i%2, i/2).Y) + cal.Offset)
		if first.Pix[i] != want {
			t.Errorf("pixel %d: expected %v, got %v", i, want, first.Pix[i])
		}
		if first.Pix[i] != second.Pix[i] {
			t.Errorf("pixel %d: repeated conversion differs: %v != %v", i, first.Pix[i], second.Pix[i])
		}
	}
}

func TestToCelsius_Uncalibrated(t *testing.T) {
	_, err := ToCelsius(gray16(1, 1, 100), nil)
	if !errors.Is(err, ErrCalibrationUnavailable) {
		t.Fatalf("expected ErrCalibrationUnavailable, got %v", err)
	}
}

func TestToDisplay8(t *testing.T) {
	tests := []struct {
		name     string
		raw      *image.Gray16
		expected []uint8
	}{
		{
			name:     "min max stretch",
			raw:      gray16(3, 1, 1000, 1500, 2000),
			expected: []uint8{0, 128, 255},
		},
		{
			name:     "uniform frame",
			raw:      gray16(2, 1, 4242, 4242),
			expected: []uint8{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ToDisplay8(tt.raw)
			for x, want := range tt.expected {
				if got := out.GrayAt(x, 0).Y; got != want {
					t.Errorf("pixel %d: expected %d, got %d", x, want, got)
				}
			}
		})
	}
}

func TestMetric_Stats(t *testing.T) {
	m := NewMetric(2, 2)
	copy(m.Pix, []float32{1, 2, 3, 6})

	s := m.Stats()
	if s.Min != 1 || s.Max != 6 || s.Mean != 3 {
		t.Errorf("unexpected stats: %+v", s)
	}

	if empty := m.RegionStats(image.Rect(5, 5, 6, 6)); empty != (Stats{}) {
		t.Errorf("expected zero stats outside the matrix, got %+v", empty)
	}
}
