package thermal

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"sync"
	"time"
)

const (
	simulatedAmbient      = 29515 // 22°C in centi-Kelvin
	simulatedDynamicRange = 2000  // ±20°C around ambient
	simulatedFramePeriod  = 111 * time.Millisecond
)

// WithFramePeriod sets the delay between two simulated frames
func WithFramePeriod(d time.Duration) func(*Simulated) {
	return func(s *Simulated) {
		s.period = d
	}
}

// WithoutCalibration makes the simulated sensor report no calibration, so
// every frame takes the 8-bit path.
func WithoutCalibration() func(*Simulated) {
	return func(s *Simulated) {
		s.calibrated = false
	}
}

// Simulated is a Sensor producing moving warm blobs over an ambient background.
// It lets the logger run on a bench without a camera.
type Simulated struct {
	width, height int
	period        time.Duration
	calibrated    bool

	mu    sync.Mutex
	noise *noise
}

// NewSimulated returns a w x h simulated sensor seeded with seed.
func NewSimulated(w, h int, seed int64, options ...func(*Simulated)) *Simulated {
	s := Simulated{
		width:      w,
		height:     h,
		period:     simulatedFramePeriod,
		calibrated: true,
		noise:      makeNoise(seed, w, h),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

func (s *Simulated) CaptureRaw16(ctx context.Context) (*image.Gray16, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.noise.update()
	return s.noise.render(s.width, s.height), nil
}

func (s *Simulated) CaptureRaw8(ctx context.Context) (*image.Gray, error) {
	raw, err := s.CaptureRaw16(ctx)
	if err != nil {
		return nil, err
	}
	return ToDisplay8(raw), nil
}

func (s *Simulated) Calibration() *Calibration {
	if !s.calibrated {
		return nil
	}
	cal := TLinear
	return &cal
}

func (s *Simulated) Close() error {
	return nil
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.period <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(s.period)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type vector struct {
	intensity float64
	x         float64
	y         float64
}

type noise struct {
	rand    *rand.Rand
	vectors []vector
}

func makeNoise(seed int64, w, h int) *noise {
	n := &noise{rand: rand.New(rand.NewSource(seed))}
	n.vectors = make([]vector, 10)
	for i := range n.vectors {
		n.vectors[i].intensity = n.rand.NormFloat64() * 8000
		n.vectors[i].x = n.rand.NormFloat64()*float64(w)/6 + float64(w)/2
		n.vectors[i].y = n.rand.NormFloat64()*float64(h)/6 + float64(h)/2
	}
	return n
}

func (n *noise) update() {
	for i := range n.vectors {
		n.vectors[i].intensity += n.rand.NormFloat64() * 80
		n.vectors[i].x += n.rand.NormFloat64() * 0.2
		n.vectors[i].y += n.rand.NormFloat64() * 0.2
	}
}

func (n *noise) render(w, h int) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		fy := float64(y)
		for x := 0; x < w; x++ {
			fx := float64(x)
			value := float64(simulatedAmbient)
			for _, vect := range n.vectors {
				distance := max(1, (vect.x-fx)*(vect.x-fx)+(vect.y-fy)*(vect.y-fy))
				value += vect.intensity / distance
			}
			value = min(value, simulatedAmbient+simulatedDynamicRange)
			value = max(value, simulatedAmbient-simulatedDynamicRange)
			img.SetGray16(x, y, color.Gray16{Y: uint16(value)})
		}
	}
	return img
}
