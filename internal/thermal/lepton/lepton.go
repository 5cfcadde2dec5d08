// Package lepton drives a FLIR Lepton over SPI (video) and I²C (control).
package lepton

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/devices/lepton"
	"periph.io/x/periph/devices/lepton/image14bit"
	"periph.io/x/periph/host"

	"github.com/roman-kulish/thermal-logger/internal/thermal"
)

// Config selects the buses the camera is wired to
type Config struct {
	SPI   string // empty picks the first SPI port
	I2C   string // empty picks the first I²C bus
	SPIHz int64  // 0 keeps the driver default
	// Radiometric must match the camera's TLinear setting; when false the
	// calibrated path is never attempted.
	Radiometric bool
}

// Sensor is a thermal.Sensor backed by periph's Lepton driver
type Sensor struct {
	spiPort spi.PortCloser
	i2cBus  i2c.BusCloser
	dev     *lepton.Dev

	radiometric bool

	mu    sync.Mutex
	frame *lepton.Frame
}

// Open initializes the host drivers and connects to the camera.
func Open(config Config) (*Sensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing host: %w", err)
	}

	spiPort, err := spireg.Open(config.SPI)
	if err != nil {
		return nil, fmt.Errorf("opening SPI port '%s': %w", config.SPI, err)
	}
	if config.SPIHz != 0 {
		if err = spiPort.LimitSpeed(physic.Frequency(config.SPIHz) * physic.Hertz); err != nil {
			_ = spiPort.Close()
			return nil, fmt.Errorf("limiting SPI speed: %w", err)
		}
	}

	i2cBus, err := i2creg.Open(config.I2C)
	if err != nil {
		_ = spiPort.Close()
		return nil, fmt.Errorf("opening I2C bus '%s': %w", config.I2C, err)
	}

	dev, err := lepton.New(spiPort, i2cBus)
	if err != nil {
		_ = i2cBus.Close()
		_ = spiPort.Close()
		return nil, fmt.Errorf("connecting to lepton: %w", err)
	}

	return &Sensor{
		spiPort:     spiPort,
		i2cBus:      i2cBus,
		dev:         dev,
		radiometric: config.Radiometric,
		frame:       &lepton.Frame{Gray14: image14bit.NewGray14(dev.Bounds())},
	}, nil
}

// CaptureRaw16 reads the next frame and returns its linear counts. With
// TLinear enabled the counts are centi-Kelvin.
func (s *Sensor) CaptureRaw16(ctx context.Context) (*image.Gray16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dev.NextFrame(s.frame); err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}

	b := s.frame.Bounds()
	img := image.NewGray16(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := s.frame.Intensity14At(b.Min.X+x, b.Min.Y+y)
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}
	return img, nil
}

// CaptureRaw8 reads the next frame and stretches it to 8 bits.
func (s *Sensor) CaptureRaw8(ctx context.Context) (*image.Gray, error) {
	raw, err := s.CaptureRaw16(ctx)
	if err != nil {
		return nil, err
	}
	return thermal.ToDisplay8(raw), nil
}

func (s *Sensor) Calibration() *thermal.Calibration {
	if !s.radiometric {
		return nil
	}
	cal := thermal.TLinear
	return &cal
}

func (s *Sensor) Close() error {
	i2cErr := s.i2cBus.Close()
	spiErr := s.spiPort.Close()

	switch {
	case i2cErr != nil && spiErr != nil:
		return fmt.Errorf("closing buses: %w, %w", i2cErr, spiErr)
	case i2cErr != nil:
		return i2cErr
	default:
		return spiErr
	}
}
