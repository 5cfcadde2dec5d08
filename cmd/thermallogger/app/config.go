package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/thermal-logger/internal/render"
	"github.com/roman-kulish/thermal-logger/internal/session"
	"github.com/roman-kulish/thermal-logger/internal/telemetry"
)

const (
	SensorLepton    SensorType = "lepton"
	SensorSimulated SensorType = "simulated"

	ImageFormatPNG  ImageFormat = "png"
	ImageFormatJPEG ImageFormat = "jpeg"
)

// Environment overrides, read after the YAML file
const (
	EnvDataRoot         = "THERMAL_DATA_ROOT"
	EnvLogLevel         = "THERMAL_LOG_LEVEL"
	EnvSensor           = "THERMAL_SENSOR"
	EnvTelemetryEnabled = "THERMAL_TELEMETRY_ENABLED"
)

type SensorType string

type ImageFormat string

// Ext returns the file extension written for the format
func (f ImageFormat) Ext() string {
	if f == ImageFormatJPEG {
		return "jpg"
	}
	return "png"
}

type TimeDuration time.Duration

func NewTimeDuration(d time.Duration) TimeDuration {
	return TimeDuration(d)
}

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Validate rejects negative durations and, when positive is set, zero.
func (d TimeDuration) Validate(positive bool) error {
	duration := time.Duration(d)

	if duration < 0 {
		return fmt.Errorf("app.TimeDuration: must not be negative: %s", duration)
	}
	if positive && duration == 0 {
		return fmt.Errorf("app.TimeDuration: must be positive")
	}
	return nil
}

func (d TimeDuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings" json:"settings"`
	Sensor    SensorConfig    `yaml:"sensor" json:"sensor"`
	Capture   CaptureConfig   `yaml:"capture" json:"capture"`
	Session   SessionConfig   `yaml:"session" json:"session"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel slog.Level `yaml:"logLevel" json:"logLevel"`
	Keyboard bool       `yaml:"keyboard" json:"keyboard"` // read s/c/q commands from stdin
}

// SensorConfig selects and configures the thermal camera
type SensorConfig struct {
	Type SensorType `yaml:"type" json:"type"`

	// lepton
	SPI         string `yaml:"spi" json:"spi"`
	I2C         string `yaml:"i2c" json:"i2c"`
	SPIHz       int64  `yaml:"spiHz" json:"spiHz"`
	Radiometric bool   `yaml:"radiometric" json:"radiometric"`

	// simulated
	Width       int          `yaml:"width" json:"width"`
	Height      int          `yaml:"height" json:"height"`
	Seed        int64        `yaml:"seed" json:"seed"`
	FramePeriod TimeDuration `yaml:"framePeriod" json:"framePeriod"`
}

// CaptureConfig controls the acquisition loop
type CaptureConfig struct {
	Interval       TimeDuration `yaml:"interval" json:"interval"`             // autosave period
	RetryDelay     TimeDuration `yaml:"retryDelay" json:"retryDelay"`         // wait before the single save retry
	TickInterval   TimeDuration `yaml:"tickInterval" json:"tickInterval"`     // pause between ticks
	StatusInterval TimeDuration `yaml:"statusInterval" json:"statusInterval"` // 0 disables status reports
	HotBoxSize     int          `yaml:"hotBoxSize" json:"hotBoxSize"`
	ImageFormat    ImageFormat  `yaml:"imageFormat" json:"imageFormat"`
	JPEGQuality    int          `yaml:"jpegQuality" json:"jpegQuality"`
	Colormaps      []string     `yaml:"colormaps" json:"colormaps"`
}

// SessionConfig controls where session directories are created
type SessionConfig struct {
	DataRoot string `yaml:"dataRoot" json:"dataRoot"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// TelemetryConfig represents telemetry settings
type TelemetryConfig struct {
	Enabled  bool         `yaml:"enabled" json:"enabled"`
	Ports    []string     `yaml:"ports" json:"ports"`
	BaudRate int          `yaml:"baudRate" json:"baudRate"`
	Backoff  TimeDuration `yaml:"backoff" json:"backoff"`
	Window   TimeDuration `yaml:"window" json:"window"`
}

// StorageConfig represents the optional database mirror
type StorageConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Database string `yaml:"database" json:"database"` // relative paths resolve against the data root
}

// DefaultConfig returns the configuration used for keys missing from the file
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel: slog.LevelInfo,
			Keyboard: true,
		},
		Sensor: SensorConfig{
			Type:        SensorLepton,
			Radiometric: true,
			Width:       160,
			Height:      120,
			Seed:        1,
		},
		Capture: CaptureConfig{
			Interval:       NewTimeDuration(3 * time.Second),
			RetryDelay:     NewTimeDuration(200 * time.Millisecond),
			TickInterval:   NewTimeDuration(10 * time.Millisecond),
			StatusInterval: NewTimeDuration(30 * time.Second),
			HotBoxSize:     24,
			ImageFormat:    ImageFormatPNG,
			JPEGQuality:    session.DefaultJPEGQuality,
		},
		Session: SessionConfig{
			DataRoot: "data/flir_lepton",
			Prefix:   session.DefaultPrefix,
		},
		Telemetry: TelemetryConfig{
			Enabled:  true,
			Ports:    telemetry.DefaultPorts,
			BaudRate: telemetry.DefaultBaudRate,
			Backoff:  NewTimeDuration(telemetry.DefaultBackoff),
			Window:   NewTimeDuration(telemetry.DefaultWindow),
		},
		Storage: StorageConfig{
			Database: "thermal.sqlite",
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults, applies the
// environment overrides and validates the result. An empty path yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err = yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("decoding config: %w", err)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDataRoot); ok && v != "" {
		c.Session.DataRoot = v
	}

	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		if err := c.Settings.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}

	if v, ok := lookup(EnvSensor); ok && v != "" {
		c.Sensor.Type = SensorType(v)
	}

	if v, ok := lookup(EnvTelemetryEnabled); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTelemetryEnabled, err)
		}
		c.Telemetry.Enabled = enabled
	}

	return nil
}

// Rotation returns the configured colormap cycle, or the default one.
func (c *CaptureConfig) Rotation() ([]render.Colormap, error) {
	if len(c.Colormaps) == 0 {
		return render.DefaultRotation, nil
	}

	rotation := make([]render.Colormap, 0, len(c.Colormaps))
	for _, name := range c.Colormaps {
		cm, err := render.ParseColormap(name)
		if err != nil {
			return nil, err
		}
		rotation = append(rotation, cm)
	}
	return rotation, nil
}

func (c *Config) Validate() error {
	switch c.Sensor.Type {
	case SensorLepton:
	case SensorSimulated:
		if c.Sensor.Width <= 0 || c.Sensor.Height <= 0 {
			return fmt.Errorf("app.Config: simulated sensor size must be positive: %dx%d", c.Sensor.Width, c.Sensor.Height)
		}
		if err := c.Sensor.FramePeriod.Validate(false); err != nil {
			return fmt.Errorf("app.Config: invalid frame period: %w", err)
		}
	default:
		return fmt.Errorf("app.Config: unknown sensor type '%s'", c.Sensor.Type)
	}

	if err := c.Capture.Interval.Validate(true); err != nil {
		return fmt.Errorf("app.Config: invalid capture interval: %w", err)
	}
	if err := c.Capture.RetryDelay.Validate(false); err != nil {
		return fmt.Errorf("app.Config: invalid retry delay: %w", err)
	}
	if err := c.Capture.TickInterval.Validate(false); err != nil {
		return fmt.Errorf("app.Config: invalid tick interval: %w", err)
	}
	if err := c.Capture.StatusInterval.Validate(false); err != nil {
		return fmt.Errorf("app.Config: invalid status interval: %w", err)
	}
	if c.Capture.HotBoxSize <= 0 {
		return fmt.Errorf("app.Config: hot box size must be positive: %d", c.Capture.HotBoxSize)
	}

	switch c.Capture.ImageFormat {
	case ImageFormatPNG, ImageFormatJPEG:
	default:
		return fmt.Errorf("app.Config: invalid image format '%s'", c.Capture.ImageFormat)
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("app.Config: JPEG quality must be between 1 and 100: %d given", c.Capture.JPEGQuality)
	}
	if _, err := c.Capture.Rotation(); err != nil {
		return fmt.Errorf("app.Config: %w", err)
	}

	if c.Session.DataRoot == "" {
		return fmt.Errorf("app.Config: data root must not be empty")
	}

	if c.Telemetry.Enabled {
		if len(c.Telemetry.Ports) == 0 {
			return fmt.Errorf("app.Config: telemetry enabled without ports")
		}
		if c.Telemetry.BaudRate <= 0 {
			return fmt.Errorf("app.Config: baud rate must be positive: %d", c.Telemetry.BaudRate)
		}
		if err := c.Telemetry.Backoff.Validate(true); err != nil {
			return fmt.Errorf("app.Config: invalid telemetry backoff: %w", err)
		}
		if err := c.Telemetry.Window.Validate(true); err != nil {
			return fmt.Errorf("app.Config: invalid telemetry window: %w", err)
		}
	}

	if c.Storage.Enabled && c.Storage.Database == "" {
		return fmt.Errorf("app.Config: storage enabled without a database path")
	}

	return nil
}
