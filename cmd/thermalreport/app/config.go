package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/roman-kulish/thermal-logger/internal/render"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"
)

const (
	KindTimeline ReportKind = "timeline"
	KindTrack    ReportKind = "track"
)

type ImageFormat string

// Ext returns the file extension used for the format.
func (f ImageFormat) Ext() string {
	if f == ImageJPEG {
		return "jpg"
	}
	return string(f)
}

type ReportKind string

type Config struct {
	DBPath       string
	SessionID    int64
	OutputFile   string
	Format       ImageFormat
	Kind         ReportKind
	Colormap     render.Colormap
	Width        int
	Height       int
	MinTimestamp *time.Time
	MaxTimestamp *time.Time
	TimeZone     *time.Location
	Verbose      bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

var validKinds = map[ReportKind]struct{}{
	KindTimeline: {},
	KindTrack:    {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		Kind:     KindTimeline,
		Colormap: render.INFERNO,
		Width:    1280,
		Height:   720,
		TimeZone: time.Local,
	}
}

func NewConfigFromCLI() (*Config, error) {
	return ParseConfig(flag.CommandLine, os.Args[1:])
}

// ParseConfig reads the report configuration from command line args. The
// output file gets the extension of the chosen image format appended.
func ParseConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat, kind, colormap, minTimestamp, maxTimestamp, timeZone string
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&kind, "kind", string(KindTimeline), "Report kind. [timeline, track]")
	fs.StringVar(&colormap, "colormap", string(render.INFERNO), "Colormap used for the track report")
	fs.IntVar(&c.Width, "width", c.Width, "Image width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "Image height in pixels")
	fs.StringVar(&minTimestamp, "from", "", "Only include captures at or after this time (format 2006-01-02 15:04:05)")
	fs.StringVar(&maxTimestamp, "to", "", "Only include captures at or before this time (format 2006-01-02 15:04:05)")
	fs.StringVar(&timeZone, "tz", "Local", "Time zone of -from, -to and the chart axis")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)
	kind = strings.ToLower(kind)

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok := validKinds[ReportKind(kind)]; !ok {
		err = fmt.Errorf("invalid report kind: %s", kind)
	} else if c.Width < 160 || c.Height < 120 {
		err = fmt.Errorf("image size %dx%d is too small", c.Width, c.Height)
	}
	if err == nil {
		c.Colormap, err = render.ParseColormap(colormap)
	}
	if err == nil {
		c.TimeZone, err = time.LoadLocation(timeZone)
	}
	if err == nil {
		c.MinTimestamp, err = parseTimestamp(minTimestamp, c.TimeZone)
	}
	if err == nil {
		c.MaxTimestamp, err = parseTimestamp(maxTimestamp, c.TimeZone)
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.Kind = ReportKind(kind)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format.Ext())
	return c, nil
}

func parseTimestamp(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateTime, s, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp '%s': %w", s, err)
	}
	return &t, nil
}
