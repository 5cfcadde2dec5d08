package storage

import (
	"database/sql"
	"image"
	"time"

	"github.com/roman-kulish/thermal-logger/internal/thermal"
)

// SessionInfo is a logging run as recorded in the database
type SessionInfo struct {
	ID        int64
	RunID     string
	Name      string
	Directory string
	StartTime time.Time
	Config    *string
}

// Capture is one committed save
type Capture struct {
	ID         int64
	SessionID  int64
	CapturedAt time.Time
	Filename   string
	Raw16File  string
	Colormap   string
	Mode       thermal.Mode
	Frame      thermal.Stats
	ROI        thermal.Stats
	Box        image.Rectangle
	Latitude   *float64
	Longitude  *float64
}

// HasPosition reports whether a GPS fix was attached to the capture
func (c *Capture) HasPosition() bool {
	return c.Latitude != nil && c.Longitude != nil
}

type captureData struct {
	SessionID  int64
	CapturedAt time.Time
	Filename   string
	Raw16File  sql.NullString
	Colormap   string
	Mode       string
	FrameMin   float64
	FrameMax   float64
	FrameAvg   float64
	ROIMin     float64
	ROIMax     float64
	ROIMean    float64
	ROIX1      int
	ROIY1      int
	ROIX2      int
	ROIY2      int
	Latitude   sql.NullFloat64
	Longitude  sql.NullFloat64
}

type telemetryData struct {
	SessionID       int64
	Kind            string
	DeviceTimestamp string
	ReceivedAt      time.Time
	Latitude        sql.NullFloat64
	Longitude       sql.NullFloat64
	Altitude        sql.NullFloat64
	Satellites      sql.NullInt64
}
