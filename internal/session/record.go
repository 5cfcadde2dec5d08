package session

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/roman-kulish/thermal-logger/internal/telemetry"
	"github.com/roman-kulish/thermal-logger/internal/thermal"
)

// TimestampFormat is the UTC layout used in file names and index rows
const TimestampFormat = "20060102_150405"

// IndexHeader is the first row of index.csv
var IndexHeader = []string{
	"timestamp", "filename", "colormap", "mode", "units",
	"frame_min", "frame_max", "frame_avg",
	"roi_min", "roi_max", "roi_mean",
	"roi_x1", "roi_y1", "roi_x2", "roi_y2",
	"latitude", "longitude",
}

// IndexRecord is one row of index.csv, written once per committed save
type IndexRecord struct {
	Timestamp string // UTC, TimestampFormat
	Filename  string
	Raw16File string // empty unless Mode is Radiometric; not part of the CSV row
	Colormap  string
	Mode      thermal.Mode
	Frame     thermal.Stats
	ROI       thermal.Stats
	Box       image.Rectangle
	Position  *telemetry.GPS // nil when no fix was available
}

// Units returns the unit label matching the record's mode.
func (r *IndexRecord) Units() string {
	return r.Mode.Units()
}

// CSVRow renders the record in IndexHeader order.
func (r *IndexRecord) CSVRow() []string {
	lat, lon := "", ""
	if r.Position != nil {
		lat = ftoa(r.Position.Latitude, 6)
		lon = ftoa(r.Position.Longitude, 6)
	}

	return []string{
		r.Timestamp,
		r.Filename,
		r.Colormap,
		r.Mode.String(),
		r.Units(),
		ftoa(r.Frame.Min, 4),
		ftoa(r.Frame.Max, 4),
		ftoa(r.Frame.Mean, 4),
		ftoa(r.ROI.Min, 4),
		ftoa(r.ROI.Max, 4),
		ftoa(r.ROI.Mean, 4),
		strconv.Itoa(r.Box.Min.X),
		strconv.Itoa(r.Box.Min.Y),
		strconv.Itoa(r.Box.Max.X),
		strconv.Itoa(r.Box.Max.Y),
		lat,
		lon,
	}
}

// Summary is the human-readable log line of a save. Radiometric values carry
// two decimals and a C suffix; raw values are printed as integers, averages
// with one decimal.
func (r *IndexRecord) Summary() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "THERMAL | %s | %s → %s | mode=%s units=%s ", r.Timestamp, r.Colormap, r.Filename, r.Mode, r.Units())

	if r.Mode == thermal.Radiometric {
		fmt.Fprintf(&sb, "frame_min=%.2fC frame_max=%.2fC frame_avg=%.2fC roi_min=%.2fC roi_max=%.2fC roi_mean=%.2fC ",
			r.Frame.Min, r.Frame.Max, r.Frame.Mean, r.ROI.Min, r.ROI.Max, r.ROI.Mean)
	} else {
		fmt.Fprintf(&sb, "frame_min=%.0f frame_max=%.0f frame_avg=%.1f roi_min=%.0f roi_max=%.0f roi_mean=%.1f ",
			r.Frame.Min, r.Frame.Max, r.Frame.Mean, r.ROI.Min, r.ROI.Max, r.ROI.Mean)
	}

	fmt.Fprintf(&sb, "roi=(%d,%d)-(%d,%d) ", r.Box.Min.X, r.Box.Min.Y, r.Box.Max.X, r.Box.Max.Y)

	if r.Position != nil {
		fmt.Fprintf(&sb, "gps=(%s,%s)", ftoa(r.Position.Latitude, 6), ftoa(r.Position.Longitude, 6))
	} else {
		sb.WriteString("gps=(,)")
	}

	return sb.String()
}

func ftoa(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}
