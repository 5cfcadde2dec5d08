package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	marker = "DATA"

	kindGPS   = "GPS"
	kindRTC   = "RTC"
	kindClock = "CLOCK"

	minGPSFields   = 7 // DATA,GPS,ts,lat,lon,alt,sats
	minClockFields = 3 // DATA,RTC,ts
)

// ErrMalformedLine is returned for lines that do not carry a valid sample
var ErrMalformedLine = errors.New("malformed telemetry line")

// ParseLine parses one line of the microcontroller stream received at t.
func ParseLine(line string, t time.Time) (Sample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	if len(fields) < 2 || fields[0] != marker {
		return nil, fmt.Errorf("%w: missing %s marker", ErrMalformedLine, marker)
	}

	switch strings.ToUpper(fields[1]) {
	case kindGPS:
		return parseGPS(fields, t)

	case kindRTC, kindClock:
		if len(fields) < minClockFields {
			return nil, fmt.Errorf("%w: clock record needs %d fields, got %d", ErrMalformedLine, minClockFields, len(fields))
		}
		return Clock{Timestamp: fields[2], ReceivedAt: t}, nil

	default:
		return nil, fmt.Errorf("%w: unknown record type '%s'", ErrMalformedLine, fields[1])
	}
}

func parseGPS(fields []string, t time.Time) (Sample, error) {
	if len(fields) < minGPSFields {
		return nil, fmt.Errorf("%w: GPS record needs %d fields, got %d", ErrMalformedLine, minGPSFields, len(fields))
	}

	lat, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid latitude: %w", ErrMalformedLine, err)
	}

	lon, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid longitude: %w", ErrMalformedLine, err)
	}

	alt, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid altitude: %w", ErrMalformedLine, err)
	}

	sats, err := strconv.Atoi(fields[6])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid satellite count: %w", ErrMalformedLine, err)
	}

	return GPS{
		Timestamp:  fields[2],
		Latitude:   lat,
		Longitude:  lon,
		Altitude:   alt,
		Satellites: sats,
		ReceivedAt: t,
	}, nil
}
