package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"
)

const DefaultBaudRate = 9600

// SerialDialer opens serial ports in 8N1 mode at BaudRate
type SerialDialer struct {
	BaudRate int
}

func (d SerialDialer) Dial(ctx context.Context, port string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	baud := d.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port: %w", err)
	}
	return p, nil
}
