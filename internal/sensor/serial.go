package sensor

import (
	"fmt"

	"go.bug.st/serial"
)

// NewSerialDevice opens the skeleton bridge on the serial port at path. The
// bridge streams one encoded frame per line and accepts start/stop
// commands on the same link.
func NewSerialDevice(path string, opts PortOptions) (*LineDevice[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}

	d := NewLineDevice(path, port)
	d.commands = true
	return d, nil
}
