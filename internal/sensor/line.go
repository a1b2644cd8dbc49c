package sensor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/monitoring"
)

// ErrWriteFailed is returned when a command is only partially written.
var ErrWriteFailed = errors.New("failed to write to sensor port")

// maxLineSize bounds one encoded frame. A full-resolution body index map is
// well under this once base64 encoded.
const maxLineSize = 4 * 1024 * 1024

// Port is the minimal stream a LineDevice reads from. Ports that also
// implement io.Writer can receive bridge commands.
type Port interface {
	io.Reader
	io.Closer
}

// LineDevice is a Device over a line-oriented stream: every non-blank line
// is one frame payload.
type LineDevice[T Port] struct {
	name     string
	port     T
	now      func() time.Time
	commands bool

	mu      sync.Mutex
	started bool
	calib   Calibration

	lines   chan []byte
	scanErr error // written before lines is closed
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error

	seq atomic.Uint64
}

// NewLineDevice wraps port. name is used in errors and logs.
func NewLineDevice[T Port](name string, port T) *LineDevice[T] {
	return &LineDevice[T]{
		name:  name,
		port:  port,
		now:   time.Now,
		lines: make(chan []byte),
		done:  make(chan struct{}),
	}
}

// Start validates cfg and begins reading lines from the port.
func (d *LineDevice[T]) Start(cfg DeviceConfig) error {
	calib, err := cfg.Calibration()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return fmt.Errorf("sensor %s already started", d.name)
	}
	select {
	case <-d.done:
		return fmt.Errorf("%w: %s is closed", ErrSourceExhausted, d.name)
	default:
	}

	if d.commands {
		if err := d.sendCommand(fmt.Sprintf("START %s %d", calib.DepthMode, calib.CameraFPS)); err != nil {
			return fmt.Errorf("start cameras on %s: %w", d.name, err)
		}
	}
	d.calib = calib
	d.started = true
	go d.readLines()

	monitoring.Diagf("sensor %s started: depth mode %s at %d fps", d.name, calib.DepthMode, calib.CameraFPS)
	return nil
}

func (d *LineDevice[T]) readLines() {
	defer close(d.lines)

	scan := bufio.NewScanner(d.port)
	scan.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scan.Scan() {
		line := bytes.TrimSpace(scan.Bytes())
		if len(line) == 0 {
			continue
		}
		payload := append([]byte(nil), line...)
		select {
		case d.lines <- payload:
		case <-d.done:
			return
		}
	}
	d.scanErr = scan.Err()
}

// NextFrame returns the next line as a frame.
func (d *LineDevice[T]) NextFrame(ctx context.Context, timeout time.Duration) (*RawFrame, error) {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}

	expired, stop := waitTimer(timeout)
	defer stop()

	select {
	case payload, ok := <-d.lines:
		if !ok {
			if d.scanErr != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrSourceExhausted, d.name, d.scanErr)
			}
			return nil, fmt.Errorf("%w: %s: end of stream", ErrSourceExhausted, d.name)
		}
		return &RawFrame{
			Sequence:        d.seq.Add(1),
			DeviceTimestamp: peekDeviceTimestamp(payload),
			CapturedAt:      d.now(),
			Payload:         payload,
		}, nil
	case <-expired:
		return nil, fmt.Errorf("%w: no frame from %s within %v", ErrSourceExhausted, d.name, timeout)
	case <-d.done:
		return nil, fmt.Errorf("%w: %s is closed", ErrSourceExhausted, d.name)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Calibration returns the camera parameters chosen by Start.
func (d *LineDevice[T]) Calibration() (Calibration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return Calibration{}, ErrNotStarted
	}
	return d.calib, nil
}

// Close stops the cameras if the port accepts commands, then closes the
// port. Further NextFrame calls report ErrSourceExhausted.
func (d *LineDevice[T]) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		started := d.started
		d.mu.Unlock()
		if started && d.commands {
			if err := d.sendCommand("STOP"); err != nil {
				monitoring.Diagf("sensor %s: stop command failed: %v", d.name, err)
			}
		}
		close(d.done)
		d.closeErr = d.port.Close()
	})
	return d.closeErr
}

func (d *LineDevice[T]) sendCommand(command string) error {
	w, ok := any(d.port).(io.Writer)
	if !ok {
		return fmt.Errorf("sensor %s does not accept commands", d.name)
	}
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := w.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// peekDeviceTimestamp reads the device timestamp out of an encoded frame,
// or zero if the payload does not carry one.
func peekDeviceTimestamp(payload []byte) time.Duration {
	var head struct {
		DeviceTimestampUsec uint64 `json:"device_timestamp_us"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return 0
	}
	return time.Duration(head.DeviceTimestampUsec) * time.Microsecond
}
