// Package sensor supplies raw capture frames to the recorder. A Device is
// started with a DeviceConfig and then polled, by a single caller, for the
// next RawFrame.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/config"
)

var (
	// ErrSourceExhausted is returned by NextFrame when the source has no
	// frame to give: end of stream, a closed port or an expired wait.
	ErrSourceExhausted = errors.New("sensor source exhausted")

	// ErrInvalidConfig is returned by Start for a configuration the camera
	// cannot run. It matches config.ErrInvalidConfig under errors.Is.
	ErrInvalidConfig = fmt.Errorf("sensor: %w", config.ErrInvalidConfig)

	// ErrNotStarted is returned when a device is polled before Start.
	ErrNotStarted = errors.New("sensor device not started")
)

// WaitInfinite makes NextFrame block until a frame arrives, the source is
// exhausted or the context is cancelled.
const WaitInfinite time.Duration = -1

// RawFrame is one capture as delivered by the source. Payload is opaque to
// everything but the tracker. A RawFrame has a single owner at a time.
type RawFrame struct {
	Sequence        uint64
	DeviceTimestamp time.Duration
	CapturedAt      time.Time
	Payload         []byte
}

// Device is a started-once source of frames.
type Device interface {
	// Start configures and starts the cameras.
	Start(cfg DeviceConfig) error
	// NextFrame waits up to timeout for the next frame. A negative timeout
	// waits forever.
	NextFrame(ctx context.Context, timeout time.Duration) (*RawFrame, error)
	// Calibration describes the running camera mode.
	Calibration() (Calibration, error)
	Close() error
}

// DepthMode names a depth camera mode.
type DepthMode string

const (
	DepthModeNFOV2x2Binned DepthMode = "NFOV_2X2BINNED"
	DepthModeNFOVUnbinned  DepthMode = "NFOV_UNBINNED"
	DepthModeWFOV2x2Binned DepthMode = "WFOV_2X2BINNED"
	DepthModeWFOVUnbinned  DepthMode = "WFOV_UNBINNED"
)

type depthModeInfo struct {
	width, height int
	maxFPS        int
}

var depthModes = map[DepthMode]depthModeInfo{
	DepthModeNFOV2x2Binned: {320, 288, 30},
	DepthModeNFOVUnbinned:  {640, 576, 30},
	DepthModeWFOV2x2Binned: {512, 512, 30},
	DepthModeWFOVUnbinned:  {1024, 1024, 15},
}

// supportedFPS are the camera rates, ascending.
var supportedFPS = []int{5, 15, 30}

// DeviceConfig selects the camera mode and the target capture rate.
type DeviceConfig struct {
	DepthMode DepthMode
	FPS       float64
}

// DefaultDeviceConfig returns the mode the recorder uses unless told
// otherwise.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{DepthMode: DepthModeNFOVUnbinned, FPS: config.DefaultFPS}
}

// CameraFPS returns the smallest supported camera rate that can sustain the
// target rate.
func (c DeviceConfig) CameraFPS() (int, error) {
	if math.IsNaN(c.FPS) || c.FPS <= 0 {
		return 0, fmt.Errorf("%w: frames per second must be positive, got %v", ErrInvalidConfig, c.FPS)
	}
	if c.FPS > config.MaxFPS {
		return 0, fmt.Errorf("%w: frames per second above maximum (%d): %v", ErrInvalidConfig, config.MaxFPS, c.FPS)
	}
	for _, fps := range supportedFPS {
		if c.FPS <= float64(fps) {
			return fps, nil
		}
	}
	return config.MaxFPS, nil
}

// Calibration resolves the config into the running camera parameters.
func (c DeviceConfig) Calibration() (Calibration, error) {
	mode := c.DepthMode
	if mode == "" {
		mode = DepthModeNFOVUnbinned
	}
	info, ok := depthModes[mode]
	if !ok {
		return Calibration{}, fmt.Errorf("%w: unknown depth mode %q", ErrInvalidConfig, c.DepthMode)
	}
	fps, err := c.CameraFPS()
	if err != nil {
		return Calibration{}, err
	}
	if fps > info.maxFPS {
		return Calibration{}, fmt.Errorf("%w: depth mode %s runs at most %d fps, need %d", ErrInvalidConfig, mode, info.maxFPS, fps)
	}
	return Calibration{DepthMode: mode, CameraFPS: fps, Width: info.width, Height: info.height}, nil
}

// Calibration is what the tracker needs to know about the camera.
type Calibration struct {
	DepthMode DepthMode
	CameraFPS int
	Width     int
	Height    int
}

// ParseDepthMode accepts a depth mode name in any case.
func ParseDepthMode(s string) (DepthMode, error) {
	for m := range depthModes {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown depth mode %q", ErrInvalidConfig, s)
}

// waitTimer returns a channel that fires after timeout, or nil (never
// fires) for a negative timeout. stop releases the timer.
func waitTimer(timeout time.Duration) (c <-chan time.Time, stop func()) {
	if timeout < 0 {
		return nil, func() {}
	}
	t := time.NewTimer(timeout)
	return t.C, func() { t.Stop() }
}
