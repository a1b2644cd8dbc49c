package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/skeleton"
)

// ErrInvalidConfig is wrapped by every validation failure. No session state
// is created when it is returned.
var ErrInvalidConfig = errors.New("invalid configuration")

// MaxFPS is the highest frame rate the depth camera supports.
const MaxFPS = 30

// MaxDurationSeconds is the longest recording a time.Duration can hold.
const MaxDurationSeconds = float64(math.MaxInt64) / float64(time.Second)

// Defaults applied when neither the session file nor flags set a value.
const (
	DefaultFPS          = 30
	DefaultDrainTimeout = 5 * time.Second
)

// Params is the mutable input to NewSessionConfig.
type Params struct {
	Destination     string
	Overwrite       bool
	OutputRoots     []string
	Angles          skeleton.Angles
	DurationSeconds float64
	TargetFPS       float64
	DrainTimeout    time.Duration
}

// DefaultParams returns Params with every defaulted field filled in.
func DefaultParams() Params {
	return Params{
		TargetFPS:    DefaultFPS,
		DrainTimeout: DefaultDrainTimeout,
	}
}

// SessionConfig is the validated, immutable configuration of one recording
// session. It is safe to share between goroutines.
type SessionConfig struct {
	destination  string
	overwrite    bool
	outputRoots  []string
	angles       skeleton.Angles
	duration     time.Duration
	durationSecs float64
	targetFPS    float64
	drainTimeout time.Duration
}

// NewSessionConfig validates p and freezes it.
func NewSessionConfig(p Params) (SessionConfig, error) {
	if p.Destination == "" {
		return SessionConfig{}, fmt.Errorf("%w: destination is required", ErrInvalidConfig)
	}
	if math.IsNaN(p.TargetFPS) || p.TargetFPS <= 0 {
		return SessionConfig{}, fmt.Errorf("%w: frames per second must be positive, got %v", ErrInvalidConfig, p.TargetFPS)
	}
	if p.TargetFPS > MaxFPS {
		return SessionConfig{}, fmt.Errorf("%w: frames per second above maximum (%d): %v", ErrInvalidConfig, MaxFPS, p.TargetFPS)
	}
	if math.IsNaN(p.DurationSeconds) || math.IsInf(p.DurationSeconds, 0) || p.DurationSeconds <= 0 {
		return SessionConfig{}, fmt.Errorf("%w: recording length must be a positive number of seconds, got %v", ErrInvalidConfig, p.DurationSeconds)
	}
	if p.DurationSeconds >= MaxDurationSeconds {
		return SessionConfig{}, fmt.Errorf("%w: recording length must be below %.0f seconds, got %v", ErrInvalidConfig, MaxDurationSeconds, p.DurationSeconds)
	}
	for axis, v := range map[string]float32{"x": p.Angles.X, "y": p.Angles.Y, "z": p.Angles.Z} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return SessionConfig{}, fmt.Errorf("%w: camera angle around %s axis must be finite, got %v", ErrInvalidConfig, axis, v)
		}
	}
	if p.DrainTimeout < 0 {
		return SessionConfig{}, fmt.Errorf("%w: drain timeout must not be negative, got %v", ErrInvalidConfig, p.DrainTimeout)
	}

	return SessionConfig{
		destination:  p.Destination,
		overwrite:    p.Overwrite,
		outputRoots:  append([]string(nil), p.OutputRoots...),
		angles:       p.Angles,
		duration:     time.Duration(p.DurationSeconds * float64(time.Second)),
		durationSecs: p.DurationSeconds,
		targetFPS:    p.TargetFPS,
		drainTimeout: p.DrainTimeout,
	}, nil
}

// Destination is the output file path.
func (c SessionConfig) Destination() string { return c.destination }

// Overwrite reports whether an existing destination may be truncated.
func (c SessionConfig) Overwrite() bool { return c.overwrite }

// OutputRoots returns a copy of the directories the destination must
// resolve inside. Empty means unrestricted.
func (c SessionConfig) OutputRoots() []string { return append([]string(nil), c.outputRoots...) }

// Angles is the camera mounting orientation.
func (c SessionConfig) Angles() skeleton.Angles { return c.angles }

// Duration is the recording length.
func (c SessionConfig) Duration() time.Duration { return c.duration }

// DurationSeconds is the recording length as entered.
func (c SessionConfig) DurationSeconds() float64 { return c.durationSecs }

// TargetFPS is the capture pacing rate.
func (c SessionConfig) TargetFPS() float64 { return c.targetFPS }

// FramePeriod is the pacing period, ceil(1000/fps) milliseconds.
func (c SessionConfig) FramePeriod() time.Duration {
	return FramePeriod(c.targetFPS)
}

// DrainTimeout bounds how long a completed session waits for in-flight
// frames before closing the output.
func (c SessionConfig) DrainTimeout() time.Duration { return c.drainTimeout }

// FramePeriod converts a frame rate into whole milliseconds, rounding up.
func FramePeriod(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(1000/fps)) * time.Millisecond
}
