package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// File is the optional on-disk session description. Every field is
// optional; unset fields keep the value already present in Params, so a
// partial file is safe. The same keys are accepted in JSON and YAML.
type File struct {
	Output       *string  `json:"output,omitempty" yaml:"output,omitempty"`
	Overwrite    *bool    `json:"overwrite,omitempty" yaml:"overwrite,omitempty"`
	OutputRoots  []string `json:"output_roots,omitempty" yaml:"output_roots,omitempty"`
	AngleXDeg    *float32 `json:"angle_x_deg,omitempty" yaml:"angle_x_deg,omitempty"`
	AngleYDeg    *float32 `json:"angle_y_deg,omitempty" yaml:"angle_y_deg,omitempty"`
	AngleZDeg    *float32 `json:"angle_z_deg,omitempty" yaml:"angle_z_deg,omitempty"`
	DurationSecs *float64 `json:"duration_s,omitempty" yaml:"duration_s,omitempty"`
	TargetFPS    *float64 `json:"target_fps,omitempty" yaml:"target_fps,omitempty"`
	DrainTimeout *string  `json:"drain_timeout,omitempty" yaml:"drain_timeout,omitempty"` // duration string like "5s"

	// Device params
	DepthMode         *string `json:"depth_mode,omitempty" yaml:"depth_mode,omitempty"`
	TrackerQueueDepth *int    `json:"tracker_queue_depth,omitempty" yaml:"tracker_queue_depth,omitempty"`

	Serial *SerialFile `json:"serial,omitempty" yaml:"serial,omitempty"`
}

// SerialFile describes the skeleton bridge serial link.
type SerialFile struct {
	Port     string `json:"port,omitempty" yaml:"port,omitempty"`
	BaudRate int    `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty"`
	DataBits int    `json:"data_bits,omitempty" yaml:"data_bits,omitempty"`
	StopBits int    `json:"stop_bits,omitempty" yaml:"stop_bits,omitempty"`
	Parity   string `json:"parity,omitempty" yaml:"parity,omitempty"`
}

const maxFileSize = 1 * 1024 * 1024 // 1MB

// LoadFile loads a session file. The format is chosen by extension: .json,
// .yaml or .yml.
func LoadFile(path string) (*File, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	f := &File{}
	if ext == ".json" {
		err = json.Unmarshal(data, f)
	} else {
		err = yaml.UnmarshalStrict(data, f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the fields that can be checked without the rest of the
// session parameters.
func (f *File) Validate() error {
	if f.TargetFPS != nil && (*f.TargetFPS <= 0 || *f.TargetFPS > MaxFPS) {
		return fmt.Errorf("%w: target_fps must be in (0, %d], got %v", ErrInvalidConfig, MaxFPS, *f.TargetFPS)
	}
	if f.DurationSecs != nil && *f.DurationSecs <= 0 {
		return fmt.Errorf("%w: duration_s must be positive, got %v", ErrInvalidConfig, *f.DurationSecs)
	}
	if f.DrainTimeout != nil && *f.DrainTimeout != "" {
		if _, err := time.ParseDuration(*f.DrainTimeout); err != nil {
			return fmt.Errorf("%w: invalid drain_timeout '%s': %v", ErrInvalidConfig, *f.DrainTimeout, err)
		}
	}
	if f.TrackerQueueDepth != nil && *f.TrackerQueueDepth < 1 {
		return fmt.Errorf("%w: tracker_queue_depth must be at least 1, got %d", ErrInvalidConfig, *f.TrackerQueueDepth)
	}
	return nil
}

// ApplyTo copies every set field onto p.
func (f *File) ApplyTo(p *Params) {
	if f.Output != nil {
		p.Destination = *f.Output
	}
	if f.Overwrite != nil {
		p.Overwrite = *f.Overwrite
	}
	if len(f.OutputRoots) > 0 {
		p.OutputRoots = append([]string(nil), f.OutputRoots...)
	}
	if f.AngleXDeg != nil {
		p.Angles.X = *f.AngleXDeg
	}
	if f.AngleYDeg != nil {
		p.Angles.Y = *f.AngleYDeg
	}
	if f.AngleZDeg != nil {
		p.Angles.Z = *f.AngleZDeg
	}
	if f.DurationSecs != nil {
		p.DurationSeconds = *f.DurationSecs
	}
	if f.TargetFPS != nil {
		p.TargetFPS = *f.TargetFPS
	}
	if f.DrainTimeout != nil && *f.DrainTimeout != "" {
		if d, err := time.ParseDuration(*f.DrainTimeout); err == nil {
			p.DrainTimeout = d
		}
	}
}

// GetDepthMode returns the depth_mode value or the default.
func (f *File) GetDepthMode() string {
	if f == nil || f.DepthMode == nil || *f.DepthMode == "" {
		return "NFOV_UNBINNED" // default
	}
	return *f.DepthMode
}

// GetTrackerQueueDepth returns the tracker_queue_depth value or the default.
func (f *File) GetTrackerQueueDepth() int {
	if f == nil || f.TrackerQueueDepth == nil {
		return 3 // default
	}
	return *f.TrackerQueueDepth
}
