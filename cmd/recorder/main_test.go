package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/config"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sensor"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sink"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/skeleton"
)

func defaultFlags() flagValues {
	return flagValues{
		FPS:  config.DefaultFPS,
		Port: "/dev/ttyACM0",
		Baud: sensor.DefaultBaudRate,
	}
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "/dev/ttyACM0", *port)
	assert.Equal(t, sensor.DefaultBaudRate, *baud)
	assert.Equal(t, float64(config.DefaultFPS), *fps)
	assert.False(t, *overwrite)
	assert.False(t, *yes)
	assert.Empty(t, *adminListen)
}

func TestMergeOptions_Defaults(t *testing.T) {
	opts, err := mergeOptions(defaultFlags(), map[string]bool{}, nil)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultParams(), opts.params)
	assert.False(t, opts.haveAngles)
	assert.False(t, opts.haveDuration)
	assert.Equal(t, sensor.DepthModeNFOVUnbinned, opts.depthMode)
	assert.Equal(t, 3, opts.queueDepth)
	assert.Equal(t, "/dev/ttyACM0", opts.port)
	assert.Equal(t, sensor.DefaultBaudRate, opts.portOpts.BaudRate)
	assert.True(t, opts.confirm)
}

func TestMergeOptions_FlagsOverrideFile(t *testing.T) {
	out := "from-file.csv"
	ax, ay := float32(10), float32(20)
	secs := 60.0
	fileFPS := 15.0
	mode := "wfov_2x2binned"
	depth := 5
	file := &config.File{
		Output:            &out,
		AngleXDeg:         &ax,
		AngleYDeg:         &ay,
		DurationSecs:      &secs,
		TargetFPS:         &fileFPS,
		DepthMode:         &mode,
		TrackerQueueDepth: &depth,
		Serial:            &config.SerialFile{Port: "/dev/ttyUSB3", BaudRate: 115200, Parity: "E"},
	}

	fv := defaultFlags()
	fv.AngleX = -45
	fv.FPS = 10
	fv.Baud = 57600
	fv.Yes = true
	set := map[string]bool{"angle-x": true, "fps": true, "baud": true, "yes": true}

	opts, err := mergeOptions(fv, set, file)
	require.NoError(t, err)

	assert.Equal(t, "from-file.csv", opts.params.Destination)
	assert.Equal(t, skeleton.Angles{X: -45, Y: 20}, opts.params.Angles)
	assert.Equal(t, 60.0, opts.params.DurationSeconds)
	assert.Equal(t, 10.0, opts.params.TargetFPS)
	assert.True(t, opts.haveAngles)
	assert.True(t, opts.haveDuration)
	assert.Equal(t, sensor.DepthModeWFOV2x2Binned, opts.depthMode)
	assert.Equal(t, 5, opts.queueDepth)
	assert.Equal(t, "/dev/ttyUSB3", opts.port)
	assert.Equal(t, 57600, opts.portOpts.BaudRate)
	assert.Equal(t, "E", opts.portOpts.Parity)
	assert.False(t, opts.confirm)
}

func TestMergeOptions_SingleAngleFlagSkipsPrompt(t *testing.T) {
	fv := defaultFlags()
	fv.AngleZ = 30
	opts, err := mergeOptions(fv, map[string]bool{"angle-z": true}, nil)
	require.NoError(t, err)
	assert.True(t, opts.haveAngles)
	assert.Equal(t, skeleton.Angles{Z: 30}, opts.params.Angles)
}

func TestMergeOptions_Errors(t *testing.T) {
	fv := defaultFlags()
	fv.DepthMode = "PASSIVE_IR"
	_, err := mergeOptions(fv, map[string]bool{"depth-mode": true}, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	fv = defaultFlags()
	fv.Dev = true
	fv.Replay = "capture.jsonl"
	_, err = mergeOptions(fv, map[string]bool{"dev": true, "replay": true}, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestOpenDevice(t *testing.T) {
	dev, err := openDevice(options{dev: true})
	require.NoError(t, err)
	assert.IsType(t, &sensor.SyntheticDevice{}, dev)

	dev, err = openDevice(options{replay: filepath.Join(t.TempDir(), "missing.jsonl")})
	assert.Error(t, err)
	assert.True(t, dev == nil, "a failed open must return a nil interface")

	_, err = openDevice(options{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRun_DevModeWithPrompts(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "walk.csv")
	opts, err := mergeOptions(defaultFlags(), map[string]bool{}, nil)
	require.NoError(t, err)
	opts.dev = true

	in := strings.NewReader(dest + "\n0 0 0\n0.2\ngo\n")
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), opts, in, &out))

	assert.True(t, strings.HasSuffix(out.String(), "Enter some text to start recording. Finished body tracking processing!\n"))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 2, "header plus at least one body row")
	assert.Equal(t, strings.Join(sink.Header(), ","), lines[0])
	for _, line := range lines[1:] {
		assert.Len(t, strings.Split(line, ","), 2+7*skeleton.JointCount+1)
	}
}

func TestRun_RefusesExistingDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "walk.csv")
	require.NoError(t, os.WriteFile(dest, []byte("keep me"), 0o644))

	opts, err := mergeOptions(defaultFlags(), map[string]bool{}, nil)
	require.NoError(t, err)
	opts.dev = true
	opts.confirm = false
	opts.params.Destination = dest
	opts.params.DurationSeconds = 0.1
	opts.haveAngles, opts.haveDuration = true, true

	err = run(context.Background(), opts, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, err, sink.ErrSink)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestRun_InputClosed(t *testing.T) {
	opts, err := mergeOptions(defaultFlags(), map[string]bool{}, nil)
	require.NoError(t, err)
	opts.dev = true

	err = run(context.Background(), opts, strings.NewReader("walk.csv 1 2"), &bytes.Buffer{})
	assert.ErrorIs(t, err, errNoInput)
}

func TestRun_OverlongDurationLeavesNoFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "walk.csv")
	opts, err := mergeOptions(defaultFlags(), map[string]bool{}, nil)
	require.NoError(t, err)
	opts.dev = true

	in := strings.NewReader(dest + " 0 0 0 1e10 go")
	err = run(context.Background(), opts, in, &bytes.Buffer{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, statErr := os.Stat(dest)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}
