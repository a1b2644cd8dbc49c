package sensor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/skeleton"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/timeutil"
)

// SyntheticOptions configures NewSyntheticDevice.
type SyntheticOptions struct {
	// Bodies per frame. Zero means one body.
	Bodies int
	// Frames is the number of frames before the source is exhausted. Zero
	// means unlimited.
	Frames int
	// IndexMap adds a downscaled body index map to every frame.
	IndexMap bool
	// Clock stamps CapturedAt. Nil means the real clock.
	Clock timeutil.Clock
}

// SyntheticDevice produces deterministic, slowly swaying skeletons without
// hardware. Frames are available immediately on request.
type SyntheticDevice struct {
	opts SyntheticOptions

	mu      sync.Mutex
	started bool
	closed  bool
	calib   Calibration
	seq     uint64
}

// NewSyntheticDevice returns a device that fabricates frames.
func NewSyntheticDevice(opts SyntheticOptions) *SyntheticDevice {
	if opts.Bodies <= 0 {
		opts.Bodies = 1
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &SyntheticDevice{opts: opts}
}

func (d *SyntheticDevice) Start(cfg DeviceConfig) error {
	calib, err := cfg.Calibration()
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return fmt.Errorf("synthetic sensor already started")
	}
	d.calib = calib
	d.started = true
	return nil
}

func (d *SyntheticDevice) NextFrame(ctx context.Context, timeout time.Duration) (*RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case !d.started:
		return nil, ErrNotStarted
	case d.closed:
		return nil, fmt.Errorf("%w: synthetic sensor is closed", ErrSourceExhausted)
	case d.opts.Frames > 0 && d.seq >= uint64(d.opts.Frames):
		return nil, fmt.Errorf("%w: synthetic sensor produced all %d frames", ErrSourceExhausted, d.opts.Frames)
	}

	d.seq++
	stamp := time.Duration(d.seq) * time.Second / time.Duration(d.calib.CameraFPS)
	payload, err := skeleton.MarshalFrame(d.frame(d.seq, stamp))
	if err != nil {
		return nil, fmt.Errorf("encode synthetic frame: %w", err)
	}
	return &RawFrame{
		Sequence:        d.seq,
		DeviceTimestamp: stamp,
		CapturedAt:      d.opts.Clock.Now(),
		Payload:         payload,
	}, nil
}

func (d *SyntheticDevice) frame(seq uint64, stamp time.Duration) skeleton.Frame {
	f := skeleton.Frame{
		DeviceTimestampUsec: uint64(stamp / time.Microsecond),
		Bodies:              make([]skeleton.Body, d.opts.Bodies),
	}
	sway := float32(150 * math.Sin(float64(seq)/10))
	for b := range f.Bodies {
		body := skeleton.Body{ID: uint32(b + 1)}
		for j := range body.Joints {
			body.Joints[j] = skeleton.Joint{
				Position: skeleton.Vec3{
					X: float32(-600+b*400) + sway + float32(40*math.Cos(float64(j))),
					Y: float32(-700 + j*35),
					Z: float32(2000 + b*250),
				},
				Orientation: skeleton.Quaternion{W: 1},
				Confidence:  skeleton.ConfidenceLevel(1 + (j+int(seq))%3),
			}
		}
		f.Bodies[b] = body
	}
	if d.opts.IndexMap {
		f.BodyIndexMap = d.indexMap(len(f.Bodies))
	}
	return f
}

// indexMap marks one vertical band per body on an eighth-size map.
func (d *SyntheticDevice) indexMap(bodies int) *skeleton.IndexMap {
	w, h := d.calib.Width/8, d.calib.Height/8
	m := &skeleton.IndexMap{Width: w, Height: h, Pixels: make([]uint8, w*h)}
	for i := range m.Pixels {
		m.Pixels[i] = skeleton.BodyIndexBackground
	}
	band := w / (bodies + 1)
	for b := 0; b < bodies; b++ {
		left := band * (b + 1)
		for y := h / 4; y < h; y++ {
			for x := left - band/4; x < left+band/4; x++ {
				m.Pixels[y*w+x] = uint8(b)
			}
		}
	}
	return m
}

func (d *SyntheticDevice) Calibration() (Calibration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return Calibration{}, ErrNotStarted
	}
	return d.calib, nil
}

func (d *SyntheticDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
