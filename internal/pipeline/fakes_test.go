package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sensor"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sink"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/timeutil"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/tracker"
)

// fakeDevice yields numbered frames on demand.
type fakeDevice struct {
	clock *timeutil.MockClock
	// captureTime advances clock on every frame.
	captureTime time.Duration
	// limit ends the stream after that many frames. Zero means unlimited.
	limit int
	// block makes NextFrame wait for cancellation instead of exhausting.
	block bool

	mu sync.Mutex
	n  int
}

func (d *fakeDevice) Start(sensor.DeviceConfig) error { return nil }

func (d *fakeDevice) NextFrame(ctx context.Context, _ time.Duration) (*sensor.RawFrame, error) {
	d.mu.Lock()
	if d.limit > 0 && d.n >= d.limit {
		d.mu.Unlock()
		if d.block {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: fake stream ended", sensor.ErrSourceExhausted)
	}
	d.n++
	n := d.n
	d.mu.Unlock()

	if d.captureTime > 0 {
		d.clock.Advance(d.captureTime)
	}
	return &sensor.RawFrame{Sequence: uint64(n), CapturedAt: d.clock.Now()}, nil
}

func (d *fakeDevice) Calibration() (sensor.Calibration, error) {
	return sensor.Calibration{DepthMode: sensor.DepthModeNFOVUnbinned, CameraFPS: 30}, nil
}

func (d *fakeDevice) Close() error { return nil }

type processorFunc func(ctx context.Context, frame *sensor.RawFrame, dispatched time.Time) error

func (f processorFunc) Process(ctx context.Context, frame *sensor.RawFrame, dispatched time.Time) error {
	return f(ctx, frame, dispatched)
}

// fakeTracker answers every Retrieve with the next queued result.
type fakeTracker struct {
	submitErr   error
	retrieveErr error
	nilResult   bool

	mu        sync.Mutex
	submitted []*sensor.RawFrame
	results   []*tracker.Result
}

func (t *fakeTracker) Submit(_ context.Context, frame *sensor.RawFrame, _ time.Duration) error {
	if t.submitErr != nil {
		return t.submitErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.submitted = append(t.submitted, frame)
	return nil
}

func (t *fakeTracker) Retrieve(context.Context, time.Duration) (*tracker.Result, error) {
	if t.retrieveErr != nil {
		return nil, t.retrieveErr
	}
	if t.nilResult {
		return nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.results) == 0 {
		return nil, tracker.ErrPopTimeout
	}
	res := t.results[0]
	t.results = t.results[1:]
	return res, nil
}

func (t *fakeTracker) Close() error { return nil }

// memoryWriter collects rows.
type memoryWriter struct {
	err error

	mu   sync.Mutex
	rows []sink.Row
}

func (w *memoryWriter) WriteRow(r sink.Row) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, r)
	return nil
}

func (w *memoryWriter) Rows() []sink.Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]sink.Row(nil), w.rows...)
}
