package tracker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/monitoring"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sensor"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/skeleton"
)

// Options configures a BridgeTracker.
type Options struct {
	// QueueDepth bounds both the input and the result queue. Zero means
	// DefaultQueueDepth.
	QueueDepth int
}

// BridgeTracker decodes frames whose payload is already a skeleton bridge
// message. A single worker drains the input queue in order, so results
// leave in the order frames were submitted.
type BridgeTracker struct {
	calib  sensor.Calibration
	input  chan *sensor.RawFrame
	output chan *Result

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	processed atomic.Uint64
	malformed atomic.Uint64
}

// NewBridgeTracker creates a tracker for a camera running with calib and
// starts its worker.
func NewBridgeTracker(calib sensor.Calibration, opts Options) *BridgeTracker {
	depth := opts.QueueDepth
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	t := &BridgeTracker{
		calib:  calib,
		input:  make(chan *sensor.RawFrame, depth),
		output: make(chan *Result, depth),
		done:   make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run()
	monitoring.Diagf("tracker created for %s %dx%d, queue depth %d", calib.DepthMode, calib.Width, calib.Height, depth)
	return t
}

func (t *BridgeTracker) run() {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		case frame := <-t.input:
			res := t.decode(frame)
			select {
			case t.output <- res:
			case <-t.done:
				return
			}
		}
	}
}

func (t *BridgeTracker) decode(frame *sensor.RawFrame) *Result {
	t.processed.Add(1)
	f, err := skeleton.UnmarshalFrame(frame.Payload)
	if err != nil {
		t.malformed.Add(1)
		monitoring.Diagf("tracker: frame %d: %v", frame.Sequence, err)
		return NewResult(frame.Sequence, frame.DeviceTimestamp, nil, nil)
	}
	ts := frame.DeviceTimestamp
	if f.DeviceTimestampUsec != 0 {
		ts = time.Duration(f.DeviceTimestampUsec) * time.Microsecond
	}
	return NewResult(frame.Sequence, ts, f.Bodies, f.BodyIndexMap)
}

// Submit queues frame for tracking, waiting up to timeout for room.
func (t *BridgeTracker) Submit(ctx context.Context, frame *sensor.RawFrame, timeout time.Duration) error {
	if frame == nil {
		return fmt.Errorf("tracker: nil frame")
	}
	select {
	case <-t.done:
		return ErrClosed
	default:
	}

	if timeout == 0 {
		select {
		case t.input <- frame:
			return nil
		default:
			return ErrEnqueueTimeout
		}
	}

	expired, stop := waitTimer(timeout)
	defer stop()
	select {
	case t.input <- frame:
		return nil
	case <-expired:
		return fmt.Errorf("%w: frame %d not accepted within %v", ErrEnqueueTimeout, frame.Sequence, timeout)
	case <-t.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retrieve returns the oldest finished result, waiting up to timeout for
// one to become available.
func (t *BridgeTracker) Retrieve(ctx context.Context, timeout time.Duration) (*Result, error) {
	select {
	case <-t.done:
		return nil, ErrClosed
	default:
	}

	if timeout == 0 {
		select {
		case res := <-t.output:
			return res, nil
		default:
			return nil, ErrPopTimeout
		}
	}

	expired, stop := waitTimer(timeout)
	defer stop()
	select {
	case res := <-t.output:
		return res, nil
	case <-expired:
		return nil, fmt.Errorf("%w: no result within %v", ErrPopTimeout, timeout)
	case <-t.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Processed returns how many frames the worker has decoded.
func (t *BridgeTracker) Processed() uint64 { return t.processed.Load() }

// Malformed returns how many payloads could not be decoded.
func (t *BridgeTracker) Malformed() uint64 { return t.malformed.Load() }

// Close stops the worker. Frames still queued are dropped.
func (t *BridgeTracker) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
	})
	t.wg.Wait()
	return nil
}

// Calibration returns the camera parameters the tracker was created with.
func (t *BridgeTracker) Calibration() sensor.Calibration { return t.calib }
