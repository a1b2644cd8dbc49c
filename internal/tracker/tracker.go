// Package tracker turns raw sensor frames into tracked bodies.
//
// The tracking stage is a queue pair: frames are submitted on one side and
// results are retrieved, in submission order, on the other. Callers that
// submit and retrieve from several goroutines at once get results in FIFO
// order, not necessarily the result for the frame they submitted; the
// recorder only relies on every frame yielding exactly one result.
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sensor"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/skeleton"
)

var (
	// ErrEnqueueTimeout is returned when the input queue stayed full for
	// the whole wait.
	ErrEnqueueTimeout = errors.New("add capture to tracker process queue timeout")

	// ErrPopTimeout is returned when no result became available within the
	// wait.
	ErrPopTimeout = errors.New("pop body frame result timeout")

	// ErrClosed is returned by a tracker that has been closed.
	ErrClosed = errors.New("tracker closed")
)

// WaitInfinite waits without a deadline.
const WaitInfinite = sensor.WaitInfinite

// DefaultQueueDepth is the number of frames the tracker holds before
// Submit starts waiting.
const DefaultQueueDepth = 3

// Tracker is the tracking stage. Implementations are safe for concurrent
// use.
type Tracker interface {
	Submit(ctx context.Context, frame *sensor.RawFrame, timeout time.Duration) error
	Retrieve(ctx context.Context, timeout time.Duration) (*Result, error)
	Close() error
}

// Result is the tracker output for one frame. It is immutable.
type Result struct {
	FrameSequence   uint64
	DeviceTimestamp time.Duration

	bodies   []skeleton.Body
	indexMap *skeleton.IndexMap
}

// NewResult builds a result. indexMap may be nil.
func NewResult(seq uint64, ts time.Duration, bodies []skeleton.Body, indexMap *skeleton.IndexMap) *Result {
	return &Result{
		FrameSequence:   seq,
		DeviceTimestamp: ts,
		bodies:          bodies,
		indexMap:        indexMap,
	}
}

// NumBodies returns the number of bodies tracked in the frame.
func (r *Result) NumBodies() int {
	return len(r.bodies)
}

// Body returns the i-th body. It panics if i is out of range.
func (r *Result) Body(i int) skeleton.Body {
	return r.bodies[i]
}

// BodyIndexMap returns the per-pixel body index image, if the tracker
// produced one for this frame.
func (r *Result) BodyIndexMap() (*skeleton.IndexMap, bool) {
	return r.indexMap, r.indexMap != nil
}

// waitTimer returns a channel firing after timeout, or nil for a negative
// timeout.
func waitTimer(timeout time.Duration) (<-chan time.Time, func()) {
	if timeout < 0 {
		return nil, func() {}
	}
	t := time.NewTimer(timeout)
	return t.C, func() { t.Stop() }
}
