package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/config"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/monitoring"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sensor"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/timeutil"
)

// ErrStopped is the cancellation cause for tasks abandoned by Stop.
var ErrStopped = errors.New("scheduler stopped")

// State is the scheduler lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether s is Completed or Aborted.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// SchedulerConfig holds the scheduler's collaborators.
type SchedulerConfig struct {
	Device    sensor.Device
	Processor Processor
	FPS       float64
	Duration  time.Duration
	Clock     timeutil.Clock
	Stats     *Stats

	// FrameTimeout bounds each wait for a frame. Zero or negative waits
	// forever.
	FrameTimeout time.Duration
}

// RunResult is what Run reports once the loop has ended.
type RunResult struct {
	State      State
	Dispatched uint64
	Started    time.Time
	Ended      time.Time
}

// Scheduler captures frames at a target rate for a fixed duration and
// hands each frame to its own goroutine. It never waits for those
// goroutines: there is no cap on in-flight frames and no backpressure
// from a slow tracker or writer, so capture keeps its cadence and rows
// may be emitted out of capture order.
type Scheduler struct {
	cfg SchedulerConfig

	state atomic.Int32
	tasks sync.WaitGroup

	mu      sync.Mutex
	cancel  context.CancelCauseFunc
	taskErr error
}

// NewScheduler validates cfg and returns an idle scheduler.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Device == nil || cfg.Processor == nil {
		return nil, fmt.Errorf("scheduler needs a device and a processor")
	}
	if !(cfg.FPS > 0) || cfg.FPS > config.MaxFPS {
		return nil, fmt.Errorf("%w: frames per second out of range: %v", config.ErrInvalidConfig, cfg.FPS)
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %v", config.ErrInvalidConfig, cfg.Duration)
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats()
	}
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = sensor.WaitInfinite
	}
	return &Scheduler{cfg: cfg}, nil
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Stats returns the counters shared with the processor.
func (s *Scheduler) Stats() *Stats {
	return s.cfg.Stats
}

// Run drives the capture loop until the duration has elapsed (Completed)
// or a fatal condition occurs (Aborted): the source is exhausted, a frame
// task fails, or ctx is cancelled. On abort the returned error is the
// first fatal cause. Run returns without waiting for in-flight frames;
// use Wait to drain them.
func (s *Scheduler) Run(ctx context.Context) (RunResult, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return RunResult{State: s.State()}, fmt.Errorf("scheduler is %s, not idle", s.State())
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	clock := s.cfg.Clock
	period := config.FramePeriod(s.cfg.FPS)
	res := RunResult{Started: clock.Now()}
	t0 := res.Started

	var fatal error
	for {
		tk := clock.Now()
		frame, err := s.cfg.Device.NextFrame(runCtx, s.cfg.FrameTimeout)
		if err != nil {
			if runCtx.Err() != nil {
				err = context.Cause(runCtx)
			}
			fatal = err
			break
		}

		res.Dispatched++
		s.cfg.Stats.dispatched.Add(1)
		monitoring.Tracef("start processing frame %d", res.Dispatched)
		s.dispatch(runCtx, cancel, frame, tk)

		if sleep := period - clock.Since(tk); sleep > 0 {
			select {
			case <-clock.After(sleep):
			case <-runCtx.Done():
			}
		}

		if runCtx.Err() != nil {
			fatal = context.Cause(runCtx)
			break
		}
		if tk.Sub(t0) >= s.cfg.Duration {
			break
		}
	}

	res.Ended = clock.Now()
	if fatal != nil {
		cancel(fatal)
		res.State = StateAborted
		s.state.Store(int32(StateAborted))
		monitoring.Opsf("capture aborted after %d frames: %v", res.Dispatched, fatal)
		return res, fatal
	}
	res.State = StateCompleted
	s.state.Store(int32(StateCompleted))
	monitoring.Opsf("capture completed: %d frames in %v", res.Dispatched, res.Ended.Sub(t0))
	return res, nil
}

// dispatch hands frame to its own goroutine. The first failing task
// cancels the run with its error as the cause.
func (s *Scheduler) dispatch(ctx context.Context, cancel context.CancelCauseFunc, frame *sensor.RawFrame, tk time.Time) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		if err := s.cfg.Processor.Process(ctx, frame, tk); err != nil {
			s.cfg.Stats.failed.Add(1)
			s.mu.Lock()
			first := s.taskErr == nil && ctx.Err() == nil
			if first {
				s.taskErr = err
			}
			s.mu.Unlock()
			if first {
				monitoring.Opsf("fatal: %v", err)
			}
			cancel(err)
			return
		}
		s.cfg.Stats.completed.Add(1)
	}()
}

// Wait blocks until every dispatched frame has finished or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TaskErr returns the first error a frame task failed with while the run
// was still live, including failures after Run returned. Failures caused
// by cancellation are not reported.
func (s *Scheduler) TaskErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskErr
}

// Stop cancels every in-flight frame. It is safe to call at any time.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel(ErrStopped)
	}
}
