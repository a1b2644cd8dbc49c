// Package session runs one recording from start to finish: it owns the
// output file, starts the sensor, creates the tracker and drives the
// capture loop until the configured duration has elapsed or a fatal error
// ends it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/config"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/fsutil"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/monitoring"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/pipeline"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/security"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sensor"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sink"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/timeutil"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/tracker"
)

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = errors.New("session already run")

// TrackerFactory creates the tracking stage for a started camera.
type TrackerFactory func(sensor.Calibration) (tracker.Tracker, error)

// Deps are the collaborators a session drives. Device is owned by the
// caller; the tracker made by NewTracker is owned and closed by the
// session.
type Deps struct {
	Device     sensor.Device
	NewTracker TrackerFactory
	DepthMode  sensor.DepthMode

	// FS defaults to the operating system, Clock to the wall clock.
	FS    fsutil.FileSystem
	Clock timeutil.Clock
}

// Report is the outcome of a session.
type Report struct {
	ID          uuid.UUID         `json:"id"`
	Destination string            `json:"destination"`
	State       pipeline.State    `json:"-"`
	StateName   string            `json:"state"`
	Frames      uint64            `json:"frames"`
	Rows        uint64            `json:"rows"`
	Stats       pipeline.Snapshot `json:"stats"`
	Err         error             `json:"-"`
	Started     time.Time         `json:"started"`
	Ended       time.Time         `json:"ended"`
}

// Session is a single recording. It runs once.
type Session struct {
	id   uuid.UUID
	cfg  config.SessionConfig
	deps Deps

	ran   atomic.Bool
	state atomic.Int32
	stats *pipeline.Stats

	mu      sync.Mutex
	started time.Time
}

// New validates the collaborators and returns an idle session.
func New(cfg config.SessionConfig, deps Deps) (*Session, error) {
	if cfg.Destination() == "" {
		return nil, fmt.Errorf("%w: session config was not built with NewSessionConfig", config.ErrInvalidConfig)
	}
	if deps.Device == nil {
		return nil, errors.New("session needs a sensor device")
	}
	if deps.NewTracker == nil {
		return nil, errors.New("session needs a tracker factory")
	}
	if deps.FS == nil {
		deps.FS = fsutil.OSFileSystem{}
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.RealClock{}
	}
	return &Session{
		id:    uuid.New(),
		cfg:   cfg,
		deps:  deps,
		stats: pipeline.NewStats(),
	}, nil
}

// ID identifies the session in logs and on the admin page.
func (s *Session) ID() uuid.UUID { return s.id }

// Config returns the session configuration.
func (s *Session) Config() config.SessionConfig { return s.cfg }

// State returns the current lifecycle state.
func (s *Session) State() pipeline.State { return pipeline.State(s.state.Load()) }

// Run records until the duration has elapsed or a fatal error occurs. The
// output file is closed on every return path. The returned error is the
// first fatal cause and is also stored in the report.
func (s *Session) Run(ctx context.Context) (rep Report, err error) {
	if !s.ran.CompareAndSwap(false, true) {
		return Report{ID: s.id, State: s.State(), StateName: s.State().String()}, ErrAlreadyRun
	}

	clock := s.deps.Clock
	rep = Report{ID: s.id, Destination: s.cfg.Destination(), Started: clock.Now()}
	s.mu.Lock()
	s.started = rep.Started
	s.mu.Unlock()

	defer func() {
		if err != nil {
			s.state.Store(int32(pipeline.StateAborted))
			monitoring.Opsf("session %s aborted: %v", s.id, err)
		} else {
			s.state.Store(int32(pipeline.StateCompleted))
			monitoring.Opsf("session %s completed: %d frames, %d rows written to %s", s.id, rep.Frames, rep.Rows, rep.Destination)
		}
		rep.State = s.State()
		rep.StateName = rep.State.String()
		rep.Err = err
		rep.Stats = s.stats.Snapshot()
		rep.Ended = clock.Now()
	}()

	dest := s.cfg.Destination()
	if err := security.ValidateOutputPath(dest, s.cfg.OutputRoots()); err != nil {
		return rep, fmt.Errorf("%w: %w", sink.ErrSink, err)
	}

	if err := s.deps.Device.Start(sensor.DeviceConfig{DepthMode: s.deps.DepthMode, FPS: s.cfg.TargetFPS()}); err != nil {
		return rep, fmt.Errorf("start sensor: %w", err)
	}
	calib, err := s.deps.Device.Calibration()
	if err != nil {
		return rep, fmt.Errorf("read sensor calibration: %w", err)
	}
	trk, err := s.deps.NewTracker(calib)
	if err != nil {
		return rep, fmt.Errorf("create tracker: %w", err)
	}
	defer trk.Close()

	out, err := s.deps.FS.Create(dest, !s.cfg.Overwrite())
	if err != nil {
		return rep, fmt.Errorf("%w: create %s: %w", sink.ErrSink, dest, err)
	}
	w := sink.NewWriter(out)
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
		rep.Rows = w.Rows()
	}()
	if err := w.WriteHeader(); err != nil {
		return rep, err
	}

	proc := pipeline.NewFrameProcessor(trk, w, s.cfg.Angles(), clock, s.stats)
	sched, err := pipeline.NewScheduler(pipeline.SchedulerConfig{
		Device:    s.deps.Device,
		Processor: proc,
		FPS:       s.cfg.TargetFPS(),
		Duration:  s.cfg.Duration(),
		Clock:     clock,
		Stats:     s.stats,
	})
	if err != nil {
		return rep, err
	}
	s.state.Store(int32(pipeline.StateRunning))
	monitoring.Opsf("session %s recording %v at %v fps to %s (angles x=%v y=%v z=%v)",
		s.id, s.cfg.Duration(), s.cfg.TargetFPS(), dest, s.cfg.Angles().X, s.cfg.Angles().Y, s.cfg.Angles().Z)

	res, runErr := sched.Run(ctx)
	rep.Frames = res.Dispatched

	if runErr == nil {
		s.drain(sched)
		runErr = sched.TaskErr()
	}
	// Anything still in flight is abandoned; its rows are dropped once the
	// writer closes.
	sched.Stop()
	return rep, runErr
}

func (s *Session) drain(sched *pipeline.Scheduler) {
	timeout := s.cfg.DrainTimeout()
	if timeout <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := sched.Wait(ctx); err != nil {
		monitoring.Opsf("session %s: %d frames still in flight after %v, abandoning them",
			s.id, sched.Stats().Snapshot().InFlight, timeout)
	}
}

// Status is the live view served on the admin page.
type Status struct {
	ID          string            `json:"id"`
	Destination string            `json:"destination"`
	State       string            `json:"state"`
	Started     time.Time         `json:"started"`
	Elapsed     string            `json:"elapsed"`
	TargetFPS   float64           `json:"target_fps"`
	Duration    string            `json:"duration"`
	Stats       pipeline.Snapshot `json:"stats"`
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	st := Status{
		ID:          s.id.String(),
		Destination: s.cfg.Destination(),
		State:       s.State().String(),
		Started:     started,
		TargetFPS:   s.cfg.TargetFPS(),
		Duration:    s.cfg.Duration().String(),
		Stats:       s.stats.Snapshot(),
	}
	if !started.IsZero() {
		st.Elapsed = s.deps.Clock.Since(started).Round(time.Millisecond).String()
	}
	return st
}
