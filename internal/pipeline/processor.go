// Package pipeline paces frame capture and turns each captured frame into
// output rows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/monitoring"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sensor"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sink"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/skeleton"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/timeutil"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/tracker"
)

// ErrNoResult is returned when the tracker reports success without a
// result.
var ErrNoResult = errors.New("tracker returned no body frame")

// RowWriter receives finished rows. It must be safe for concurrent use.
type RowWriter interface {
	WriteRow(sink.Row) error
}

// Processor handles one dispatched frame.
type Processor interface {
	Process(ctx context.Context, frame *sensor.RawFrame, dispatched time.Time) error
}

// FrameProcessor submits a frame to the tracker, waits for the result and
// writes one row per tracked body.
type FrameProcessor struct {
	Tracker tracker.Tracker
	Writer  RowWriter
	Angles  skeleton.Angles
	Clock   timeutil.Clock
	Stats   *Stats

	// SubmitTimeout and RetrieveTimeout bound the tracker waits. Negative
	// values wait forever.
	SubmitTimeout   time.Duration
	RetrieveTimeout time.Duration
}

// NewFrameProcessor returns a processor that waits on the tracker without a
// deadline.
func NewFrameProcessor(tr tracker.Tracker, w RowWriter, angles skeleton.Angles, clock timeutil.Clock, stats *Stats) *FrameProcessor {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if stats == nil {
		stats = NewStats()
	}
	return &FrameProcessor{
		Tracker:         tr,
		Writer:          w,
		Angles:          angles,
		Clock:           clock,
		Stats:           stats,
		SubmitTimeout:   tracker.WaitInfinite,
		RetrieveTimeout: tracker.WaitInfinite,
	}
}

// Process runs one frame to completion. Any tracker failure is returned
// and is meant to end the session; a missing body index map is only
// logged.
func (p *FrameProcessor) Process(ctx context.Context, frame *sensor.RawFrame, dispatched time.Time) error {
	if err := p.Tracker.Submit(ctx, frame, p.SubmitTimeout); err != nil {
		return fmt.Errorf("frame %d: %w", frame.Sequence, err)
	}

	res, err := p.Tracker.Retrieve(ctx, p.RetrieveTimeout)
	if err != nil {
		return fmt.Errorf("frame %d: %w", frame.Sequence, err)
	}
	if res == nil {
		return fmt.Errorf("frame %d: %w", frame.Sequence, ErrNoResult)
	}
	monitoring.Tracef("frame %d: results obtained after %d ms", frame.Sequence, p.Clock.Since(dispatched).Milliseconds())

	n := res.NumBodies()
	monitoring.Diagf("%d bodies are detected", n)
	for i := 0; i < n; i++ {
		row := sink.NewRow(p.Clock.Now().UnixMilli(), res.Body(i), p.Angles)
		if err := p.Writer.WriteRow(row); err != nil {
			if errors.Is(err, sink.ErrClosed) {
				p.Stats.lateRows.Add(1)
				monitoring.Diagf("frame %d: dropped body %d row, output already closed", frame.Sequence, row.BodyID)
				continue
			}
			return fmt.Errorf("frame %d: %w", frame.Sequence, err)
		}
		p.Stats.rows.Add(1)
	}
	p.Stats.bodies.Add(uint64(n))

	if m, ok := res.BodyIndexMap(); !ok {
		p.Stats.missingIndexMaps.Add(1)
		monitoring.Diagf("frame %d: failed to generate body index map", frame.Sequence)
	} else if monitoring.TraceEnabled() {
		monitoring.Tracef("frame %d: body index map at line %d: %s", frame.Sequence, m.Height/2, formatLine(m.MiddleLine()))
	}

	p.Stats.recordLatency(p.Clock.Since(dispatched))
	return nil
}

func formatLine(px []uint8) string {
	var b strings.Builder
	for i, v := range px {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(int(v)))
	}
	return b.String()
}
