package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/kartenwerk/schallpappenspieler/internal/camera"
	"github.com/kartenwerk/schallpappenspieler/internal/detect"
	"github.com/kartenwerk/schallpappenspieler/internal/monitoring"
	"github.com/kartenwerk/schallpappenspieler/internal/timeutil"
	"github.com/kartenwerk/schallpappenspieler/internal/track"
)

// Loader dispatches a stable code to the target application. Failure is
// reported for display but never alters tracker state: a failed load does
// not retry until the card naturally re-enters a fresh stability episode.
type Loader interface {
	Load(text string, side track.Side) bool
}

// EventRecorder persists dispatched trigger events. Optional.
type EventRecorder interface {
	RecordTrigger(ev track.Event, loaded bool) error
}

// Runner is the foreground orchestration loop: once per new frame version it
// partitions the latest detections by side, reduces each side to its best
// observation, feeds the tracker, and dispatches any emitted events.
type Runner struct {
	Frames     *FrameSlot
	Detections *DetectionsSlot
	Tracker    *track.Tracker
	Loader     Loader
	Recorder   EventRecorder
	SplitRatio float64
	Stats      *Stats
	Clock      timeutil.Clock
}

// Run blocks until ctx is cancelled, staying responsive (bounded sleeps)
// even when no new frame arrives.
func (r *Runner) Run(ctx context.Context) {
	fps := newFPSCounter(r.Clock)
	var lastFrameVersion uint64
	for ctx.Err() == nil {
		frame, frameVersion := r.Frames.Read()
		if frame.Image == nil || frameVersion == lastFrameVersion {
			r.Clock.Sleep(detectIdleDelay)
			continue
		}
		lastFrameVersion = frameVersion

		r.Step(frame)
		r.Stats.setLoopFPS(fps.tick())
	}
}

// Step processes one frame version. The detections read here may have been
// computed from an older frame than the one just captured; that staleness is
// bounded by detection latency and is acceptable.
func (r *Runner) Step(frame camera.Frame) {
	observations, _, _ := r.Detections.Read()

	splitX := detect.SplitX(frame.Width(), r.SplitRatio)
	left, right := detect.Partition(observations, splitX)

	now := r.Clock.Now()
	r.updateSide(track.SideLeft, left, now)
	r.updateSide(track.SideRight, right, now)
	r.Stats.setSides(r.Tracker.Snapshot(track.SideLeft), r.Tracker.Snapshot(track.SideRight))
}

func (r *Runner) updateSide(side track.Side, observations []detect.Observation, now time.Time) {
	var text string
	if best, ok := detect.Largest(observations); ok {
		text = best.Text
	}

	ev, fired := r.Tracker.Update(side, text, now)
	if !fired {
		return
	}

	monitoring.Logf("trigger %s: %q", ev.Side, ev.Text)
	loaded := r.Loader.Load(ev.Text, ev.Side)
	if !loaded {
		monitoring.Logf("load %s failed for %q", ev.Side, ev.Text)
	}
	r.Stats.RecordAction(fmt.Sprintf("load %s: %s", ev.Side, ev.Text), loaded)

	if r.Recorder != nil {
		if err := r.Recorder.RecordTrigger(ev, loaded); err != nil {
			monitoring.Logf("record trigger: %v", err)
		}
	}
}

// stageJoinTimeout bounds how long shutdown waits for each background stage.
const stageJoinTimeout = time.Second

// Pipeline wires the capture stage, detection stage and orchestration loop
// together and manages their lifecycle.
type Pipeline struct {
	Capture *CaptureStage
	Detect  *DetectStage
	Runner  *Runner
}

// Run starts both background stages, runs the orchestration loop in the
// calling goroutine, and on cancellation waits a bounded time for the stages
// to exit before releasing the capture device. A stage that fails to stop in
// time is abandoned rather than hanging shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	captureDone := make(chan struct{})
	detectDone := make(chan struct{})

	go func() {
		defer close(captureDone)
		p.Capture.Run(ctx)
	}()
	go func() {
		defer close(detectDone)
		p.Detect.Run(ctx)
	}()

	p.Runner.Run(ctx)

	// The capture stage may be blocked inside the device read; closing the
	// source unblocks it. Close exactly once, here.
	err := p.Capture.Source.Close()

	for _, done := range []chan struct{}{captureDone, detectDone} {
		select {
		case <-done:
		case <-time.After(stageJoinTimeout):
			monitoring.Logf("pipeline: stage did not stop within %v, abandoning", stageJoinTimeout)
		}
	}
	return err
}
