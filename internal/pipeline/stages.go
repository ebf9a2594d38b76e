package pipeline

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/kartenwerk/schallpappenspieler/internal/camera"
	"github.com/kartenwerk/schallpappenspieler/internal/detect"
	"github.com/kartenwerk/schallpappenspieler/internal/mailbox"
	"github.com/kartenwerk/schallpappenspieler/internal/monitoring"
	"github.com/kartenwerk/schallpappenspieler/internal/timeutil"
)

// FrameSlot connects the capture stage to its consumers.
type FrameSlot = mailbox.Slot[camera.Frame]

// DetectionsSlot connects the detection stage to the orchestration loop. The
// tag is the frame version the detections were computed from.
type DetectionsSlot = mailbox.TaggedSlot[[]detect.Observation]

const (
	// captureRetryDelay is the backoff after a failed device read.
	captureRetryDelay = 10 * time.Millisecond
	// detectIdleDelay is the poll interval while no new frame is available.
	detectIdleDelay = 5 * time.Millisecond
)

// CaptureStage continuously reads frames from the device and publishes them
// to the frame slot. Read failures are transient: the stage backs off
// briefly and retries until the context is cancelled or the source reports
// it has been closed.
type CaptureStage struct {
	Source camera.FrameSource
	Frames *FrameSlot
	Mirror bool
	Stats  *Stats
	Clock  timeutil.Clock
}

// Run blocks until ctx is cancelled or the source is closed.
func (s *CaptureStage) Run(ctx context.Context) {
	fps := newFPSCounter(s.Clock)
	for ctx.Err() == nil {
		frame, err := s.Source.Read()
		if err != nil {
			if errors.Is(err, camera.ErrSourceClosed) {
				monitoring.Logf("capture: source closed, stopping")
				return
			}
			monitoring.Logf("capture: read failed: %v", err)
			s.Clock.Sleep(captureRetryDelay)
			continue
		}
		if s.Mirror {
			frame.Image = camera.Mirror(frame.Image)
		}
		s.Frames.Publish(frame)
		s.Stats.setCaptureFPS(fps.tick())
	}
}

// DetectStage runs the code detector against the newest frame, optionally
// restricted to a region of interest, and publishes results tagged with the
// frame version they were computed from.
type DetectStage struct {
	Detector   detect.Detector
	Frames     *FrameSlot
	Detections *DetectionsSlot
	ROI        *ROIStore
	Stats      *Stats
	Clock      timeutil.Clock
}

// Run blocks until ctx is cancelled. It never processes the same frame
// version twice and yields cooperatively while no new frame is available.
func (s *DetectStage) Run(ctx context.Context) {
	fps := newFPSCounter(s.Clock)
	var lastSeen uint64
	for ctx.Err() == nil {
		frame, version := s.Frames.Read()
		if frame.Image == nil || version == lastSeen {
			s.Clock.Sleep(detectIdleDelay)
			continue
		}
		lastSeen = version

		start := s.Clock.Now()
		observations := s.detectFrame(frame)
		s.Stats.addDetectLatency(s.Clock.Since(start))
		s.Stats.setDetectFPS(fps.tick())

		s.Detections.Publish(observations, version)
	}
}

// detectFrame runs one detection cycle. A panicking detector is treated as
// zero observations for the cycle; the stage itself never crashes.
func (s *DetectStage) detectFrame(frame camera.Frame) (observations []detect.Observation) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("detect: detector panicked, treating as zero detections: %v", r)
			observations = nil
		}
	}()

	bounds := frame.Image.Bounds()
	if roi, ok := s.ROI.Current(); ok {
		if clamped, valid := detect.ClampROI(roi, bounds); valid {
			crop := frame.Image.SubImage(clamped).(*image.RGBA)
			observations = s.Detector.Detect(crop)
			// The luminance source is relative to the crop origin; map the
			// observations back into full-frame coordinates.
			dx := float64(clamped.Min.X)
			dy := float64(clamped.Min.Y)
			for i, o := range observations {
				observations[i] = o.Translate(dx, dy)
			}
			return observations
		}
		// Degenerate ROI after clamping: fall back to the full frame.
	}
	return s.Detector.Detect(frame.Image)
}
