package pipeline

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kartenwerk/schallpappenspieler/internal/timeutil"
	"github.com/kartenwerk/schallpappenspieler/internal/track"
)

// latencyWindow bounds how many detection latency samples are kept for
// quantile estimation.
const latencyWindow = 256

// fpsCounter measures throughput of one stage, updating once per second.
type fpsCounter struct {
	clock timeutil.Clock
	count int
	last  time.Time
	fps   float64
}

func newFPSCounter(clock timeutil.Clock) *fpsCounter {
	return &fpsCounter{clock: clock, last: clock.Now()}
}

// tick records one completed cycle and returns the current rate estimate.
func (c *fpsCounter) tick() float64 {
	c.count++
	now := c.clock.Now()
	if elapsed := now.Sub(c.last); elapsed >= time.Second {
		c.fps = float64(c.count) / elapsed.Seconds()
		c.count = 0
		c.last = now
	}
	return c.fps
}

// Stats aggregates per-stage performance metrics and the outcome of the most
// recent deck action. All methods are safe for concurrent use; each stage
// writes its own fields.
type Stats struct {
	mu sync.Mutex

	captureFPS float64
	detectFPS  float64
	loopFPS    float64

	latencies []float64 // milliseconds, ring-buffered
	latencyAt int

	triggers     uint64
	lastAction   string
	lastActionOK bool

	leftSide  track.SideSnapshot
	rightSide track.SideSnapshot
}

// SideStatus is the externally visible slice of one side's tracker state.
type SideStatus struct {
	CurrentText string `json:"current_text,omitempty"`
	Triggered   bool   `json:"triggered"`
}

// StatsSnapshot is a consistent copy of all metrics.
type StatsSnapshot struct {
	CaptureFPS float64 `json:"capture_fps"`
	DetectFPS  float64 `json:"detect_fps"`
	LoopFPS    float64 `json:"loop_fps"`

	DetectLatencyP50Ms float64 `json:"detect_latency_p50_ms"`
	DetectLatencyP95Ms float64 `json:"detect_latency_p95_ms"`

	Triggers     uint64 `json:"triggers"`
	LastAction   string `json:"last_action,omitempty"`
	LastActionOK bool   `json:"last_action_ok"`

	Left  SideStatus `json:"left"`
	Right SideStatus `json:"right"`
}

func (s *Stats) setCaptureFPS(fps float64) {
	s.mu.Lock()
	s.captureFPS = fps
	s.mu.Unlock()
}

func (s *Stats) setDetectFPS(fps float64) {
	s.mu.Lock()
	s.detectFPS = fps
	s.mu.Unlock()
}

func (s *Stats) setLoopFPS(fps float64) {
	s.mu.Lock()
	s.loopFPS = fps
	s.mu.Unlock()
}

func (s *Stats) addDetectLatency(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	s.mu.Lock()
	if len(s.latencies) < latencyWindow {
		s.latencies = append(s.latencies, ms)
	} else {
		s.latencies[s.latencyAt] = ms
		s.latencyAt = (s.latencyAt + 1) % latencyWindow
	}
	s.mu.Unlock()
}

// setSides records the current tracker state for status reporting. The
// runner is the only writer; the snapshot copies decouple readers from the
// tracker itself.
func (s *Stats) setSides(left, right track.SideSnapshot) {
	s.mu.Lock()
	s.leftSide = left
	s.rightSide = right
	s.mu.Unlock()
}

// RecordAction notes the latest dispatched deck action and whether it
// succeeded.
func (s *Stats) RecordAction(action string, ok bool) {
	s.mu.Lock()
	s.triggers++
	s.lastAction = action
	s.lastActionOK = ok
	s.mu.Unlock()
}

// Snapshot returns a copy of all metrics, with detection latency quantiles
// computed over the retained sample window.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		CaptureFPS:   s.captureFPS,
		DetectFPS:    s.detectFPS,
		LoopFPS:      s.loopFPS,
		Triggers:     s.triggers,
		LastAction:   s.lastAction,
		LastActionOK: s.lastActionOK,
		Left:         SideStatus{CurrentText: s.leftSide.CurrentText, Triggered: s.leftSide.Triggered},
		Right:        SideStatus{CurrentText: s.rightSide.CurrentText, Triggered: s.rightSide.Triggered},
	}
	if len(s.latencies) > 0 {
		sorted := make([]float64, len(s.latencies))
		copy(sorted, s.latencies)
		sort.Float64s(sorted)
		snap.DetectLatencyP50Ms = stat.Quantile(0.50, stat.Empirical, sorted, nil)
		snap.DetectLatencyP95Ms = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	}
	return snap
}
