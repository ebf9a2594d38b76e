package pipeline

import (
	"testing"
	"time"

	"github.com/kartenwerk/schallpappenspieler/internal/timeutil"
)

func TestFPSCounter(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC))
	c := newFPSCounter(clock)

	// 30 ticks spread over exactly one second.
	var fps float64
	for i := 0; i < 30; i++ {
		clock.Advance(time.Second / 30)
		fps = c.tick()
	}

	if fps < 29 || fps > 31 {
		t.Errorf("fps = %v, want ~30", fps)
	}
}

func TestFPSCounterBeforeFirstWindow(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC))
	c := newFPSCounter(clock)

	clock.Advance(100 * time.Millisecond)
	if fps := c.tick(); fps != 0 {
		t.Errorf("fps = %v before the first full window, want 0", fps)
	}
}

func TestStatsLatencyQuantiles(t *testing.T) {
	s := &Stats{}
	// 1..100 ms: p50 around 50, p95 around 95.
	for i := 1; i <= 100; i++ {
		s.addDetectLatency(time.Duration(i) * time.Millisecond)
	}

	snap := s.Snapshot()
	if snap.DetectLatencyP50Ms < 49 || snap.DetectLatencyP50Ms > 51 {
		t.Errorf("p50 = %v, want ~50", snap.DetectLatencyP50Ms)
	}
	if snap.DetectLatencyP95Ms < 94 || snap.DetectLatencyP95Ms > 96 {
		t.Errorf("p95 = %v, want ~95", snap.DetectLatencyP95Ms)
	}
}

func TestStatsLatencyWindowBounded(t *testing.T) {
	s := &Stats{}
	for i := 0; i < latencyWindow*3; i++ {
		s.addDetectLatency(time.Millisecond)
	}
	if len(s.latencies) != latencyWindow {
		t.Errorf("retained %d samples, want %d", len(s.latencies), latencyWindow)
	}
}

func TestStatsRecordAction(t *testing.T) {
	s := &Stats{}
	s.RecordAction("load left: A", true)
	s.RecordAction("load right: B", false)

	snap := s.Snapshot()
	if snap.Triggers != 2 {
		t.Errorf("Triggers = %d, want 2", snap.Triggers)
	}
	if snap.LastAction != "load right: B" || snap.LastActionOK {
		t.Errorf("last action = (%q, %v), want (load right: B, false)", snap.LastAction, snap.LastActionOK)
	}
}
