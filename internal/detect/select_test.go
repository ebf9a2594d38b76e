package detect

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kartenwerk/schallpappenspieler/internal/track"
)

func obsAt(text string, cx float64, area float64) Observation {
	return Observation{Text: text, Center: Point{X: cx, Y: 100}, Area: area}
}

func TestSplitX(t *testing.T) {
	tests := []struct {
		width int
		ratio float64
		want  int
	}{
		{1280, 0.5, 640},
		{1281, 0.5, 640}, // floor
		{640, 0.25, 160},
		{100, 0.333, 33},
	}
	for _, tt := range tests {
		if got := SplitX(tt.width, tt.ratio); got != tt.want {
			t.Errorf("SplitX(%d, %v) = %d, want %d", tt.width, tt.ratio, got, tt.want)
		}
	}
}

func TestSideOfBoundary(t *testing.T) {
	// Strictly less than splitX is left; on or past it is right.
	const splitX = 640
	tests := []struct {
		cx   float64
		want track.Side
	}{
		{639, track.SideLeft},
		{640, track.SideRight},
		{641, track.SideRight},
	}
	for _, tt := range tests {
		if got := SideOf(obsAt("A", tt.cx, 1), splitX); got != tt.want {
			t.Errorf("SideOf(center.X=%v) = %v, want %v", tt.cx, got, tt.want)
		}
	}
}

func TestPartitionPreservesOrder(t *testing.T) {
	obs := []Observation{
		obsAt("l1", 10, 1),
		obsAt("r1", 700, 1),
		obsAt("l2", 20, 1),
		obsAt("r2", 800, 1),
	}
	left, right := Partition(obs, 640)

	wantLeft := []Observation{obs[0], obs[2]}
	wantRight := []Observation{obs[1], obs[3]}
	if diff := cmp.Diff(wantLeft, left); diff != "" {
		t.Errorf("left mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantRight, right); diff != "" {
		t.Errorf("right mismatch (-want +got):\n%s", diff)
	}
}

func TestLargest(t *testing.T) {
	_, ok := Largest(nil)
	if ok {
		t.Fatal("Largest(nil) reported an observation")
	}

	obs := []Observation{
		obsAt("small", 0, 10),
		obsAt("big", 0, 100),
		obsAt("medium", 0, 50),
	}
	got, ok := Largest(obs)
	if !ok || got.Text != "big" {
		t.Errorf("Largest = (%q, %v), want (big, true)", got.Text, ok)
	}
}

func TestLargestTieBreakIsDeterministic(t *testing.T) {
	// Equal areas: the first in input order wins, every time.
	obs := []Observation{
		obsAt("first", 0, 42),
		obsAt("second", 0, 42),
	}
	for i := 0; i < 100; i++ {
		got, ok := Largest(obs)
		if !ok || got.Text != "first" {
			t.Fatalf("run %d: Largest = (%q, %v), want (first, true)", i, got.Text, ok)
		}
	}
}
