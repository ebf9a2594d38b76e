package detect

import (
	"math"

	"github.com/kartenwerk/schallpappenspieler/internal/track"
)

// SplitX returns the pixel column separating the left and right sides for a
// frame of the given width. ratio must be in (0,1); 0.5 splits down the
// middle.
func SplitX(width int, ratio float64) int {
	return int(math.Floor(float64(width) * ratio))
}

// SideOf assigns an observation to a deck side: centers strictly left of
// splitX are "left", everything else (including exactly on the split) is
// "right".
func SideOf(o Observation, splitX int) track.Side {
	if o.Center.X < float64(splitX) {
		return track.SideLeft
	}
	return track.SideRight
}

// Partition splits observations into left and right groups by their center
// x-coordinate, preserving input order within each group.
func Partition(obs []Observation, splitX int) (left, right []Observation) {
	for _, o := range obs {
		if SideOf(o, splitX) == track.SideLeft {
			left = append(left, o)
		} else {
			right = append(right, o)
		}
	}
	return left, right
}

// Largest selects the observation with the greatest area; on an exact tie
// the earliest in input order wins, so selection is deterministic for a
// given detection list. Overlapping reads of the same physical card, or two
// cards momentarily visible on one side, collapse to the largest, which is
// the closest and most likely intended one.
func Largest(obs []Observation) (Observation, bool) {
	if len(obs) == 0 {
		return Observation{}, false
	}
	best := obs[0]
	for _, o := range obs[1:] {
		if o.Area > best.Area {
			best = o
		}
	}
	return best, true
}
