// Package track converts noisy per-frame code observations into debounced
// load events.
//
// A card held in front of the camera produces an intermittent stream of
// reads: frames where the code decodes, frames where it doesn't, the odd
// misread during motion blur. The tracker requires a code to be observed
// continuously for a stability window before firing, tolerates short gaps
// without restarting that window, and forgets a side entirely after a long
// absence so the same card can trigger again later.
package track

import "time"

// Side identifies one half of the camera frame, and with it one deck.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Event is emitted once per stability episode, when a code has been held
// steadily on one side for the configured stable duration.
type Event struct {
	Side Side
	Text string
}

// sideState carries the per-side observation history. Zero time values mean
// "unset". firstSeen is only set while currentText has been continuously
// observed since that instant without exceeding the dropout window.
type sideState struct {
	currentText string
	firstSeen   time.Time
	lastSeen    time.Time
	triggered   bool
}

// SideSnapshot is a read-only copy of one side's state, for status reporting.
type SideSnapshot struct {
	CurrentText string
	FirstSeen   time.Time
	LastSeen    time.Time
	Triggered   bool
}

// Tracker holds the left and right side state machines.
//
// Tracker is not safe for concurrent use: the orchestration loop is the
// single caller of Update, and timestamps passed to Update must be
// monotonically non-decreasing per side.
type Tracker struct {
	stable  time.Duration
	dropout time.Duration
	forget  time.Duration

	left  sideState
	right sideState
}

// New creates a Tracker.
//
// stable is how long a code must persist before an event fires. dropout is
// the longest observation gap that keeps the stability window intact; a gap
// beyond it restarts the window without forgetting which code was seen.
// forget is the gap after which the side resets completely.
func New(stable, dropout, forget time.Duration) *Tracker {
	return &Tracker{stable: stable, dropout: dropout, forget: forget}
}

func (t *Tracker) side(s Side) *sideState {
	if s == SideLeft {
		return &t.left
	}
	return &t.right
}

// Update feeds one observation sample for a side. text is the decoded code
// currently visible on that side, or "" when nothing is visible. It returns
// an Event and true at most once per stability episode.
func (t *Tracker) Update(side Side, text string, now time.Time) (Event, bool) {
	s := t.side(side)

	if text == "" {
		if s.lastSeen.IsZero() {
			return Event{}, false
		}
		idle := now.Sub(s.lastSeen)
		switch {
		case idle > t.forget:
			// Prolonged absence: forget the side entirely. The same card
			// shown again starts a brand-new episode.
			*s = sideState{}
		case idle > t.dropout:
			// Gap too long to count as continuous, but short enough to
			// remember which code it was. Restart the stability clock on
			// the next re-observation.
			s.firstSeen = time.Time{}
		}
		return Event{}, false
	}

	if s.currentText != text {
		// New candidate (or replacement): it must earn stability itself.
		s.currentText = text
		s.firstSeen = now
		s.lastSeen = now
		s.triggered = false
		return Event{}, false
	}

	s.lastSeen = now
	if s.firstSeen.IsZero() {
		// First re-confirmation after a dropout cleared the clock.
		s.firstSeen = now
		return Event{}, false
	}

	if !s.triggered && now.Sub(s.firstSeen) >= t.stable {
		s.triggered = true
		return Event{Side: side, Text: text}, true
	}

	return Event{}, false
}

// Snapshot returns a copy of one side's state.
func (t *Tracker) Snapshot(side Side) SideSnapshot {
	s := t.side(side)
	return SideSnapshot{
		CurrentText: s.currentText,
		FirstSeen:   s.firstSeen,
		LastSeen:    s.lastSeen,
		Triggered:   s.triggered,
	}
}
