package pipeline

import (
	"image"
	"sync"
)

// ROIStore holds the optional region of interest that restricts detection to
// a sub-area of the frame. It may be updated at any time (the admin API
// writes it) while the detection stage reads it once per cycle.
type ROIStore struct {
	mu   sync.Mutex
	rect image.Rectangle
	set  bool
}

// Set installs a region of interest in frame pixel coordinates.
func (r *ROIStore) Set(rect image.Rectangle) {
	r.mu.Lock()
	r.rect = rect
	r.set = true
	r.mu.Unlock()
}

// Clear removes the region of interest; detection reverts to the full frame.
func (r *ROIStore) Clear() {
	r.mu.Lock()
	r.rect = image.Rectangle{}
	r.set = false
	r.mu.Unlock()
}

// Current returns the region of interest, if one is set.
func (r *ROIStore) Current() (image.Rectangle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rect, r.set
}
