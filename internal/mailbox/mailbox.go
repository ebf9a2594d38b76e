// Package mailbox provides versioned latest-value slots for connecting
// pipeline stages.
//
// A slot is intentionally lossy: publishing overwrites whatever was there
// before, and readers only ever see the newest value. A stale frame is
// worthless, so nothing is buffered and no stage ever waits on another.
package mailbox

import "sync"

// Slot is a single-value mailbox shared between one producer and any number
// of readers. Every publish increments the version by exactly one, so a
// reader can tell whether anything new has arrived since it last looked.
// Reads do not consume: repeated reads may observe the same version.
type Slot[T any] struct {
	mu      sync.Mutex
	value   T
	version uint64
}

// Publish stores v as the current value and bumps the version.
func (s *Slot[T]) Publish(v T) {
	s.mu.Lock()
	s.value = v
	s.version++
	s.mu.Unlock()
}

// Read returns the most recently published value and its version. Before the
// first publish it returns the zero value and version 0.
func (s *Slot[T]) Read() (T, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.version
}

// Version returns the current version without copying the value.
func (s *Slot[T]) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// TaggedSlot is a Slot that additionally records the version of the upstream
// value its content was derived from. The detection stage publishes results
// tagged with the frame version it consumed, so downstream readers can tell
// how far detection lags behind capture.
type TaggedSlot[T any] struct {
	mu      sync.Mutex
	value   T
	tag     uint64
	version uint64
}

// Publish stores v together with the upstream version it was derived from.
func (s *TaggedSlot[T]) Publish(v T, tag uint64) {
	s.mu.Lock()
	s.value = v
	s.tag = tag
	s.version++
	s.mu.Unlock()
}

// Read returns the latest value, the upstream version it was derived from,
// and this slot's own version.
func (s *TaggedSlot[T]) Read() (value T, tag uint64, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.tag, s.version
}
