package camera

import (
	"errors"
	"image"
	"sync"
	"time"
)

// TestableSource implements FrameSource with scripted behaviour for tests:
// queued frames, injectable read errors, and blocking reads that wake when
// frames are added or the source is closed.
type TestableSource struct {
	mu       sync.Mutex
	cond     *sync.Cond
	frames   []Frame
	closed   bool
	readErrs []error

	// ReadCalls counts Read invocations, including failed ones.
	ReadCalls int
}

// NewTestableSource creates an empty TestableSource.
func NewTestableSource() *TestableSource {
	s := &TestableSource{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Push queues a frame for a subsequent Read.
func (s *TestableSource) Push(f Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.cond.Signal()
	s.mu.Unlock()
}

// PushImage queues a frame wrapping img with the current time.
func (s *TestableSource) PushImage(img *image.RGBA) {
	s.Push(Frame{Image: img, Stamp: time.Now()})
}

// FailNext makes the next Read return err instead of a frame.
func (s *TestableSource) FailNext(err error) {
	s.mu.Lock()
	s.readErrs = append(s.readErrs, err)
	s.cond.Signal()
	s.mu.Unlock()
}

// Read returns the next queued frame or injected error, blocking until one
// is available or the source is closed.
func (s *TestableSource) Read() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ReadCalls++
	for len(s.frames) == 0 && len(s.readErrs) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.readErrs) > 0 {
		err := s.readErrs[0]
		s.readErrs = s.readErrs[1:]
		return Frame{}, err
	}
	if s.closed {
		return Frame{}, ErrSourceClosed
	}

	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

// Close wakes all blocked readers; subsequent Reads return ErrSourceClosed.
func (s *TestableSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("camera: already closed")
	}
	s.closed = true
	s.cond.Broadcast()
	return nil
}
