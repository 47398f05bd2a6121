// Package mock provides a scripted audio.Source for tests.
package mock

import (
	"sync"
	"time"

	"github.com/Naptick/Naphome-Firmware-sub000/pkg/audio"
)

// Source is a scripted capture source. Frames are served in FIFO order; an
// empty queue behaves like a capture timeout. Safe for concurrent use.
type Source struct {
	mu      sync.Mutex
	queue   [][]int16
	nextErr error
	closed  bool

	// Reads counts ReadFrame calls, including timeouts and failures.
	Reads int
}

var _ audio.Source = (*Source)(nil)

// NewSource creates a Source pre-loaded with the given frames.
func NewSource(frames ...[]int16) *Source {
	s := &Source{}
	for _, f := range frames {
		s.Push(f)
	}
	return s
}

// Push appends a frame to the script. The slice is copied.
func (s *Source) Push(frame []int16) {
	cp := make([]int16, len(frame))
	copy(cp, frame)
	s.mu.Lock()
	s.queue = append(s.queue, cp)
	s.mu.Unlock()
}

// PushZero appends a frame of n zero samples.
func (s *Source) PushZero(n int) {
	s.mu.Lock()
	s.queue = append(s.queue, make([]int16, n))
	s.mu.Unlock()
}

// FailNext makes the next ReadFrame return err once.
func (s *Source) FailNext(err error) {
	s.mu.Lock()
	s.nextErr = err
	s.mu.Unlock()
}

// ReadFrame pops the next scripted frame into buf. Returns (0, nil) when the
// script is exhausted, mimicking a capture timeout.
func (s *Source) ReadFrame(buf []int16, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Reads++
	if s.nextErr != nil {
		err := s.nextErr
		s.nextErr = nil
		return 0, err
	}
	if s.closed || len(s.queue) == 0 {
		return 0, nil
	}
	frame := s.queue[0]
	s.queue = s.queue[1:]
	return copy(buf, frame), nil
}

// Close marks the source closed; further reads behave like timeouts.
func (s *Source) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close has been called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
