// Package mock provides an in-memory led.Strip for tests.
package mock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Naptick/Naphome-Firmware-sub000/pkg/led"
)

// Pixel is one staged RGB value.
type Pixel struct {
	R, G, B uint8
}

// Strip records staged pixels and snapshots a frame on every Refresh.
type Strip struct {
	mu         sync.Mutex
	pixels     []Pixel
	frames     [][]Pixel
	refreshErr error
	closed     bool

	// Refreshes counts Refresh calls, including failed ones.
	Refreshes int
}

var _ led.Strip = (*Strip)(nil)

// NewStrip creates a strip with n pixels, all off.
func NewStrip(n int) *Strip {
	return &Strip{pixels: make([]Pixel, n)}
}

// FailRefresh makes every subsequent Refresh return err (nil clears).
func (s *Strip) FailRefresh(err error) {
	s.mu.Lock()
	s.refreshErr = err
	s.mu.Unlock()
}

func (s *Strip) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pixels)
}

func (s *Strip) SetPixel(i int, r, g, b uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("mock: strip is closed")
	}
	if i < 0 || i >= len(s.pixels) {
		return fmt.Errorf("mock: pixel index %d out of range [0, %d)", i, len(s.pixels))
	}
	s.pixels[i] = Pixel{R: r, G: g, B: b}
	return nil
}

func (s *Strip) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Refreshes++
	if s.refreshErr != nil {
		return s.refreshErr
	}
	frame := make([]Pixel, len(s.pixels))
	copy(frame, s.pixels)
	s.frames = append(s.frames, frame)
	return nil
}

func (s *Strip) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("mock: strip is closed")
	}
	for i := range s.pixels {
		s.pixels[i] = Pixel{}
	}
	return nil
}

func (s *Strip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Strip) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Frames returns a copy of all frames pushed by successful Refresh calls.
func (s *Strip) Frames() [][]Pixel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Pixel, len(s.frames))
	copy(out, s.frames)
	return out
}

// LastFrame returns the most recently pushed frame, or nil if none.
func (s *Strip) LastFrame() []Pixel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	frame := make([]Pixel, len(s.frames[len(s.frames)-1]))
	copy(frame, s.frames[len(s.frames)-1])
	return frame
}
