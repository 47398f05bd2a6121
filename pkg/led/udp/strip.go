// Package udp implements a led.Strip that streams frames to a ws281x daemon
// over UDP.
//
// The wire format is one datagram per frame: raw RGB triples, pixel 0 first,
// no header. That is the format the common ws2812 UDP bridges consume, and a
// lost datagram simply means the strip shows the previous frame for one tick.
package udp

import (
	"fmt"
	"net"
	"sync"

	"github.com/Naptick/Naphome-Firmware-sub000/pkg/led"
)

// Strip stages a frame locally and sends it as a single datagram on Refresh.
type Strip struct {
	mu     sync.Mutex
	conn   *net.UDPConn
	frame  []byte
	count  int
	closed bool
}

var _ led.Strip = (*Strip)(nil)

// New connects to the daemon at addr (host:port) for a strip of count pixels.
func New(addr string, count int) (*Strip, error) {
	if count <= 0 {
		return nil, fmt.Errorf("udp: pixel count %d is invalid", count)
	}
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %q: %w", addr, err)
	}
	return &Strip{
		conn:  conn,
		frame: make([]byte, count*3),
		count: count,
	}, nil
}

func (s *Strip) Len() int { return s.count }

func (s *Strip) SetPixel(i int, r, g, b uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("udp: strip is closed")
	}
	if i < 0 || i >= s.count {
		return fmt.Errorf("udp: pixel index %d out of range [0, %d)", i, s.count)
	}
	s.frame[i*3] = r
	s.frame[i*3+1] = g
	s.frame[i*3+2] = b
	return nil
}

func (s *Strip) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("udp: strip is closed")
	}
	if _, err := s.conn.Write(s.frame); err != nil {
		return fmt.Errorf("udp: send frame: %w", err)
	}
	return nil
}

func (s *Strip) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("udp: strip is closed")
	}
	for i := range s.frame {
		s.frame[i] = 0
	}
	return nil
}

// Close blanks the strip with a final dark frame and closes the socket. Safe
// to call twice.
func (s *Strip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for i := range s.frame {
		s.frame[i] = 0
	}
	_, _ = s.conn.Write(s.frame)
	return s.conn.Close()
}
