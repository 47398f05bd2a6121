// Package miniaudio implements the audio.Source contract on top of the malgo
// (miniaudio) capture API.
//
// malgo delivers audio through a data callback on its own thread. The
// callback appends into a bounded internal ring; ReadFrame drains the ring
// with a bounded wait, so the pull side never blocks past its timeout even
// when the device stalls. When the ring is full the oldest samples are
// discarded — the pipeline prefers fresh audio over complete audio.
package miniaudio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/Naptick/Naphome-Firmware-sub000/pkg/audio"
)

// ringFrames is how many nominal frames the internal ring retains before
// dropping the oldest samples.
const ringFrames = 8

// Config holds the capture device parameters.
type Config struct {
	// SampleRate in Hz. Common values: 8000, 16000, 48000.
	SampleRate int

	// Channels is 1 for mono or 2 for a stereo microphone pair.
	Channels int

	// DeviceName selects a capture device by its reported name. Empty means
	// the system default.
	DeviceName string

	// FrameSamples is the nominal per-tick read size in interleaved samples,
	// used only to size the internal ring.
	FrameSamples int
}

// Source captures PCM from a microphone via malgo.
type Source struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu      sync.Mutex
	ring    []int16
	ringCap int
	closed  bool

	// notify is signalled (non-blocking) whenever the callback appends data.
	notify chan struct{}
}

var _ audio.Source = (*Source)(nil)

// New initialises the capture context and device and starts capturing.
func New(cfg Config) (*Source, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("miniaudio: sample rate %d is invalid", cfg.SampleRate)
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return nil, fmt.Errorf("miniaudio: channel count %d is not supported", cfg.Channels)
	}
	frameSamples := cfg.FrameSamples
	if frameSamples <= 0 {
		frameSamples = cfg.SampleRate * cfg.Channels / 50 // 20 ms default
	}

	s := &Source{
		ringCap: frameSamples * ringFrames,
		notify:  make(chan struct{}, 1),
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("miniaudio: init context: %w", err)
	}
	s.ctx = mctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if cfg.DeviceName != "" {
		if id, ok := findDevice(mctx, cfg.DeviceName); ok {
			deviceConfig.Capture.DeviceID = id.Pointer()
		}
		// Fall through to the default device when the name is unknown; the
		// caller logs the device actually in use.
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onRecvFrames,
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("miniaudio: init capture device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("miniaudio: start capture device: %w", err)
	}

	return s, nil
}

// findDevice scans the capture device list for a name match.
func findDevice(mctx *malgo.AllocatedContext, name string) (malgo.DeviceID, bool) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, false
	}
	for _, info := range infos {
		if info.Name() == name {
			return info.ID, true
		}
	}
	return malgo.DeviceID{}, false
}

// onRecvFrames is the malgo data callback. It runs on malgo's audio thread.
func (s *Source) onRecvFrames(_, pSample []byte, _ uint32) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for i := 0; i+1 < len(pSample); i += 2 {
		s.ring = append(s.ring, int16(pSample[i])|int16(pSample[i+1])<<8)
	}
	if overflow := len(s.ring) - s.ringCap; overflow > 0 {
		s.ring = s.ring[:copy(s.ring, s.ring[overflow:])]
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// ReadFrame drains up to len(buf) samples from the ring, waiting at most
// timeout for the first data to arrive. Returns (0, nil) on timeout.
func (s *Source) ReadFrame(buf []int16, timeout time.Duration) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return 0, errors.New("miniaudio: source is closed")
		}
		if len(s.ring) >= len(buf) {
			copy(buf, s.ring[:len(buf)])
			s.ring = s.ring[:copy(s.ring, s.ring[len(buf):])]
			s.mu.Unlock()
			return len(buf), nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-deadline.C:
			return 0, nil
		}
	}
}

// Close stops the device and frees the malgo context. Safe to call twice.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.ring = nil
	s.mu.Unlock()

	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		_ = s.ctx.Uninit()
		s.ctx.Free()
		s.ctx = nil
	}
	return nil
}
