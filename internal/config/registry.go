package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Naptick/Naphome-Firmware-sub000/pkg/audio"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/led"
)

// Default backend names used when the config leaves a backend unset.
const (
	DefaultAudioBackend Backend = "miniaudio"
	DefaultWakeBackend  Backend = "porcupine"
	DefaultLEDBackend   Backend = "udp"
)

// ErrBackendNotRegistered is returned by Create* methods when no factory has
// been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// Registry maps backend names to their constructor functions for each
// hardware-facing concern. It is safe for concurrent use.
//
// Registering the factories at the composition root (rather than importing
// the backend packages here) keeps cgo-backed backends out of test builds.
type Registry struct {
	mu    sync.RWMutex
	audio map[Backend]func(AudioConfig) (audio.Source, error)
	wake  map[Backend]func(WakeConfig, AudioConfig) (frontend.Engine, error)
	led   map[Backend]func(LEDConfig) (led.Strip, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		audio: make(map[Backend]func(AudioConfig) (audio.Source, error)),
		wake:  make(map[Backend]func(WakeConfig, AudioConfig) (frontend.Engine, error)),
		led:   make(map[Backend]func(LEDConfig) (led.Strip, error)),
	}
}

// RegisterAudio registers a capture source factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterAudio(name Backend, factory func(AudioConfig) (audio.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio[name] = factory
}

// RegisterWake registers a wake-word engine factory under name. The factory
// also receives the audio section so it can match the capture channel layout.
func (r *Registry) RegisterWake(name Backend, factory func(WakeConfig, AudioConfig) (frontend.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wake[name] = factory
}

// RegisterLED registers a strip factory under name.
func (r *Registry) RegisterLED(name Backend, factory func(LEDConfig) (led.Strip, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.led[name] = factory
}

// CreateAudio instantiates the capture source selected by cfg.Backend,
// falling back to [DefaultAudioBackend] when unset.
// Returns [ErrBackendNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateAudio(cfg AudioConfig) (audio.Source, error) {
	name := cfg.Backend
	if name == "" {
		name = DefaultAudioBackend
	}
	r.mu.RLock()
	factory, ok := r.audio[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrBackendNotRegistered, name)
	}
	return factory(cfg)
}

// CreateWake instantiates the wake-word engine selected by wake.Backend,
// falling back to [DefaultWakeBackend] when unset.
func (r *Registry) CreateWake(wake WakeConfig, audioCfg AudioConfig) (frontend.Engine, error) {
	name := wake.Backend
	if name == "" {
		name = DefaultWakeBackend
	}
	r.mu.RLock()
	factory, ok := r.wake[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: wake/%q", ErrBackendNotRegistered, name)
	}
	return factory(wake, audioCfg)
}

// CreateLED instantiates the strip selected by cfg.Backend, falling back to
// [DefaultLEDBackend] when unset.
func (r *Registry) CreateLED(cfg LEDConfig) (led.Strip, error) {
	name := cfg.Backend
	if name == "" {
		name = DefaultLEDBackend
	}
	r.mu.RLock()
	factory, ok := r.led[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: leds/%q", ErrBackendNotRegistered, name)
	}
	return factory(cfg)
}
