// Package porcupine implements a detection-only frontend.Engine backed by the
// Picovoice Porcupine wake-word classifier.
//
// Porcupine consumes mono 16 kHz PCM in fixed frames and reports which
// keyword (if any) fired. It performs no audio enhancement, so Fetch never
// carries processed audio — consumers fall back to estimated enhanced levels.
// Stereo feeds are downmixed to the first channel before classification.
package porcupine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	pv "github.com/Picovoice/porcupine/binding/go/v3"

	"github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend"
)

// Config holds the Porcupine engine parameters.
type Config struct {
	// AccessKey is the Picovoice access key.
	AccessKey string

	// ModelPath is the path to the Porcupine model parameters file. Empty
	// uses the binding's built-in default model.
	ModelPath string

	// KeywordPaths lists the .ppn keyword files to detect.
	KeywordPaths []string

	// Threshold is the detection threshold on the 0–100 panel scale. It is
	// mapped onto Porcupine's [0, 1] sensitivity range.
	Threshold int

	// Channels is the channel count of the PCM that will be fed. Porcupine
	// itself is mono; extra channels are dropped during downmix.
	Channels int
}

// Engine adapts Porcupine to the frontend.Engine contract.
type Engine struct {
	mu       sync.Mutex
	p        pv.Porcupine
	channels int
	mono     []int16
	pending  *frontend.WakeEvent
	closed   bool
}

var _ frontend.Engine = (*Engine)(nil)

// New creates and initialises a Porcupine-backed engine.
func New(cfg Config) (*Engine, error) {
	if cfg.AccessKey == "" {
		return nil, errors.New("porcupine: access key is required")
	}
	if len(cfg.KeywordPaths) == 0 {
		return nil, errors.New("porcupine: at least one keyword path is required")
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}

	sens := Sensitivity(cfg.Threshold)
	sensitivities := make([]float32, len(cfg.KeywordPaths))
	for i := range sensitivities {
		sensitivities[i] = sens
	}

	e := &Engine{
		p: pv.Porcupine{
			AccessKey:     cfg.AccessKey,
			ModelPath:     cfg.ModelPath,
			KeywordPaths:  cfg.KeywordPaths,
			Sensitivities: sensitivities,
		},
		channels: channels,
		mono:     make([]int16, pv.FrameLength),
	}
	if err := e.p.Init(); err != nil {
		return nil, fmt.Errorf("porcupine: init: %w", err)
	}
	return e, nil
}

// Sensitivity maps a 0–100 panel threshold onto Porcupine's [0, 1]
// sensitivity scale. The curve keeps the low end usable: even threshold 0
// yields a sensitivity of 0.4 rather than a dead detector.
func Sensitivity(threshold int) float32 {
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 100 {
		threshold = 100
	}
	s := 0.4 + float64(threshold)/100.0*0.5999
	if s > 1 {
		s = 1
	}
	return float32(s)
}

// SampleRate returns the PCM sample rate Porcupine expects.
func (e *Engine) SampleRate() int { return pv.SampleRate }

// FeedBlockSize returns Porcupine's native frame length scaled by the channel
// count, so one fed block downmixes to exactly one classifier frame.
func (e *Engine) FeedBlockSize() int { return pv.FrameLength * e.channels }

func (e *Engine) Channels() int { return e.channels }

// Feed downmixes one block to mono and runs the classifier on it. A
// detection is held until the next Fetch.
func (e *Engine) Feed(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New("porcupine: engine is closed")
	}
	if len(block) != pv.FrameLength*e.channels {
		return fmt.Errorf("porcupine: feed block has %d samples, want %d", len(block), pv.FrameLength*e.channels)
	}

	for i := 0; i < pv.FrameLength; i++ {
		e.mono[i] = block[i*e.channels]
	}

	keywordIndex, err := e.p.Process(e.mono)
	if err != nil {
		return fmt.Errorf("porcupine: process: %w", err)
	}
	if keywordIndex >= 0 {
		e.pending = &frontend.WakeEvent{
			WordIndex: keywordIndex,
			Channel:   0,
			Timestamp: time.Now(),
		}
	}
	return nil
}

// Fetch returns the detection produced by the last Feed, if any. Porcupine
// exposes no processed audio, so Result.Processed is always nil.
func (e *Engine) Fetch() (frontend.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return frontend.Result{}, errors.New("porcupine: engine is closed")
	}
	if e.pending == nil {
		return frontend.Result{}, nil
	}
	res := frontend.Result{Wake: e.pending}
	e.pending = nil
	return res, nil
}

// Close releases the classifier. Safe to call twice.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.p.Delete()
}
