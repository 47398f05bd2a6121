// Package frontend defines the Engine interface for acoustic front-end
// backends.
//
// A front-end engine wraps a black-box audio processor — typically a
// beamforming/noise-suppression stage combined with a wake-word classifier —
// that consumes fixed-size PCM blocks and is polled for results. The engine
// never pushes: the pipeline feeds one block and fetches one result per tick,
// so a slow backend degrades into delayed detections rather than unbounded
// queueing.
//
// Feed and Fetch are synchronous and must not block on I/O; they run inside
// the real-time tick loop. An Engine is driven by a single goroutine and does
// not need to be safe for concurrent use.
package frontend

import "time"

// WakeEvent is a single wake-word detection emitted by an engine. Ephemeral:
// produced by Fetch, consumed immediately by the wake state machine.
type WakeEvent struct {
	// WordIndex identifies which configured keyword fired, starting at 0.
	WordIndex int

	// Channel is the microphone channel the detection was attributed to, or
	// 0 when the backend does not distinguish channels.
	Channel int

	// Timestamp is when the detection was made.
	Timestamp time.Time
}

// Result is the outcome of a single Fetch poll. The zero value means "nothing
// this tick".
type Result struct {
	// Wake is the detection produced by this poll, or nil.
	Wake *WakeEvent

	// Processed is the enhanced audio corresponding to the last fed block,
	// interleaved int16. Nil when the backend does not expose processed
	// audio (detection-only engines).
	Processed []int16
}

// Engine is a block-oriented acoustic front end.
type Engine interface {
	// FeedBlockSize returns the exact number of interleaved samples each
	// Feed call must provide. Constant for the engine's lifetime.
	FeedBlockSize() int

	// Channels returns the channel count of the PCM the engine expects.
	Channels() int

	// Feed hands one block of exactly FeedBlockSize interleaved samples to
	// the engine. Must not block.
	Feed(block []int16) error

	// Fetch polls for the result of previously fed audio. Returns the zero
	// Result when nothing is available. Must not block.
	Fetch() (Result, error)

	// Close releases the engine. Calling Close more than once is safe and
	// returns nil.
	Close() error
}
