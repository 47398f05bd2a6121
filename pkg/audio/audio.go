// Package audio defines the capture-side contract for the Naphome acoustic
// pipeline.
//
// A Source delivers interleaved signed 16-bit PCM pulled by the pipeline at a
// fixed cadence. Sources are pull-based by design: the scheduler owns the
// pacing and a Source must never block past the timeout it is given, so a
// stalled capture device degrades into skipped ticks instead of a wedged
// pipeline.
package audio

import "time"

// Frame is a single frame of interleaved PCM audio. Frames are ephemeral:
// the pipeline owns one for the duration of a tick and discards it afterwards.
type Frame struct {
	// Samples holds interleaved signed 16-bit PCM. For stereo input the
	// layout is [mic1, mic2, mic1, mic2, ...].
	Samples []int16

	// SampleRate in Hz (e.g. 16000).
	SampleRate int

	// Channels is 1 for mono or 2 for a stereo microphone pair.
	Channels int

	// Duration is the nominal wall-clock span the frame covers.
	Duration time.Duration
}

// Source is a pull-based capture device.
//
// A Source should not be shared between goroutines; the pipeline scheduler is
// its single consumer.
type Source interface {
	// ReadFrame fills buf with up to len(buf) interleaved samples and returns
	// the number written. The buffer must be sized to
	// requested samples × channel count. If no audio arrives within timeout,
	// ReadFrame returns (0, nil) — a timeout is an expected idle condition,
	// not an error. A non-nil error indicates a device I/O failure; the
	// caller decides whether to retry.
	ReadFrame(buf []int16, timeout time.Duration) (int, error)

	// Close stops capture and releases the device. Calling Close more than
	// once is safe and returns nil.
	Close() error
}
