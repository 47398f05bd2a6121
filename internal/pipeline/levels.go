// Package pipeline implements the real-time acoustic front-end loop:
// capture → level extraction → front-end feed/fetch → wake-word state →
// LED rendering, driven at a fixed cadence by a single goroutine.
//
// All mutable tick state lives on the Pipeline struct. Components are plain
// values wired at construction, so multiple pipelines can coexist and every
// stage is unit-testable without hidden coupling.
package pipeline

import "math"

// Provenance tags where a ChannelLevels value was measured.
type Provenance int

const (
	// LevelRaw is energy measured directly on captured PCM.
	LevelRaw Provenance = iota

	// LevelEnhanced is energy measured on processed audio returned by the
	// acoustic front end.
	LevelEnhanced

	// LevelEnhancedEstimated is raw energy scaled by a fixed gain to
	// approximate the front end's output when it exposes no processed audio.
	LevelEnhancedEstimated
)

// String returns the provenance label used in logs.
func (p Provenance) String() string {
	switch p {
	case LevelRaw:
		return "raw"
	case LevelEnhanced:
		return "enhanced"
	case LevelEnhancedEstimated:
		return "enhanced_estimated"
	}
	return "unknown"
}

// ChannelLevels is the per-channel mean absolute energy of one frame.
// A value type, recomputed every tick.
type ChannelLevels struct {
	Mic1     float64
	Mic2     float64
	Combined float64

	Provenance Provenance
}

// estimatedEnhancementGain approximates the AGC and beamforming gain the
// front end applies, calibrated against observed processed-audio energy.
const estimatedEnhancementGain = 30.0

// estimateEnhanced derives enhanced-calibration levels from raw ones when
// the front end exposes no processed audio.
func estimateEnhanced(raw ChannelLevels) ChannelLevels {
	return ChannelLevels{
		Mic1:       raw.Mic1 * estimatedEnhancementGain,
		Mic2:       raw.Mic2 * estimatedEnhancementGain,
		Combined:   raw.Combined * estimatedEnhancementGain,
		Provenance: LevelEnhancedEstimated,
	}
}

// ComputeLevels extracts per-channel mean absolute energy from interleaved
// PCM. For stereo input, Mic1 covers even sample indices, Mic2 odd ones, and
// Combined pools every sample (not the mean of the two means). Mono input
// reports the same level on all three channels. Empty input yields zeros.
func ComputeLevels(samples []int16, channels int) ChannelLevels {
	if len(samples) == 0 {
		return ChannelLevels{Provenance: LevelRaw}
	}

	if channels < 2 {
		var sum float64
		for _, s := range samples {
			sum += math.Abs(float64(s))
		}
		mean := sum / float64(len(samples))
		return ChannelLevels{Mic1: mean, Mic2: mean, Combined: mean, Provenance: LevelRaw}
	}

	var sum1, sum2, sumAll float64
	var n1, n2 int
	for i, s := range samples {
		a := math.Abs(float64(s))
		sumAll += a
		if i%2 == 0 {
			sum1 += a
			n1++
		} else {
			sum2 += a
			n2++
		}
	}

	out := ChannelLevels{
		Combined:   sumAll / float64(len(samples)),
		Provenance: LevelRaw,
	}
	if n1 > 0 {
		out.Mic1 = sum1 / float64(n1)
	}
	if n2 > 0 {
		out.Mic2 = sum2 / float64(n2)
	}
	return out
}
