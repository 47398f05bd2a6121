package pipeline

import "math"

// Calibration windows for the level-to-brightness map. Levels below the
// noise floor render dark; levels at or above the max render at full scale.
// The enhanced window also covers estimated levels, which are scaled into
// the same range.
const (
	rawNoiseFloor = 0.01
	rawMaxLevel   = 50.0

	enhancedNoiseFloor = 100.0
	enhancedMaxLevel   = 3000.0
)

// Boost and floor shaping of the normalized level.
const (
	// boostZoneLower..boostZoneUpper is the band (after the sqrt) that gets
	// extra gain so quiet rooms still move the LEDs.
	boostZoneLower = 0.001
	boostZoneUpper = 0.2
	boostGain      = 3.0

	// visibilityFloor is the minimum normalized brightness for any signal
	// above the noise floor.
	visibilityFloor = 0.05
)

// MapLevel converts a channel energy level into an LED brightness. Pure
// function; the calibration window is selected by provenance.
//
// The boost is capped at the zone's upper bound: an uncapped ×3 would step
// down from 0.6 to 0.2 as the level crosses the zone edge, breaking
// monotonicity.
func MapLevel(level float64, p Provenance) uint8 {
	noiseFloor, maxLevel := rawNoiseFloor, rawMaxLevel
	if p != LevelRaw {
		noiseFloor, maxLevel = enhancedNoiseFloor, enhancedMaxLevel
	}

	if level < noiseFloor {
		return 0
	}

	n := (level - noiseFloor) / (maxLevel - noiseFloor)
	if n < 0 {
		n = 0
	} else if n > 1 {
		n = 1
	}

	n = math.Sqrt(n)

	if n > boostZoneLower && n < boostZoneUpper {
		n = math.Min(n*boostGain, boostZoneUpper)
	}

	if n > 0 && n < visibilityFloor {
		n = visibilityFloor
	}

	return uint8(math.Round(n * 255))
}

// ScaleBrightness applies the global 0–255 brightness setting to a mapped
// channel brightness. Any channel that was visible before scaling stays
// visible: the result never rounds a non-zero input down to fully dark.
func ScaleBrightness(b, global uint8) uint8 {
	if b == 0 {
		return 0
	}
	scaled := uint16(b) * uint16(global) / 255
	if scaled == 0 {
		return 1
	}
	return uint8(scaled)
}
