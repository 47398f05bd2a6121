package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only the log level and LED brightness can be applied without restarting
// the capture and detection backends; every other change is reported in
// RestartNeeded so the operator can be told a restart is required.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	BrightnessChanged bool
	NewBrightness     uint8

	// RestartNeeded lists the dotted names of changed fields that only take
	// effect after a restart.
	RestartNeeded []string
}

// Empty reports whether the diff carries no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.BrightnessChanged && len(d.RestartNeeded) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.LEDs.Brightness != new.LEDs.Brightness {
		d.BrightnessChanged = true
		d.NewBrightness = uint8(new.LEDs.Brightness)
	}

	restart := func(name string, changed bool) {
		if changed {
			d.RestartNeeded = append(d.RestartNeeded, name)
		}
	}

	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("server.level_log_every", old.Server.LevelLogEvery != new.Server.LevelLogEvery)
	restart("audio", old.Audio != new.Audio)
	restart("wake", !wakeEqual(old.Wake, new.Wake))
	restart("leds", !ledsEqualIgnoringBrightness(old.LEDs, new.LEDs))

	return d
}

func wakeEqual(a, b WakeConfig) bool {
	if !slices.Equal(a.KeywordPaths, b.KeywordPaths) {
		return false
	}
	a.KeywordPaths, b.KeywordPaths = nil, nil
	return reflect.DeepEqual(a, b)
}

func ledsEqualIgnoringBrightness(a, b LEDConfig) bool {
	a.Brightness, b.Brightness = 0, 0
	return a == b
}
