package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidBackendNames lists known backend names per concern.
// Used by [Validate] to warn about unrecognised backend names.
var ValidBackendNames = map[string][]string{
	"audio": {"miniaudio"},
	"wake":  {"porcupine"},
	"leds":  {"udp"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LevelLogEvery < 0 {
		errs = append(errs, fmt.Errorf("server.level_log_every %d is negative", cfg.Server.LevelLogEvery))
	}
	if cfg.Server.ListenAddr == "" {
		slog.Warn("server.listen_addr is empty; metrics and health endpoints are disabled")
	}

	// Backend name validation — warn for unknown names.
	validateBackendName("audio", cfg.Audio.Backend)
	validateBackendName("wake", cfg.Wake.Backend)
	validateBackendName("leds", cfg.LEDs.Backend)

	// Audio
	if cfg.Audio.SampleRateHz < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate_hz %d is negative", cfg.Audio.SampleRateHz))
	}
	if cfg.Audio.Channels != 0 && cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1, 2", cfg.Audio.Channels))
	}
	if cfg.Audio.FrameDurationMs < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_duration_ms %d is negative", cfg.Audio.FrameDurationMs))
	}
	if cfg.Audio.CaptureTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("audio.capture_timeout_ms %d is negative", cfg.Audio.CaptureTimeoutMs))
	}

	// Wake
	if cfg.Wake.Enabled {
		if cfg.Wake.AccessKey == "" {
			errs = append(errs, errors.New("wake.access_key is required when wake.enabled is true"))
		}
		if len(cfg.Wake.KeywordPaths) == 0 {
			errs = append(errs, errors.New("wake.keyword_paths must list at least one keyword when wake.enabled is true"))
		}
		if cfg.Wake.Threshold < 0 || cfg.Wake.Threshold > 100 {
			errs = append(errs, fmt.Errorf("wake.threshold %d is out of range [0, 100]", cfg.Wake.Threshold))
		}
		if cfg.Wake.CooldownMs < 0 {
			errs = append(errs, fmt.Errorf("wake.cooldown_ms %d is negative", cfg.Wake.CooldownMs))
		}
		if cfg.Wake.AlertDurationMs < 0 {
			errs = append(errs, fmt.Errorf("wake.alert_duration_ms %d is negative", cfg.Wake.AlertDurationMs))
		}
	}

	// LEDs
	count := cfg.LEDs.Count
	if count < 0 {
		errs = append(errs, fmt.Errorf("leds.count %d is negative", count))
	}
	if count == 0 {
		count = 12 // runtime default, used below for index range checks
	}
	if cfg.LEDs.Brightness < 0 || cfg.LEDs.Brightness > 255 {
		errs = append(errs, fmt.Errorf("leds.brightness %d is out of range [0, 255]", cfg.LEDs.Brightness))
	}
	for _, idx := range []struct {
		name string
		val  int
	}{
		{"leds.mic1_index", cfg.LEDs.Mic1Index},
		{"leds.mic2_index", cfg.LEDs.Mic2Index},
		{"leds.combined_index", cfg.LEDs.CombinedIndex},
	} {
		if idx.val < 0 || idx.val >= count {
			errs = append(errs, fmt.Errorf("%s %d is out of range [0, %d)", idx.name, idx.val, count))
		}
	}
	if cfg.LEDs.Mic1Index == cfg.LEDs.Mic2Index ||
		cfg.LEDs.Mic1Index == cfg.LEDs.CombinedIndex ||
		cfg.LEDs.Mic2Index == cfg.LEDs.CombinedIndex {
		slog.Warn("LED indicator indices overlap; later indicators overwrite earlier ones",
			"mic1", cfg.LEDs.Mic1Index,
			"mic2", cfg.LEDs.Mic2Index,
			"combined", cfg.LEDs.CombinedIndex,
		)
	}
	if cfg.LEDs.Backend == "udp" && cfg.LEDs.Addr == "" {
		errs = append(errs, errors.New("leds.addr is required for the udp backend"))
	}
	if cfg.LEDs.StartupAnimationStepMs < 0 {
		errs = append(errs, fmt.Errorf("leds.startup_animation_step_ms %d is negative", cfg.LEDs.StartupAnimationStepMs))
	}

	return errors.Join(errs...)
}

// validateBackendName logs a warning if name is non-empty and not found in
// the [ValidBackendNames] list for the given concern.
func validateBackendName(concern string, name Backend) {
	if name == "" {
		return
	}
	known, ok := ValidBackendNames[concern]
	if !ok {
		return
	}
	if slices.Contains(known, string(name)) {
		return
	}
	slog.Warn("unknown backend name — may be a typo or an unregistered backend",
		"concern", concern,
		"name", name,
		"known", known,
	)
}
