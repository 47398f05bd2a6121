// Package config provides the configuration schema, loader, backend registry,
// and file watcher for the Naphome acoustic front-end daemon.
package config

// LogLevel controls log verbosity for the daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Backend selects a registered implementation for one hardware-facing
// concern. The name is looked up in the [Registry] at startup.
type Backend string

// Config is the root configuration structure for the daemon.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Audio  AudioConfig  `yaml:"audio"`
	Wake   WakeConfig   `yaml:"wake"`
	LEDs   LEDConfig    `yaml:"leds"`
}

// ServerConfig holds network and logging settings for the daemon's
// diagnostic HTTP endpoint.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /metrics, /healthz, and /readyz
	// (e.g., ":9090"). Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LevelLogEvery emits a debug summary of the channel levels every N
	// pipeline ticks. 0 disables the summary.
	LevelLogEvery int `yaml:"level_log_every"`
}

// AudioConfig describes the capture device and framing.
type AudioConfig struct {
	// Backend selects the capture implementation (e.g., "miniaudio").
	// Empty selects the registry default.
	Backend Backend `yaml:"backend"`

	// Device names the capture device. Empty uses the system default.
	Device string `yaml:"device"`

	// SampleRateHz is the capture sample rate. Default 16000.
	SampleRateHz int `yaml:"sample_rate_hz"`

	// Channels is the capture channel count, 1 or 2. Default 2.
	Channels int `yaml:"channels"`

	// FrameDurationMs is the tick cadence and the span of one capture
	// frame in milliseconds. Default 20.
	FrameDurationMs int `yaml:"frame_duration_ms"`

	// CaptureTimeoutMs bounds the per-tick wait for a full frame.
	// Default 100.
	CaptureTimeoutMs int `yaml:"capture_timeout_ms"`
}

// WakeConfig describes the wake-word front end.
type WakeConfig struct {
	// Enabled turns wake-word detection on. When false the pipeline renders
	// raw levels forever and none of the other fields are used.
	Enabled bool `yaml:"enabled"`

	// Backend selects the detection engine (e.g., "porcupine"). Empty
	// selects the registry default.
	Backend Backend `yaml:"backend"`

	// AccessKey authenticates against the detection engine's licensing
	// service, for backends that require one.
	AccessKey string `yaml:"access_key"`

	// ModelPath points at the engine's model parameters file. Empty uses
	// the backend's built-in default.
	ModelPath string `yaml:"model_path"`

	// KeywordPaths lists the keyword model files to detect.
	KeywordPaths []string `yaml:"keyword_paths"`

	// Threshold is the detection threshold on the 0–100 panel scale.
	Threshold int `yaml:"threshold"`

	// CooldownMs is the minimum interval between accepted detections.
	// Default 2000.
	CooldownMs int `yaml:"cooldown_ms"`

	// AlertDurationMs is how long the detection alert stays lit.
	// Default 1000.
	AlertDurationMs int `yaml:"alert_duration_ms"`
}

// LEDConfig describes the status strip and the placement of the three
// channel indicators on it.
type LEDConfig struct {
	// Backend selects the strip implementation (e.g., "udp"). Empty
	// selects the registry default.
	Backend Backend `yaml:"backend"`

	// Addr is the backend-specific output address. For the "udp" backend
	// this is the host:port of the pixel gateway.
	Addr string `yaml:"addr"`

	// Count is the number of pixels on the strip. Default 12.
	Count int `yaml:"count"`

	// Brightness is the global 0–255 ceiling applied to level-driven
	// colors. Default 255. Hot-reloadable.
	Brightness int `yaml:"brightness"`

	// Mic1Index, Mic2Index, and CombinedIndex place the per-channel
	// indicators on the strip.
	Mic1Index     int `yaml:"mic1_index"`
	Mic2Index     int `yaml:"mic2_index"`
	CombinedIndex int `yaml:"combined_index"`

	// StartupAnimation runs a chase across the strip before the pipeline
	// starts, as a visual self-test.
	StartupAnimation bool `yaml:"startup_animation"`

	// StartupAnimationStepMs is the per-pixel dwell of the chase.
	// Default 50.
	StartupAnimationStepMs int `yaml:"startup_animation_step_ms"`
}
