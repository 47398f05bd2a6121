// Package app wires all daemon subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the tick loop alongside the diagnostic HTTP
// server, and Shutdown tears everything down in order.
//
// For testing, inject mock devices via the Devices struct. When main wires
// the real thing, the devices come from the config registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Naptick/Naphome-Firmware-sub000/internal/config"
	"github.com/Naptick/Naphome-Firmware-sub000/internal/health"
	"github.com/Naptick/Naphome-Firmware-sub000/internal/observe"
	"github.com/Naptick/Naphome-Firmware-sub000/internal/pipeline"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/audio"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/led"
)

// pipelineStaleAfter is how long the readiness probe tolerates a silent tick
// loop before reporting the pipeline as stalled. Capture timeouts keep the
// stamp fresh only on completed ticks, so a wedged device trips this.
const pipelineStaleAfter = 2 * time.Second

// Devices holds one interface value per hardware-facing slot. Engine may be
// nil, which disables wake-word detection. Populated by main.go via the
// config registry, or by tests with mocks.
type Devices struct {
	Source audio.Source
	Engine frontend.Engine
	Strip  led.Strip
}

// App owns all subsystem lifetimes and orchestrates the acoustic front-end
// pipeline.
type App struct {
	cfg     *config.Config
	devices *Devices

	pipeline *pipeline.Pipeline
	metrics  *observe.Metrics
	httpSrv  *http.Server

	// logLevel, when set, lets ApplyDiff change verbosity at runtime.
	logLevel *slog.LevelVar

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a metrics instance instead of the process-wide default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevelVar hands the app the level var backing the process logger so
// config reloads can change verbosity.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// New creates an App by wiring the pipeline and the diagnostic HTTP server.
// The devices struct comes from main.go (populated via the config registry).
func New(cfg *config.Config, devices *Devices, opts ...Option) (*App, error) {
	if devices == nil || devices.Source == nil || devices.Strip == nil {
		return nil, errors.New("app: a capture source and a strip are required")
	}

	a := &App{
		cfg:     cfg,
		devices: devices,
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.pipeline = pipeline.New(pipelineConfig(cfg), devices.Source, devices.Engine, devices.Strip, a.metrics)
	a.closers = append(a.closers, a.pipeline.Close)

	if cfg.Server.ListenAddr != "" {
		a.httpSrv = &http.Server{
			Addr:    cfg.Server.ListenAddr,
			Handler: a.buildMux(),
		}
	}

	return a, nil
}

// buildMux assembles the diagnostic routes: Prometheus metrics plus the
// liveness and readiness probes.
func (a *App) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(
		health.Staleness("pipeline", a.pipeline.LastTick, pipelineStaleAfter),
	).Register(mux)
	return mux
}

// pipelineConfig translates the YAML schema into the pipeline's runtime
// parameters. Zero values pass through; the pipeline applies its own
// hardware defaults.
func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		SampleRate:     cfg.Audio.SampleRateHz,
		Channels:       cfg.Audio.Channels,
		FrameDuration:  time.Duration(cfg.Audio.FrameDurationMs) * time.Millisecond,
		CaptureTimeout: time.Duration(cfg.Audio.CaptureTimeoutMs) * time.Millisecond,
		Cooldown:       time.Duration(cfg.Wake.CooldownMs) * time.Millisecond,
		AlertDuration:  time.Duration(cfg.Wake.AlertDurationMs) * time.Millisecond,
		LevelLogEvery:  cfg.Server.LevelLogEvery,
		Renderer: pipeline.RendererConfig{
			Mic1Index:     cfg.LEDs.Mic1Index,
			Mic2Index:     cfg.LEDs.Mic2Index,
			CombinedIndex: cfg.LEDs.CombinedIndex,
			Brightness:    brightnessOrDefault(cfg.LEDs.Brightness),
		},
	}
}

func brightnessOrDefault(b int) uint8 {
	if b <= 0 {
		return 255
	}
	if b > 255 {
		return 255
	}
	return uint8(b)
}

// Run starts the pipeline tick loop and the diagnostic HTTP server, blocking
// until ctx is cancelled or one of them fails. The startup animation, when
// enabled, runs to completion before the first tick.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.LEDs.StartupAnimation {
		step := time.Duration(a.cfg.LEDs.StartupAnimationStepMs) * time.Millisecond
		if step <= 0 {
			step = 50 * time.Millisecond
		}
		a.pipeline.Chase(ctx, step)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.pipeline.Run(ctx)
	})

	if a.httpSrv != nil {
		g.Go(func() error {
			slog.Info("diagnostic server listening", "addr", a.httpSrv.Addr)
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: diagnostic server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.httpSrv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// ApplyDiff applies a config change produced by the watcher. Only the log
// level and the LED brightness take effect immediately; everything else is
// reported as needing a restart.
func (a *App) ApplyDiff(d config.ConfigDiff) {
	if d.LogLevelChanged {
		if a.logLevel != nil {
			a.logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		} else {
			slog.Warn("log level changed in config but no level var is wired; restart to apply")
		}
	}
	if d.BrightnessChanged {
		a.pipeline.SetBrightness(d.NewBrightness)
		slog.Info("LED brightness changed", "brightness", d.NewBrightness)
	}
	if len(d.RestartNeeded) > 0 {
		slog.Warn("config changes require a restart to take effect", "fields", d.RestartNeeded)
	}
}

// slogLevel converts the config log level to its slog equivalent.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
