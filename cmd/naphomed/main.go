// Command naphomed is the acoustic front-end daemon: it captures microphone
// audio, tracks per-channel levels, runs wake-word detection, and drives the
// status LED strip.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Naptick/Naphome-Firmware-sub000/internal/app"
	"github.com/Naptick/Naphome-Firmware-sub000/internal/config"
	"github.com/Naptick/Naphome-Firmware-sub000/internal/observe"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/audio"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/audio/miniaudio"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend/porcupine"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/led"
	ledudp "github.com/Naptick/Naphome-Firmware-sub000/pkg/led/udp"
)

const serviceVersion = "0.3.0"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "naphomed: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "naphomed: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := &slog.LevelVar{}
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("naphomed starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics provider ──────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: serviceVersion,
	})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics provider shutdown error", "err", err)
		}
	}()

	// ── Device registry ───────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinBackends(reg)

	devices, err := buildDevices(cfg, reg)
	if err != nil {
		slog.Error("failed to build devices", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg, devices,
		app.WithLogLevelVar(logLevel),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		application.ApplyDiff(config.Diff(old, new))
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("pipeline ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Device wiring ─────────────────────────────────────────────────────────────

// registerBuiltinBackends wires the shipped hardware backends into reg:
// miniaudio capture, Porcupine wake detection, and the UDP pixel gateway.
func registerBuiltinBackends(reg *config.Registry) {
	reg.RegisterAudio("miniaudio", func(cfg config.AudioConfig) (audio.Source, error) {
		sampleRate := cfg.SampleRateHz
		if sampleRate <= 0 {
			sampleRate = 16000
		}
		channels := cfg.Channels
		if channels <= 0 {
			channels = 2
		}
		frameMs := cfg.FrameDurationMs
		if frameMs <= 0 {
			frameMs = 20
		}
		return miniaudio.New(miniaudio.Config{
			SampleRate:   sampleRate,
			Channels:     channels,
			DeviceName:   cfg.Device,
			FrameSamples: sampleRate / 1000 * frameMs * channels,
		})
	})

	reg.RegisterWake("porcupine", func(wake config.WakeConfig, audioCfg config.AudioConfig) (frontend.Engine, error) {
		channels := audioCfg.Channels
		if channels <= 0 {
			channels = 2
		}
		return porcupine.New(porcupine.Config{
			AccessKey:    wake.AccessKey,
			ModelPath:    wake.ModelPath,
			KeywordPaths: wake.KeywordPaths,
			Threshold:    wake.Threshold,
			Channels:     channels,
		})
	})

	reg.RegisterLED("udp", func(cfg config.LEDConfig) (led.Strip, error) {
		count := cfg.Count
		if count <= 0 {
			count = 12
		}
		return ledudp.New(cfg.Addr, count)
	})
}

// buildDevices instantiates the configured backends and returns them in an
// [app.Devices] struct for the application to consume.
func buildDevices(cfg *config.Config, reg *config.Registry) (*app.Devices, error) {
	d := &app.Devices{}

	source, err := reg.CreateAudio(cfg.Audio)
	if err != nil {
		return nil, fmt.Errorf("create capture source: %w", err)
	}
	d.Source = source
	slog.Info("capture source created", "backend", backendName(cfg.Audio.Backend, config.DefaultAudioBackend), "device", cfg.Audio.Device)

	if cfg.Wake.Enabled {
		engine, err := reg.CreateWake(cfg.Wake, cfg.Audio)
		if err != nil {
			return nil, fmt.Errorf("create wake engine: %w", err)
		}
		d.Engine = engine
		slog.Info("wake engine created",
			"backend", backendName(cfg.Wake.Backend, config.DefaultWakeBackend),
			"keywords", len(cfg.Wake.KeywordPaths),
			"threshold", cfg.Wake.Threshold,
		)
	} else {
		slog.Info("wake-word detection disabled")
	}

	strip, err := reg.CreateLED(cfg.LEDs)
	if err != nil {
		return nil, fmt.Errorf("create LED strip: %w", err)
	}
	d.Strip = strip
	slog.Info("LED strip created", "backend", backendName(cfg.LEDs.Backend, config.DefaultLEDBackend), "count", strip.Len())

	return d, nil
}

func backendName(b, def config.Backend) config.Backend {
	if b == "" {
		return def
	}
	return b
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        naphomed — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Capture", fmt.Sprintf("%d Hz / %d ch", orDefault(cfg.Audio.SampleRateHz, 16000), orDefault(cfg.Audio.Channels, 2)))
	printField("Frame", fmt.Sprintf("%d ms", orDefault(cfg.Audio.FrameDurationMs, 20)))
	if cfg.Wake.Enabled {
		printField("Wake", fmt.Sprintf("%d keyword(s)", len(cfg.Wake.KeywordPaths)))
	} else {
		printField("Wake", "(disabled)")
	}
	printField("LEDs", fmt.Sprintf("%d pixels", orDefault(cfg.LEDs.Count, 12)))
	if cfg.Server.ListenAddr != "" {
		printField("Listen addr", cfg.Server.ListenAddr)
	} else {
		printField("Listen addr", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", name, value)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
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
