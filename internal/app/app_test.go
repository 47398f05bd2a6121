package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Naptick/Naphome-Firmware-sub000/internal/app"
	"github.com/Naptick/Naphome-Firmware-sub000/internal/config"
	"github.com/Naptick/Naphome-Firmware-sub000/internal/observe"
	audiomock "github.com/Naptick/Naphome-Firmware-sub000/pkg/audio/mock"
	frontendmock "github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend/mock"
	ledmock "github.com/Naptick/Naphome-Firmware-sub000/pkg/led/mock"
)

// testConfig returns a minimal config driving a mono pipeline with mock
// devices and no diagnostic server.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Audio: config.AudioConfig{
			SampleRateHz:    16000,
			Channels:        1,
			FrameDurationMs: 1,
		},
		LEDs: config.LEDConfig{
			Count:         6,
			Brightness:    255,
			Mic2Index:     1,
			CombinedIndex: 2,
		},
	}
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func testDevices() (*app.Devices, *audiomock.Source, *ledmock.Strip) {
	source := audiomock.NewSource()
	strip := ledmock.NewStrip(6)
	return &app.Devices{
		Source: source,
		Engine: frontendmock.NewEngine(320, 1),
		Strip:  strip,
	}, source, strip
}

func TestNew_RequiresDevices(t *testing.T) {
	t.Parallel()

	_, err := app.New(testConfig(), nil)
	if err == nil {
		t.Fatal("expected error for nil devices, got nil")
	}

	_, err = app.New(testConfig(), &app.Devices{Strip: ledmock.NewStrip(6)})
	if err == nil {
		t.Fatal("expected error for missing capture source, got nil")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	devices, _, _ := testDevices()
	application, err := app.New(testConfig(), devices, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = application.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run returned %v, want context deadline", err)
	}
}

func TestRun_StartupAnimationPrecedesTicks(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.LEDs.StartupAnimation = true
	cfg.LEDs.StartupAnimationStepMs = 1

	devices, _, strip := testDevices()
	application, err := app.New(cfg, devices, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = application.Run(ctx)

	// The chase pushes one frame per pixel plus a final blank before any
	// tick renders.
	frames := strip.Frames()
	if len(frames) < 7 {
		t.Fatalf("frame count = %d, want at least the 7 chase frames", len(frames))
	}
	for i, px := range frames[6] {
		if px != (ledmock.Pixel{}) {
			t.Errorf("chase-final frame pixel %d = %+v, want off", i, px)
		}
	}
}

func TestShutdown_ClosesDevices(t *testing.T) {
	t.Parallel()

	devices, source, strip := testDevices()
	application, err := app.New(testConfig(), devices, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if !source.Closed() {
		t.Error("capture source not closed")
	}
	if !strip.Closed() {
		t.Error("strip not released")
	}

	// Second call is a no-op.
	if err := application.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestApplyDiff_HotReloadsLevelAndBrightness(t *testing.T) {
	t.Parallel()

	devices, _, _ := testDevices()
	level := &slog.LevelVar{}
	application, err := app.New(testConfig(), devices,
		app.WithMetrics(testMetrics(t)),
		app.WithLogLevelVar(level),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	application.ApplyDiff(config.ConfigDiff{
		LogLevelChanged:   true,
		NewLogLevel:       config.LogDebug,
		BrightnessChanged: true,
		NewBrightness:     64,
	})

	if got := level.Level(); got != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", got)
	}
}

func TestRun_DiagnosticEndpoints(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := testConfig()
	cfg.Server.ListenAddr = addr

	devices, source, _ := testDevices()
	for i := 0; i < 200; i++ {
		source.PushZero(16) // 1 ms mono frames
	}

	application, err := app.New(cfg, devices, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	get := func(path string) (int, string) {
		t.Helper()
		var resp *http.Response
		var err error
		for i := 0; i < 50; i++ {
			resp, err = http.Get("http://" + addr + path)
			if err == nil {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	if status, _ := get("/healthz"); status != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", status)
	}
	if status, _ := get("/metrics"); status != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", status)
	}
	// Ticks are running, so the staleness probe passes.
	if status, body := get("/readyz"); status != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200 (body %s)", status, body)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
