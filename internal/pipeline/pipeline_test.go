package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Naptick/Naphome-Firmware-sub000/internal/pipeline"
	audiomock "github.com/Naptick/Naphome-Firmware-sub000/pkg/audio/mock"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend"
	frontendmock "github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend/mock"
	ledmock "github.com/Naptick/Naphome-Firmware-sub000/pkg/led/mock"
)

// testConfig is a mono 16 kHz / 20 ms pipeline: each tick reads exactly 320
// samples, which matches the mock engine's block size so every tick feeds
// once.
func testConfig() pipeline.Config {
	return pipeline.Config{
		SampleRate:     16000,
		Channels:       1,
		FrameDuration:  20 * time.Millisecond,
		CaptureTimeout: 20 * time.Millisecond,
		Cooldown:       2 * time.Second,
		AlertDuration:  time.Second,
		Renderer:       testRendererConfig(),
	}
}

// runTicks drives n ticks at the configured cadence starting from t0.
func runTicks(p *pipeline.Pipeline, t0 time.Time, n int) {
	ctx := context.Background()
	for i := 0; i < n; i++ {
		p.Tick(ctx, t0.Add(time.Duration(i)*20*time.Millisecond))
	}
}

func TestPipeline_SilenceRendersDarkAndInactive(t *testing.T) {
	m, _ := newTestMetrics(t)
	source := audiomock.NewSource()
	for i := 0; i < 10; i++ {
		source.PushZero(320)
	}
	eng := frontendmock.NewEngine(320, 1)
	strip := ledmock.NewStrip(6)

	p := pipeline.New(testConfig(), source, eng, strip, m)
	runTicks(p, time.Unix(1000, 0), 10)

	frames := strip.Frames()
	if len(frames) != 10 {
		t.Fatalf("frame count = %d, want 10", len(frames))
	}
	for tick, frame := range frames {
		for i, px := range frame {
			if px != (ledmock.Pixel{}) {
				t.Fatalf("tick %d pixel %d = %+v, want off", tick, i, px)
			}
		}
	}
}

func TestPipeline_AlertWindowCoversExpectedTicks(t *testing.T) {
	// A detection surfacing on tick 5 with a 1 s alert at 20 ms cadence
	// holds the override through tick 55; level rendering resumes on 56.
	m, _ := newTestMetrics(t)
	source := audiomock.NewSource()
	for i := 0; i < 60; i++ {
		frame := make([]int16, 320)
		for j := range frame {
			frame[j] = 100
		}
		source.Push(frame)
	}
	eng := frontendmock.NewEngine(320, 1)
	eng.ScriptResult(6, frontend.Result{Wake: &frontend.WakeEvent{WordIndex: 0}})
	strip := ledmock.NewStrip(6)

	p := pipeline.New(testConfig(), source, eng, strip, m)
	runTicks(p, time.Unix(1000, 0), 60)

	frames := strip.Frames()
	if len(frames) != 60 {
		t.Fatalf("frame count = %d, want 60", len(frames))
	}

	white := ledmock.Pixel{R: 255, G: 255, B: 255}
	isAlert := func(f []ledmock.Pixel) bool {
		return f[0] == white && f[1] == white && f[2] == white
	}

	for tick := 0; tick < 5; tick++ {
		if isAlert(frames[tick]) {
			t.Errorf("tick %d: alert before the detection", tick)
		}
	}
	for tick := 5; tick <= 55; tick++ {
		if !isAlert(frames[tick]) {
			t.Errorf("tick %d: alert not shown", tick)
		}
	}
	if isAlert(frames[56]) {
		t.Error("tick 56: alert still shown after its window")
	}
	// Level rendering resumed: amplitude 100 estimated to 3000 saturates
	// the enhanced window, so mic1 is full blue.
	if frames[56][0] != (ledmock.Pixel{B: 255}) {
		t.Errorf("tick 56 mic1 = %+v, want full blue", frames[56][0])
	}
}

func TestPipeline_StickyEnhancedSelection(t *testing.T) {
	// Once the front end produces one result, rendering stays on the
	// enhanced calibration window even on ticks without a fetch.
	m, _ := newTestMetrics(t)
	source := audiomock.NewSource()
	for i := 0; i < 3; i++ {
		frame := make([]int16, 320)
		for j := range frame {
			frame[j] = 30 // raw mean 30 → estimated 900
		}
		source.Push(frame)
	}
	eng := frontendmock.NewEngine(640, 1) // feeds only every second tick
	strip := ledmock.NewStrip(3)

	p := pipeline.New(testConfig(), source, eng, strip, m)
	runTicks(p, time.Unix(1000, 0), 3)

	frames := strip.Frames()
	// Tick 0: no feed yet, raw calibration. Raw 30 on the {0.01, 50}
	// window is near saturation.
	if frames[0][0].B == 0 {
		t.Error("tick 0: raw levels not rendered")
	}
	// Tick 1: first feed+fetch, estimated 900 on the enhanced window →
	// sqrt((900−100)/2900) ≈ 0.525 → 134.
	if got := frames[1][0].B; got != 134 {
		t.Errorf("tick 1 mic1 blue = %d, want 134", got)
	}
	// Tick 2: no feed (only 320 of 640 accumulated), but the selection
	// sticks to the last enhanced value.
	if got := frames[2][0].B; got != 134 {
		t.Errorf("tick 2 mic1 blue = %d, want sticky 134", got)
	}
}

func TestPipeline_CaptureTroubleSkipsTick(t *testing.T) {
	m, reader := newTestMetrics(t)
	source := audiomock.NewSource()
	source.PushZero(320)
	eng := frontendmock.NewEngine(320, 1)
	strip := ledmock.NewStrip(3)

	p := pipeline.New(testConfig(), source, eng, strip, m)
	t0 := time.Unix(1000, 0)
	ctx := context.Background()

	p.Tick(ctx, t0) // frame available
	p.Tick(ctx, t0.Add(20*time.Millisecond)) // queue empty → timeout
	source.FailNext(errors.New("device unplugged"))
	p.Tick(ctx, t0.Add(40*time.Millisecond)) // I/O error

	if got := len(strip.Frames()); got != 1 {
		t.Errorf("frame count = %d, want 1 (skipped ticks must not render)", got)
	}
	if got := counterValue(t, reader, "naphome.capture.timeouts"); got != 1 {
		t.Errorf("capture timeouts = %d, want 1", got)
	}
	if got := counterValue(t, reader, "naphome.capture.errors"); got != 1 {
		t.Errorf("capture errors = %d, want 1", got)
	}
	if got := counterValue(t, reader, "naphome.capture.frames"); got != 1 {
		t.Errorf("frames processed = %d, want 1", got)
	}
}

func TestPipeline_WithoutEngineRunsRawForever(t *testing.T) {
	m, _ := newTestMetrics(t)
	source := audiomock.NewSource()
	for i := 0; i < 5; i++ {
		frame := make([]int16, 320)
		for j := range frame {
			frame[j] = 25 // raw 25 → mapped on the raw window
		}
		source.Push(frame)
	}
	strip := ledmock.NewStrip(3)

	p := pipeline.New(testConfig(), source, nil, strip, m)
	runTicks(p, time.Unix(1000, 0), 5)

	frames := strip.Frames()
	if len(frames) != 5 {
		t.Fatalf("frame count = %d, want 5", len(frames))
	}
	// Raw 25 on {0.01, 50}: sqrt(0.4999) ≈ 0.707 → 180.
	for tick, frame := range frames {
		if got := frame[0].B; got != 180 {
			t.Errorf("tick %d mic1 blue = %d, want 180 (raw calibration)", tick, got)
		}
	}
}

func TestPipeline_SuppressedDetectionCounted(t *testing.T) {
	m, reader := newTestMetrics(t)
	source := audiomock.NewSource()
	for i := 0; i < 10; i++ {
		source.PushZero(320)
	}
	eng := frontendmock.NewEngine(320, 1)
	eng.ScriptResult(1, frontend.Result{Wake: &frontend.WakeEvent{WordIndex: 0}})
	eng.ScriptResult(3, frontend.Result{Wake: &frontend.WakeEvent{WordIndex: 0}})
	strip := ledmock.NewStrip(3)

	p := pipeline.New(testConfig(), source, eng, strip, m)
	runTicks(p, time.Unix(1000, 0), 10)

	if got := counterValue(t, reader, "naphome.wake.detections"); got != 1 {
		t.Errorf("detections = %d, want 1", got)
	}
	if got := counterValue(t, reader, "naphome.wake.suppressed"); got != 1 {
		t.Errorf("suppressed = %d, want 1", got)
	}
}

func TestPipeline_CloseTearsDownInOrder(t *testing.T) {
	m, _ := newTestMetrics(t)
	source := audiomock.NewSource()
	eng := frontendmock.NewEngine(320, 1)
	strip := ledmock.NewStrip(3)

	p := pipeline.New(testConfig(), source, eng, strip, m)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !source.Closed() {
		t.Error("capture source not closed")
	}
	if !eng.Closed() {
		t.Error("front-end engine not closed")
	}
	if !strip.Closed() {
		t.Error("strip not released")
	}
	// The final frame pushed before release is dark.
	for i, px := range strip.LastFrame() {
		if px != (ledmock.Pixel{}) {
			t.Errorf("final frame pixel %d = %+v, want off", i, px)
		}
	}

	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestPipeline_RunStopsOnContextCancel(t *testing.T) {
	m, _ := newTestMetrics(t)
	source := audiomock.NewSource()
	strip := ledmock.NewStrip(3)

	cfg := testConfig()
	cfg.FrameDuration = time.Millisecond
	p := pipeline.New(cfg, source, nil, strip, m)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run returned %v, want context deadline", err)
	}
}
