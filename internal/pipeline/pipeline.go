package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Naptick/Naphome-Firmware-sub000/internal/observe"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/audio"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/led"
)

// Config holds the pipeline timing and rendering parameters. Zero values
// fall back to the shipped hardware's tuning.
type Config struct {
	// SampleRate in Hz. Default 16000.
	SampleRate int

	// Channels is the capture channel count, 1 or 2. Default 2.
	Channels int

	// FrameDuration is the tick cadence and the span of one capture frame.
	// Default 20 ms.
	FrameDuration time.Duration

	// CaptureTimeout bounds the per-tick capture wait. Default 100 ms.
	CaptureTimeout time.Duration

	// Cooldown is the minimum interval between accepted wake detections.
	// Default 2 s.
	Cooldown time.Duration

	// AlertDuration is how long the wake alert stays lit. Default 1 s.
	AlertDuration time.Duration

	// Renderer places the channel indicators and sets global brightness.
	Renderer RendererConfig

	// LevelLogEvery emits a debug level summary every N completed ticks.
	// 0 disables the summary.
	LevelLogEvery int
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 2
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = 20 * time.Millisecond
	}
	if c.CaptureTimeout <= 0 {
		c.CaptureTimeout = 100 * time.Millisecond
	}
	return c
}

// FrameSamples returns the interleaved sample count of one capture frame.
func (c Config) FrameSamples() int {
	c = c.withDefaults()
	return int(int64(c.SampleRate)*int64(c.FrameDuration)/int64(time.Second)) * c.Channels
}

// Pipeline owns one tick loop: capture, level extraction, front-end
// feed/fetch, wake state, and LED rendering. All mutable state lives here;
// a single goroutine drives Tick.
type Pipeline struct {
	cfg      Config
	source   audio.Source
	adapter  *Adapter
	wake     *WakeMachine
	renderer *Renderer
	strip    led.Strip
	metrics  *observe.Metrics

	frame []int16
	ticks uint64

	// Sticky enhanced-level selection: once the front end has produced one
	// enhanced (or estimated) result, rendering prefers that path.
	enhanced      ChannelLevels
	enhancedValid bool

	alertShown bool
	closed     bool

	// lastTick is the wall-clock nanosecond stamp of the last completed
	// tick, readable from other goroutines for readiness probes.
	lastTick atomic.Int64

	captureLog *observe.RateLimiter
}

// New wires a pipeline. engine may be nil, which disables the wake-word
// capability entirely: the scheduler then skips the feed/fetch and wake
// steps and renders raw levels forever.
func New(cfg Config, source audio.Source, engine frontend.Engine, strip led.Strip, metrics *observe.Metrics) *Pipeline {
	cfg = cfg.withDefaults()

	p := &Pipeline{
		cfg:        cfg,
		source:     source,
		strip:      strip,
		renderer:   NewRenderer(strip, cfg.Renderer, metrics),
		metrics:    metrics,
		frame:      make([]int16, cfg.FrameSamples()),
		captureLog: observe.NewRateLimiter(errorLogInterval),
	}
	if engine != nil {
		p.adapter = NewAdapter(engine, cfg.FrameSamples(), metrics)
		p.wake = NewWakeMachine(cfg.Cooldown, cfg.AlertDuration)
	}
	return p
}

// Tick runs one scheduling cycle at time now. Capture trouble skips the
// tick; everything downstream of a successful capture always runs, so the
// LEDs are refreshed exactly once per completed tick.
func (p *Pipeline) Tick(ctx context.Context, now time.Time) {
	start := time.Now()
	defer func() {
		p.metrics.TickDuration.Record(ctx, time.Since(start).Seconds())
	}()

	n, err := p.source.ReadFrame(p.frame, p.cfg.CaptureTimeout)
	if err != nil {
		p.metrics.CaptureErrors.Add(ctx, 1)
		if suppressed, ok := p.captureLog.Allow(now); ok {
			slog.Warn("capture read failed", "err", err, "suppressed", suppressed)
		}
		return
	}
	if n == 0 {
		p.metrics.CaptureTimeouts.Add(ctx, 1)
		return
	}
	samples := p.frame[:n]

	raw := ComputeLevels(samples, p.cfg.Channels)
	p.metrics.FramesProcessed.Add(ctx, 1)
	p.ticks++
	p.lastTick.Store(now.UnixNano())

	if p.adapter != nil {
		res := p.adapter.ProcessTick(ctx, now, samples, raw)
		if res.HasEnhanced {
			p.enhanced = res.Enhanced
			p.enhancedValid = true
		}
		if res.Wake != nil {
			if p.wake.Observe(now, res.Wake) {
				p.metrics.RecordWakeDetection(ctx, res.Wake.WordIndex)
				slog.Info("wake word detected",
					"word_index", res.Wake.WordIndex,
					"channel", res.Wake.Channel,
				)
			} else {
				p.metrics.WakeSuppressed.Add(ctx, 1)
				slog.Debug("wake word suppressed by cooldown")
			}
		}
	}

	levels := raw
	if p.enhancedValid {
		levels = p.enhanced
	}

	var state WakeState
	if p.wake != nil {
		state = p.wake.State()
	}
	if state.Active != p.alertShown {
		if state.Active {
			p.metrics.AlertActive.Add(ctx, 1)
		} else {
			p.metrics.AlertActive.Add(ctx, -1)
		}
		p.alertShown = state.Active
	}

	p.renderer.Render(ctx, now, levels, state)

	if p.wake != nil && p.wake.Expire(now) {
		slog.Debug("wake alert expired")
	}

	if p.cfg.LevelLogEvery > 0 && p.ticks%uint64(p.cfg.LevelLogEvery) == 0 {
		slog.Debug("channel levels",
			"mic1", levels.Mic1,
			"mic2", levels.Mic2,
			"combined", levels.Combined,
			"provenance", levels.Provenance.String(),
		)
	}
}

// Run drives Tick at the configured cadence until ctx is done. The ticker
// (not a busy spin) owns the pacing; a tick that overruns delays the next
// one rather than stacking.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.FrameDuration)
	defer ticker.Stop()

	slog.Info("pipeline running",
		"sample_rate", p.cfg.SampleRate,
		"channels", p.cfg.Channels,
		"frame_duration", p.cfg.FrameDuration,
		"wake_enabled", p.adapter != nil,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			p.Tick(ctx, now)
		}
	}
}

// Chase runs the startup LED self-test animation.
func (p *Pipeline) Chase(ctx context.Context, step time.Duration) {
	p.renderer.Chase(ctx, step)
}

// SetBrightness updates the global LED brightness at runtime. Safe to call
// from any goroutine.
func (p *Pipeline) SetBrightness(b uint8) {
	p.renderer.SetBrightness(b)
}

// LastTick returns the time of the last completed tick, or the zero time if
// no tick has completed yet. Safe to call from any goroutine.
func (p *Pipeline) LastTick() time.Time {
	ns := p.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Close tears the pipeline down in order: capture source first so no new
// audio arrives, then the front end, then the LEDs are blanked and
// released. Safe to call twice.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.source.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.adapter != nil {
		if err := p.adapter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.renderer.Blank(); err != nil {
		errs = append(errs, err)
	}
	if err := p.strip.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
