package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Naptick/Naphome-Firmware-sub000/internal/observe"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/led"
)

// RendererConfig places the three channel indicators on the strip and sets
// the global brightness ceiling.
type RendererConfig struct {
	Mic1Index     int
	Mic2Index     int
	CombinedIndex int

	// Brightness is the global 0–255 scale applied to level-driven colors.
	Brightness uint8
}

// Renderer draws one LED frame per tick: either the solid wake alert or the
// three level-driven channel indicators, with every other pixel off. The
// hardware palette is fixed — mic1 blue, mic2 green, combined red, alert
// white.
//
// The pipeline tick goroutine is the only caller of Render; SetBrightness
// may additionally be called from any goroutine.
type Renderer struct {
	strip   led.Strip
	cfg     RendererConfig
	metrics *observe.Metrics

	brightness atomic.Uint32

	refreshLog *observe.RateLimiter
}

// NewRenderer creates a renderer for strip.
func NewRenderer(strip led.Strip, cfg RendererConfig, metrics *observe.Metrics) *Renderer {
	r := &Renderer{
		strip:      strip,
		cfg:        cfg,
		metrics:    metrics,
		refreshLog: observe.NewRateLimiter(errorLogInterval),
	}
	r.brightness.Store(uint32(cfg.Brightness))
	return r
}

// SetBrightness updates the global brightness ceiling, taking effect on the
// next rendered frame.
func (r *Renderer) SetBrightness(b uint8) {
	r.brightness.Store(uint32(b))
}

// Render draws the frame for one tick and always finishes with a refresh.
// Refresh failures are counted and rate-limit-logged; the next tick retries
// naturally.
func (r *Renderer) Render(ctx context.Context, now time.Time, levels ChannelLevels, state WakeState) {
	_ = r.strip.Clear()

	if state.Active {
		_ = r.strip.SetPixel(r.cfg.Mic1Index, 255, 255, 255)
		_ = r.strip.SetPixel(r.cfg.Mic2Index, 255, 255, 255)
		_ = r.strip.SetPixel(r.cfg.CombinedIndex, 255, 255, 255)
	} else {
		global := uint8(r.brightness.Load())
		b1 := ScaleBrightness(MapLevel(levels.Mic1, levels.Provenance), global)
		b2 := ScaleBrightness(MapLevel(levels.Mic2, levels.Provenance), global)
		b3 := ScaleBrightness(MapLevel(levels.Combined, levels.Provenance), global)
		_ = r.strip.SetPixel(r.cfg.Mic1Index, 0, 0, b1)
		_ = r.strip.SetPixel(r.cfg.Mic2Index, 0, b2, 0)
		_ = r.strip.SetPixel(r.cfg.CombinedIndex, b3, 0, 0)
	}

	if err := r.strip.Refresh(); err != nil {
		r.metrics.LedWriteErrors.Add(ctx, 1)
		if suppressed, ok := r.refreshLog.Allow(now); ok {
			slog.Warn("LED refresh failed", "err", err, "suppressed", suppressed)
		}
	}
}

// Chase runs the startup self-test animation: a single dim white pixel
// walking the strip once, then a blank frame. Errors are ignored — the
// animation is cosmetic.
func (r *Renderer) Chase(ctx context.Context, step time.Duration) {
	for i := 0; i < r.strip.Len(); i++ {
		_ = r.strip.Clear()
		_ = r.strip.SetPixel(i, 40, 40, 40)
		_ = r.strip.Refresh()

		select {
		case <-ctx.Done():
			_ = r.strip.Clear()
			_ = r.strip.Refresh()
			return
		case <-time.After(step):
		}
	}
	_ = r.strip.Clear()
	_ = r.strip.Refresh()
}

// Blank pushes an all-off frame, used during shutdown before the strip is
// released.
func (r *Renderer) Blank() error {
	if err := r.strip.Clear(); err != nil {
		return err
	}
	return r.strip.Refresh()
}
