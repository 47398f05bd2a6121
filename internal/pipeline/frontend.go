package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/Naptick/Naphome-Firmware-sub000/internal/observe"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend"
)

// errorLogInterval is the minimum spacing of repeated front-end error logs.
const errorLogInterval = 5 * time.Second

// FrontEndResult is the per-tick outcome of driving the front end.
type FrontEndResult struct {
	// Wake is the detection surfaced this tick, or nil.
	Wake *frontend.WakeEvent

	// Enhanced holds enhanced-calibration levels when HasEnhanced is true:
	// measured from processed audio if the engine exposes it, otherwise
	// estimated from the raw levels.
	Enhanced    ChannelLevels
	HasEnhanced bool
}

// Adapter bridges per-tick capture frames to a block-oriented
// frontend.Engine. It accumulates submissions in a bounded buffer and
// performs at most one feed and one fetch per tick, so per-tick cost stays
// constant and backlog spills into later ticks instead of a drain loop.
//
// Accumulator invariant: length never exceeds the engine's feed block size
// plus one maximum submission. Overflowing submissions lose their tail;
// fresh audio keeps flowing.
type Adapter struct {
	engine   frontend.Engine
	buf      []int16
	capacity int
	metrics  *observe.Metrics

	overflowLog *observe.RateLimiter
	feedLog     *observe.RateLimiter
	fetchLog    *observe.RateLimiter
}

// NewAdapter creates an adapter for engine. maxSubmission is the largest
// sample count a single Submit may carry (one capture frame); it sizes the
// accumulator bound.
func NewAdapter(engine frontend.Engine, maxSubmission int, metrics *observe.Metrics) *Adapter {
	capacity := engine.FeedBlockSize() + maxSubmission
	return &Adapter{
		engine:      engine,
		buf:         make([]int16, 0, capacity),
		capacity:    capacity,
		metrics:     metrics,
		overflowLog: observe.NewRateLimiter(errorLogInterval),
		feedLog:     observe.NewRateLimiter(errorLogInterval),
		fetchLog:    observe.NewRateLimiter(errorLogInterval),
	}
}

// ProcessTick submits one frame of samples, feeds at most one block, and
// polls at most one result. Feed and fetch failures degrade into "nothing
// this tick".
func (a *Adapter) ProcessTick(ctx context.Context, now time.Time, samples []int16, raw ChannelLevels) FrontEndResult {
	a.submit(ctx, now, samples)

	block := a.engine.FeedBlockSize()
	if len(a.buf) < block {
		return FrontEndResult{}
	}

	if err := a.engine.Feed(a.buf[:block]); err != nil {
		a.metrics.FeedErrors.Add(ctx, 1)
		if suppressed, ok := a.feedLog.Allow(now); ok {
			slog.Warn("front-end feed failed", "err", err, "suppressed", suppressed)
		}
		return FrontEndResult{}
	}
	a.buf = a.buf[:copy(a.buf, a.buf[block:])]

	res, err := a.engine.Fetch()
	if err != nil {
		a.metrics.FetchErrors.Add(ctx, 1)
		if suppressed, ok := a.fetchLog.Allow(now); ok {
			slog.Warn("front-end fetch failed", "err", err, "suppressed", suppressed)
		}
		return FrontEndResult{}
	}

	out := FrontEndResult{Wake: res.Wake, HasEnhanced: true}
	if len(res.Processed) > 0 {
		lv := ComputeLevels(res.Processed, a.engine.Channels())
		lv.Provenance = LevelEnhanced
		out.Enhanced = lv
	} else {
		out.Enhanced = estimateEnhanced(raw)
	}
	return out
}

// submit appends samples to the accumulator, dropping the tail of an
// overflowing submission.
func (a *Adapter) submit(ctx context.Context, now time.Time, samples []int16) {
	room := a.capacity - len(a.buf)
	if len(samples) > room {
		dropped := len(samples) - room
		samples = samples[:room]
		a.metrics.DroppedSamples.Add(ctx, int64(dropped))
		if suppressed, ok := a.overflowLog.Allow(now); ok {
			slog.Warn("front-end accumulator overflow, dropping samples",
				"dropped", dropped,
				"suppressed", suppressed,
			)
		}
	}
	a.buf = append(a.buf, samples...)
}

// Buffered returns the current accumulator length in samples.
func (a *Adapter) Buffered() int {
	return len(a.buf)
}

// Close releases the underlying engine.
func (a *Adapter) Close() error {
	return a.engine.Close()
}
