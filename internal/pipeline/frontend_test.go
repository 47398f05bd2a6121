package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Naptick/Naphome-Firmware-sub000/internal/observe"
	"github.com/Naptick/Naphome-Firmware-sub000/internal/pipeline"
	"github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend"
	frontendmock "github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend/mock"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader so
// tests can assert on counter values.
func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// counterValue sums all data points of the named int64 counter. Returns 0
// when the metric has not been recorded yet.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

// tickSamples builds a frame of n constant-amplitude samples.
func tickSamples(n int, amp int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = amp
	}
	return s
}

func TestAdapter_SingleFeedPerTick(t *testing.T) {
	// Fifteen 30-sample submissions against a 320-sample block: exactly one
	// feed happens (on the tick that crosses 320), 130 samples stay
	// buffered, nothing is lost.
	m, reader := newTestMetrics(t)
	eng := frontendmock.NewEngine(320, 2)
	a := pipeline.NewAdapter(eng, 30, m)
	ctx := context.Background()
	now := time.Unix(1000, 0)

	for i := 0; i < 15; i++ {
		a.ProcessTick(ctx, now.Add(time.Duration(i)*20*time.Millisecond), tickSamples(30, 100), pipeline.ChannelLevels{})
	}

	if got := eng.FeedCount(); got != 1 {
		t.Fatalf("feed count = %d, want 1", got)
	}
	if got := len(eng.Fed[0]); got != 320 {
		t.Errorf("fed block size = %d, want 320", got)
	}
	if got := a.Buffered(); got != 130 {
		t.Errorf("buffered = %d, want 130", got)
	}
	if got := counterValue(t, reader, "naphome.frontend.dropped_samples"); got != 0 {
		t.Errorf("dropped samples = %d, want 0", got)
	}
}

func TestAdapter_BoundHoldsUnderFeedFailure(t *testing.T) {
	// With the engine refusing feeds, the accumulator must cap at
	// block + max submission and drop the excess.
	m, reader := newTestMetrics(t)
	eng := frontendmock.NewEngine(320, 2)
	eng.FailFeed(errors.New("engine wedged"))
	a := pipeline.NewAdapter(eng, 30, m)
	ctx := context.Background()
	now := time.Unix(1000, 0)

	const bound = 320 + 30
	for i := 0; i < 20; i++ {
		a.ProcessTick(ctx, now.Add(time.Duration(i)*20*time.Millisecond), tickSamples(30, 100), pipeline.ChannelLevels{})
		if got := a.Buffered(); got > bound {
			t.Fatalf("tick %d: buffered = %d, exceeds bound %d", i, got, bound)
		}
	}

	if got := a.Buffered(); got != bound {
		t.Errorf("buffered = %d, want %d", got, bound)
	}
	// 20 × 30 submitted, the bound retained, the rest dropped.
	if got := counterValue(t, reader, "naphome.frontend.dropped_samples"); got != 600-bound {
		t.Errorf("dropped samples = %d, want %d", got, 600-bound)
	}
	if got := counterValue(t, reader, "naphome.frontend.feed_errors"); got == 0 {
		t.Error("feed errors not counted")
	}
}

func TestAdapter_FetchErrorMeansNoResult(t *testing.T) {
	m, reader := newTestMetrics(t)
	eng := frontendmock.NewEngine(40, 2)
	eng.FailFetch(errors.New("fetch backend down"))
	a := pipeline.NewAdapter(eng, 40, m)

	res := a.ProcessTick(context.Background(), time.Unix(1000, 0), tickSamples(40, 100), pipeline.ChannelLevels{})
	if res.HasEnhanced || res.Wake != nil {
		t.Errorf("result = %+v, want empty", res)
	}
	if got := counterValue(t, reader, "naphome.frontend.fetch_errors"); got != 1 {
		t.Errorf("fetch errors = %d, want 1", got)
	}
	// The block was still consumed by the successful feed.
	if got := a.Buffered(); got != 0 {
		t.Errorf("buffered = %d, want 0", got)
	}
}

func TestAdapter_ProcessedAudioYieldsEnhancedLevels(t *testing.T) {
	m, _ := newTestMetrics(t)
	eng := frontendmock.NewEngine(40, 2)
	eng.ScriptResult(1, frontend.Result{Processed: tickSamples(40, 2000)})
	a := pipeline.NewAdapter(eng, 40, m)

	raw := pipeline.ChannelLevels{Mic1: 10, Mic2: 10, Combined: 10, Provenance: pipeline.LevelRaw}
	res := a.ProcessTick(context.Background(), time.Unix(1000, 0), tickSamples(40, 100), raw)

	if !res.HasEnhanced {
		t.Fatal("no enhanced levels")
	}
	if res.Enhanced.Provenance != pipeline.LevelEnhanced {
		t.Errorf("provenance = %v, want enhanced", res.Enhanced.Provenance)
	}
	if res.Enhanced.Combined != 2000 {
		t.Errorf("Combined = %v, want 2000 (measured from processed audio)", res.Enhanced.Combined)
	}
}

func TestAdapter_NoProcessedAudioEstimatesFromRaw(t *testing.T) {
	m, _ := newTestMetrics(t)
	eng := frontendmock.NewEngine(40, 2)
	a := pipeline.NewAdapter(eng, 40, m)

	raw := pipeline.ChannelLevels{Mic1: 10, Mic2: 20, Combined: 15, Provenance: pipeline.LevelRaw}
	res := a.ProcessTick(context.Background(), time.Unix(1000, 0), tickSamples(40, 100), raw)

	if !res.HasEnhanced {
		t.Fatal("no enhanced levels")
	}
	if res.Enhanced.Provenance != pipeline.LevelEnhancedEstimated {
		t.Errorf("provenance = %v, want enhanced_estimated", res.Enhanced.Provenance)
	}
	if res.Enhanced.Mic1 != 300 || res.Enhanced.Mic2 != 600 || res.Enhanced.Combined != 450 {
		t.Errorf("estimated levels = %+v, want raw × 30", res.Enhanced)
	}
}

func TestAdapter_WakeEventSurfaces(t *testing.T) {
	m, _ := newTestMetrics(t)
	eng := frontendmock.NewEngine(40, 2)
	eng.ScriptResult(3, frontend.Result{Wake: &frontend.WakeEvent{WordIndex: 1}})
	a := pipeline.NewAdapter(eng, 40, m)
	ctx := context.Background()
	now := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		res := a.ProcessTick(ctx, now, tickSamples(40, 100), pipeline.ChannelLevels{})
		if i < 2 && res.Wake != nil {
			t.Fatalf("tick %d: unexpected wake event", i)
		}
		if i == 2 {
			if res.Wake == nil {
				t.Fatal("wake event did not surface on the scripted feed")
			}
			if res.Wake.WordIndex != 1 {
				t.Errorf("WordIndex = %d, want 1", res.Wake.WordIndex)
			}
		}
	}
}
