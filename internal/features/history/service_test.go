package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubSource struct {
	configs []ConfigInfo
	err     error
}

func (s *stubSource) Configs(ctx context.Context) ([]ConfigInfo, error) {
	return s.configs, s.err
}

// newBareEngine builds an engine without the background refresh worker so
// tests stay deterministic.
func newBareEngine(source ConfigSource) *Engine {
	return &Engine{
		recs:          make(map[string]map[RecommendationType]*Recommendation),
		source:        source,
		log:           zap.NewNop(),
		now:           time.Now,
		businessStart: 7,
		businessEnd:   19,
	}
}

// 2024-01-01 was a Monday, 2024-01-07 a Sunday
var (
	businessHour = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	offHour      = time.Date(2024, 1, 7, 3, 0, 0, 0, time.UTC)
)

func recordRuns(e *Engine, provider string, total, failures, volume int, ts time.Time) {
	for i := 0; i < total; i++ {
		e.Record(Entry{
			Provider:   provider,
			Timestamp:  ts,
			DurationMs: 1200,
			Success:    i >= failures,
			DataVolume: volume,
		})
	}
}

func TestAnalyzeRequiresMinimumSamples(t *testing.T) {
	source := &stubSource{configs: []ConfigInfo{{Provider: "quickbooks", IntervalMinutes: 60}}}
	e := newBareEngine(source)
	recordRuns(e, "quickbooks", 9, 9, 1, offHour)

	recs, err := e.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("9 samples must yield no recommendations, got %d", len(recs))
	}
}

func TestAnalyzePerformanceRecommendation(t *testing.T) {
	source := &stubSource{configs: []ConfigInfo{{Provider: "quickbooks", IntervalMinutes: 60}}}
	e := newBareEngine(source)
	// 3 failures in 12 runs: 75% success, below the 85% threshold
	recordRuns(e, "quickbooks", 12, 3, 20, offHour)

	recs, err := e.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly one recommendation, got %+v", recs)
	}

	rec := recs[0]
	if rec.Type != RecommendationPerformance {
		t.Errorf("type = %s, want %s", rec.Type, RecommendationPerformance)
	}
	if rec.RecommendedInterval != 90 {
		t.Errorf("recommended interval = %d, want 90 (1.5x current)", rec.RecommendedInterval)
	}
	if rec.Confidence < 60 || rec.Confidence > 80 {
		t.Errorf("confidence = %d, expected around 70 for a 10%% shortfall", rec.Confidence)
	}
	if rec.DataInsights.FailureRate != 0.25 {
		t.Errorf("failure rate = %v, want 0.25", rec.DataInsights.FailureRate)
	}
}

func TestAnalyzePerformanceIntervalFloor(t *testing.T) {
	source := &stubSource{configs: []ConfigInfo{{Provider: "quickbooks", IntervalMinutes: 10}}}
	e := newBareEngine(source)
	recordRuns(e, "quickbooks", 10, 5, 20, offHour)

	recs, err := e.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	for _, rec := range recs {
		if rec.Type == RecommendationPerformance {
			if rec.RecommendedInterval != 60 {
				t.Errorf("recommended interval = %d, want the 60-minute floor", rec.RecommendedInterval)
			}
			return
		}
	}
	t.Fatal("expected a performance recommendation")
}

func TestAnalyzeCostRecommendation(t *testing.T) {
	source := &stubSource{configs: []ConfigInfo{{Provider: "quickbooks", IntervalMinutes: 20}}}
	e := newBareEngine(source)
	recordRuns(e, "quickbooks", 10, 0, 2, offHour)

	recs, err := e.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly one recommendation, got %+v", recs)
	}

	rec := recs[0]
	if rec.Type != RecommendationCost {
		t.Errorf("type = %s, want %s", rec.Type, RecommendationCost)
	}
	if rec.RecommendedInterval != 40 {
		t.Errorf("recommended interval = %d, want 40 (doubled)", rec.RecommendedInterval)
	}
	if rec.Confidence != 60 {
		t.Errorf("confidence = %d, want 60", rec.Confidence)
	}
}

func TestAnalyzeFreshnessRecommendation(t *testing.T) {
	source := &stubSource{configs: []ConfigInfo{{Provider: "quickbooks", IntervalMinutes: 120}}}
	e := newBareEngine(source)
	recordRuns(e, "quickbooks", 10, 0, 80, offHour)

	recs, err := e.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly one recommendation, got %+v", recs)
	}

	rec := recs[0]
	if rec.Type != RecommendationInterval {
		t.Errorf("type = %s, want %s", rec.Type, RecommendationInterval)
	}
	if rec.RecommendedInterval != 60 {
		t.Errorf("recommended interval = %d, want 60 (halved)", rec.RecommendedInterval)
	}
}

func TestAnalyzeCostAndFreshnessAreDisjoint(t *testing.T) {
	// Mid-range volume on a short interval: neither predicate fires
	source := &stubSource{configs: []ConfigInfo{{Provider: "quickbooks", IntervalMinutes: 20}}}
	e := newBareEngine(source)
	recordRuns(e, "quickbooks", 10, 0, 25, offHour)

	recs, err := e.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("mid-range volume must yield no volume-based recommendation, got %+v", recs)
	}
}

func TestAnalyzeTimingRecommendation(t *testing.T) {
	source := &stubSource{configs: []ConfigInfo{{Provider: "quickbooks", IntervalMinutes: 60}}}
	e := newBareEngine(source)
	recordRuns(e, "quickbooks", 10, 0, 20, businessHour)

	recs, err := e.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly one recommendation, got %+v", recs)
	}

	rec := recs[0]
	if rec.Type != RecommendationTiming {
		t.Errorf("type = %s, want %s", rec.Type, RecommendationTiming)
	}
	if !rec.SuggestedBusinessHours {
		t.Error("timing recommendation must suggest the business-hours window")
	}
	if rec.Confidence != 100 {
		t.Errorf("confidence = %d, want 100 when all activity is in window", rec.Confidence)
	}
}

func TestAnalyzeTimingSuppressedWhenAlreadyGated(t *testing.T) {
	source := &stubSource{configs: []ConfigInfo{{Provider: "quickbooks", IntervalMinutes: 60, BusinessHoursOnly: true}}}
	e := newBareEngine(source)
	recordRuns(e, "quickbooks", 10, 0, 20, businessHour)

	recs, err := e.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	for _, rec := range recs {
		if rec.Type == RecommendationTiming {
			t.Error("no timing recommendation when the schedule is already business-hours gated")
		}
	}
}

func TestAnalyzeSourceFailure(t *testing.T) {
	e := newBareEngine(&stubSource{err: errors.New("db down")})
	if _, err := e.Analyze(context.Background()); err == nil {
		t.Error("a failing config source must propagate")
	}
}

func TestHistoryIsBounded(t *testing.T) {
	e := newBareEngine(&stubSource{})
	for i := 0; i < 250; i++ {
		e.Record(Entry{Provider: "quickbooks", Timestamp: offHour, DataVolume: i, Success: true})
	}

	entries := e.Entries("", 300)
	if len(entries) != 200 {
		t.Fatalf("history length = %d, want the 200 cap", len(entries))
	}
	if entries[0].DataVolume != 249 {
		t.Errorf("newest entry must come first, got volume %d", entries[0].DataVolume)
	}
	if entries[len(entries)-1].DataVolume != 50 {
		t.Errorf("oldest surviving entry should be the 51st, got volume %d", entries[len(entries)-1].DataVolume)
	}
}

func TestTakeConsumesRecommendation(t *testing.T) {
	source := &stubSource{configs: []ConfigInfo{{Provider: "quickbooks", IntervalMinutes: 60}}}
	e := newBareEngine(source)
	recordRuns(e, "quickbooks", 12, 3, 20, offHour)

	if _, err := e.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	rec, err := e.Take("quickbooks", RecommendationPerformance)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if rec.Provider != "quickbooks" {
		t.Errorf("unexpected recommendation: %+v", rec)
	}

	if _, err := e.Take("quickbooks", RecommendationPerformance); !errors.Is(err, ErrRecommendationNotFound) {
		t.Errorf("second take must fail with ErrRecommendationNotFound, got %v", err)
	}

	// The next analysis pass regenerates from the unchanged history
	if _, err := e.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if _, err := e.Take("quickbooks", RecommendationPerformance); err != nil {
		t.Errorf("regenerated recommendation should be takeable again: %v", err)
	}
}

func TestTakeUnknownProvider(t *testing.T) {
	e := newBareEngine(&stubSource{})
	if _, err := e.Take("netsuite", RecommendationCost); !errors.Is(err, ErrRecommendationNotFound) {
		t.Errorf("expected ErrRecommendationNotFound, got %v", err)
	}
}

func TestMetrics(t *testing.T) {
	e := newBareEngine(&stubSource{})
	durations := []int64{100, 200, 300, 400}
	for i, d := range durations {
		e.Record(Entry{Provider: "quickbooks", Timestamp: offHour, DurationMs: d, Success: i != 0, DataVolume: 10})
	}

	m := e.Metrics("quickbooks")
	if m.TotalRuns != 4 {
		t.Errorf("TotalRuns = %d, want 4", m.TotalRuns)
	}
	if m.SuccessRate != 0.75 {
		t.Errorf("SuccessRate = %v, want 0.75", m.SuccessRate)
	}
	if m.AvgDurationMs != 250 {
		t.Errorf("AvgDurationMs = %v, want 250", m.AvgDurationMs)
	}

	empty := e.Metrics("netsuite")
	if empty.TotalRuns != 0 || empty.SuccessRate != 0 {
		t.Errorf("unknown provider must report zeroes, got %+v", empty)
	}
}
