package history

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go-qbsync/internal/config"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

const (
	historyCap        = 200
	minSampleSize     = 10
	refreshInterval   = 30 * time.Minute
	successThreshold  = 0.85
	lowVolumeBound    = 5.0
	highVolumeBound   = 50.0
	shortIntervalMax  = 30
	longIntervalMin   = 60
	slowRunAbsolute   = 5 * time.Minute
	timingMajority    = 0.8
	minRecommendedGap = 60 // floor for performance-driven interval increases
)

// ConfigSource exposes current schedule parameters to the analyzer
type ConfigSource interface {
	Configs(ctx context.Context) ([]ConfigInfo, error)
}

// Engine owns the bounded execution history and the derived recommendation
// set. Single writer (the scheduler reports through Record); analysis runs
// periodically, after interesting entries, and on demand before status reads.
type Engine struct {
	mu      sync.Mutex
	entries []Entry
	recs    map[string]map[RecommendationType]*Recommendation

	source ConfigSource
	log    *zap.Logger
	now    func() time.Time

	businessStart int
	businessEnd   int

	refresh chan struct{}
	done    chan struct{}
}

func NewEngine(source ConfigSource, cfg *config.Config, log *zap.Logger) *Engine {
	e := &Engine{
		recs:          make(map[string]map[RecommendationType]*Recommendation),
		source:        source,
		log:           log,
		now:           time.Now,
		businessStart: cfg.BusinessHoursStart,
		businessEnd:   cfg.BusinessHoursEnd,
		refresh:       make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	go e.worker()
	return e
}

func (e *Engine) worker() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.refresh:
		case <-ticker.C:
		case <-e.done:
			return
		}

		if _, err := e.Analyze(context.Background()); err != nil {
			e.log.Warn("recommendation refresh failed", zap.Error(err))
		}
	}
}

func (e *Engine) Close() {
	close(e.done)
}

// Record appends an execution outcome. Failures, unusually slow runs and
// unusually large runs trigger an out-of-band recommendation refresh.
func (e *Engine) Record(entry Entry) {
	e.mu.Lock()

	interesting := !entry.Success ||
		time.Duration(entry.DurationMs)*time.Millisecond > slowRunAbsolute

	if !interesting {
		meanDur, meanVol := e.providerMeansLocked(entry.Provider)
		if meanDur > 0 && float64(entry.DurationMs) > 2*meanDur {
			interesting = true
		}
		if meanVol > 0 && float64(entry.DataVolume) > 2*meanVol {
			interesting = true
		}
	}

	e.entries = append(e.entries, entry)
	if len(e.entries) > historyCap {
		e.entries = e.entries[len(e.entries)-historyCap:]
	}
	e.mu.Unlock()

	if interesting {
		select {
		case e.refresh <- struct{}{}:
		default:
		}
	}
}

func (e *Engine) providerMeansLocked(provider string) (meanDurationMs, meanVolume float64) {
	var durations, volumes []float64
	for _, entry := range e.entries {
		if entry.Provider == provider {
			durations = append(durations, float64(entry.DurationMs))
			volumes = append(volumes, float64(entry.DataVolume))
		}
	}
	if len(durations) == 0 {
		return 0, 0
	}
	meanDurationMs, _ = stats.Mean(durations)
	meanVolume, _ = stats.Mean(volumes)
	return meanDurationMs, meanVolume
}

// Entries returns recent history, newest first, optionally filtered by provider
func (e *Engine) Entries(provider string, limit int) []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	out := make([]Entry, 0, limit)
	for i := len(e.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if provider == "" || e.entries[i].Provider == provider {
			out = append(out, e.entries[i])
		}
	}
	return out
}

// Analyze regenerates the recommendation set from scratch. Providers with
// fewer than minSampleSize entries yield nothing rather than a low-confidence
// guess. The returned slice is sorted by confidence descending.
func (e *Engine) Analyze(ctx context.Context) ([]Recommendation, error) {
	configs, err := e.source.Configs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading schedule configs: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fresh := make(map[string]map[RecommendationType]*Recommendation)
	var out []Recommendation

	for _, cfg := range configs {
		recs := e.analyzeProviderLocked(cfg)
		if len(recs) == 0 {
			continue
		}
		fresh[cfg.Provider] = make(map[RecommendationType]*Recommendation, len(recs))
		for i := range recs {
			fresh[cfg.Provider][recs[i].Type] = &recs[i]
			out = append(out, recs[i])
		}
	}

	e.recs = fresh

	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

func (e *Engine) analyzeProviderLocked(cfg ConfigInfo) []Recommendation {
	var durations, volumes []float64
	var failures int
	hourCounts := make(map[int]int)
	inWindow := 0
	total := 0

	for _, entry := range e.entries {
		if entry.Provider != cfg.Provider {
			continue
		}
		total++
		durations = append(durations, float64(entry.DurationMs))
		volumes = append(volumes, float64(entry.DataVolume))
		if !entry.Success {
			failures++
		}
		hour := entry.Timestamp.Hour()
		hourCounts[hour]++
		wd := entry.Timestamp.Weekday()
		if wd >= time.Monday && wd <= time.Friday && hour >= e.businessStart && hour < e.businessEnd {
			inWindow++
		}
	}

	if total < minSampleSize {
		return nil
	}

	successRate := float64(total-failures) / float64(total)
	avgVolume, _ := stats.Mean(volumes)
	avgDuration, _ := stats.Mean(durations)

	insights := DataInsights{
		AvgDataVolume: avgVolume,
		PeakSyncTimes: peakHours(hourCounts),
		FailureRate:   float64(failures) / float64(total),
	}
	estimated := int(math.Ceil(avgDuration / 60000.0))

	var recs []Recommendation

	if successRate < successThreshold {
		shortfall := successThreshold - successRate
		confidence := 50 + int(shortfall*200)
		if confidence > 95 {
			confidence = 95
		}
		recommended := int(float64(cfg.IntervalMinutes) * 1.5)
		if recommended < minRecommendedGap {
			recommended = minRecommendedGap
		}
		recs = append(recs, Recommendation{
			Provider:                 cfg.Provider,
			Type:                     RecommendationPerformance,
			RecommendedInterval:      recommended,
			CurrentInterval:          cfg.IntervalMinutes,
			Reason:                   fmt.Sprintf("success rate %.0f%% is below the 85%% threshold; a longer interval reduces load on a struggling provider", successRate*100),
			Confidence:               confidence,
			SuggestedBusinessHours:   cfg.BusinessHoursOnly,
			EstimatedDurationMinutes: estimated,
			DataInsights:             insights,
		})
	}

	// Cost and freshness predicates sit on disjoint volume ranges; the middle
	// range emits neither.
	if avgVolume < lowVolumeBound && cfg.IntervalMinutes <= shortIntervalMax {
		recommended := cfg.IntervalMinutes * 2
		if recommended > 240 {
			recommended = 240
		}
		recs = append(recs, Recommendation{
			Provider:                 cfg.Provider,
			Type:                     RecommendationCost,
			RecommendedInterval:      recommended,
			CurrentInterval:          cfg.IntervalMinutes,
			Reason:                   fmt.Sprintf("average volume is %.1f records per sync; a %d-minute interval wastes provider API quota", avgVolume, cfg.IntervalMinutes),
			Confidence:               60,
			SuggestedBusinessHours:   cfg.BusinessHoursOnly,
			EstimatedDurationMinutes: estimated,
			DataInsights:             insights,
		})
	} else if avgVolume > highVolumeBound && cfg.IntervalMinutes >= longIntervalMin {
		recommended := cfg.IntervalMinutes / 2
		if recommended < 15 {
			recommended = 15
		}
		recs = append(recs, Recommendation{
			Provider:                 cfg.Provider,
			Type:                     RecommendationInterval,
			RecommendedInterval:      recommended,
			CurrentInterval:          cfg.IntervalMinutes,
			Reason:                   fmt.Sprintf("average volume is %.0f records per sync; data is accumulating between runs", avgVolume),
			Confidence:               65,
			SuggestedBusinessHours:   cfg.BusinessHoursOnly,
			EstimatedDurationMinutes: estimated,
			DataInsights:             insights,
		})
	}

	if !cfg.BusinessHoursOnly {
		share := float64(inWindow) / float64(total)
		if share >= timingMajority {
			recs = append(recs, Recommendation{
				Provider:                 cfg.Provider,
				Type:                     RecommendationTiming,
				RecommendedInterval:      cfg.IntervalMinutes,
				CurrentInterval:          cfg.IntervalMinutes,
				Reason:                   fmt.Sprintf("%.0f%% of observed activity already falls inside business hours", share*100),
				Confidence:               int(share * 100),
				SuggestedBusinessHours:   true,
				EstimatedDurationMinutes: estimated,
				DataInsights:             insights,
			})
		}
	}

	return recs
}

func peakHours(hourCounts map[int]int) []string {
	type hc struct {
		hour  int
		count int
	}
	all := make([]hc, 0, len(hourCounts))
	for h, c := range hourCounts {
		all = append(all, hc{h, c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].hour < all[j].hour
	})

	peaks := make([]string, 0, 2)
	for i := 0; i < len(all) && i < 2; i++ {
		peaks = append(peaks, fmt.Sprintf("%02d:00", all[i].hour))
	}
	return peaks
}

// Recommendations returns the current derived set, sorted by confidence
func (e *Engine) Recommendations() []Recommendation {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Recommendation
	for _, byType := range e.recs {
		for _, rec := range byType {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// Take removes and returns the still-current recommendation for
// (provider, type). A refresh that ran since the caller listed it makes the
// lookup fail with ErrRecommendationNotFound.
func (e *Engine) Take(provider string, recType RecommendationType) (*Recommendation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	byType, ok := e.recs[provider]
	if !ok {
		return nil, ErrRecommendationNotFound
	}
	rec, ok := byType[recType]
	if !ok {
		return nil, ErrRecommendationNotFound
	}

	delete(byType, recType)
	if len(byType) == 0 {
		delete(e.recs, provider)
	}
	out := *rec
	return &out, nil
}

// Metrics computes the rolling per-provider performance view
func (e *Engine) Metrics(provider string) PerformanceMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	var durations, volumes []float64
	successes := 0
	total := 0
	for _, entry := range e.entries {
		if entry.Provider != provider {
			continue
		}
		total++
		durations = append(durations, float64(entry.DurationMs))
		volumes = append(volumes, float64(entry.DataVolume))
		if entry.Success {
			successes++
		}
	}

	m := PerformanceMetrics{Provider: provider, TotalRuns: total}
	if total == 0 {
		return m
	}

	m.SuccessRate = float64(successes) / float64(total)
	m.AvgDurationMs, _ = stats.Mean(durations)
	m.P95DurationMs, _ = stats.Percentile(durations, 95)
	m.AvgDataVolume, _ = stats.Mean(volumes)
	return m
}
