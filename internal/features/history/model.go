package history

import (
	"errors"
	"time"
)

// ErrRecommendationNotFound means the recommendation was regenerated away
// between listing and applying. Safe to re-fetch and retry.
var ErrRecommendationNotFound = errors.New("recommendation not found")

// Entry is one recorded sync execution outcome. Entries live in a bounded
// in-memory ring and only ever feed derived statistics.
type Entry struct {
	Provider     string    `json:"provider"`
	Timestamp    time.Time `json:"timestamp"`
	DurationMs   int64     `json:"duration_ms"`
	Success      bool      `json:"success"`
	DataVolume   int       `json:"data_volume"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

type RecommendationType string

const (
	RecommendationInterval    RecommendationType = "interval"
	RecommendationTiming      RecommendationType = "timing"
	RecommendationPerformance RecommendationType = "performance"
	RecommendationCost        RecommendationType = "cost_optimization"
)

// DataInsights carries the aggregates a recommendation was derived from
type DataInsights struct {
	AvgDataVolume float64  `json:"avg_data_volume"`
	PeakSyncTimes []string `json:"peak_sync_times"`
	FailureRate   float64  `json:"failure_rate"`
}

// Recommendation is a derived, non-authoritative schedule-tuning suggestion.
// The active set is regenerated wholesale on every analysis pass.
type Recommendation struct {
	Provider                 string             `json:"provider"`
	Type                     RecommendationType `json:"type"`
	RecommendedInterval      int                `json:"recommended_interval"`
	CurrentInterval          int                `json:"current_interval"`
	Reason                   string             `json:"reason"`
	Confidence               int                `json:"confidence"` // 0-100
	SuggestedBusinessHours   bool               `json:"suggested_business_hours"`
	EstimatedDurationMinutes int                `json:"estimated_duration_minutes"`
	DataInsights             DataInsights       `json:"data_insights"`
}

// PerformanceMetrics is the rolling per-provider view served to the dashboard
type PerformanceMetrics struct {
	Provider      string  `json:"provider"`
	TotalRuns     int     `json:"total_runs"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	P95DurationMs float64 `json:"p95_duration_ms"`
	AvgDataVolume float64 `json:"avg_data_volume"`
}

// ConfigInfo is the slice of schedule configuration the analyzer needs.
// Defined here so the engine stays decoupled from the schedule feature.
type ConfigInfo struct {
	Provider          string
	IntervalMinutes   int
	BusinessHoursOnly bool
}
