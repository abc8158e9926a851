package schedule

import (
	"time"

	"go-qbsync/internal/features/history"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ScheduleConfig holds per-provider schedule parameters. One document per
// provider; the manager owns it exclusively.
type ScheduleConfig struct {
	Provider          string     `json:"provider" bson:"provider"`
	Enabled           bool       `json:"enabled" bson:"enabled"`
	IntervalMinutes   int        `json:"interval_minutes" bson:"interval_minutes"`
	BusinessHoursOnly bool       `json:"business_hours_only" bson:"business_hours_only"`
	RetryAttempts     int        `json:"retry_attempts" bson:"retry_attempts"`
	Priority          Priority   `json:"priority" bson:"priority"`
	LastRun           *time.Time `json:"last_run,omitempty" bson:"last_run,omitempty"`
	NextRun           *time.Time `json:"next_run,omitempty" bson:"next_run,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at" bson:"updated_at"`
}

// PartialConfig carries an operator mutation; nil fields are left untouched
type PartialConfig struct {
	Enabled           *bool     `json:"enabled,omitempty"`
	IntervalMinutes   *int      `json:"interval_minutes,omitempty"`
	BusinessHoursOnly *bool     `json:"business_hours_only,omitempty"`
	RetryAttempts     *int      `json:"retry_attempts,omitempty"`
	Priority          *Priority `json:"priority,omitempty"`
}

// StatusReport is the aggregate the operator dashboard reads
type StatusReport struct {
	Schedules       []ScheduleConfig             `json:"schedules"`
	Recommendations []history.Recommendation     `json:"recommendations"`
	History         []history.Entry              `json:"sync_history"`
	Metrics         []history.PerformanceMetrics `json:"performance_metrics"`
}

func defaultConfig(provider string) *ScheduleConfig {
	return &ScheduleConfig{
		Provider:          provider,
		Enabled:           true,
		IntervalMinutes:   60,
		BusinessHoursOnly: false,
		RetryAttempts:     3,
		Priority:          PriorityMedium,
	}
}
