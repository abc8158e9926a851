package monitor

import "time"

type AlertKind string

const (
	AlertFailureRate      AlertKind = "failure_rate_breach"
	AlertProviderStalled  AlertKind = "provider_stalled"
	AlertDuplicateMapping AlertKind = "duplicate_mapping"
	AlertWebhookFailure   AlertKind = "webhook_failure"
)

// Alert is a threshold breach or integrity conflict worth operator attention
type Alert struct {
	Kind     AlertKind `json:"kind"`
	Provider string    `json:"provider,omitempty"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Event is one observable occurrence streamed to dashboard subscribers
type Event struct {
	Type       string    `json:"type"` // "sync", "webhook", "alert"
	Provider   string    `json:"provider,omitempty"`
	Operation  string    `json:"operation,omitempty"`
	Success    bool      `json:"success"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}

// ProviderHealth is the per-provider slice of the health aggregate
type ProviderHealth struct {
	Provider      string    `json:"provider"`
	Status        string    `json:"status"` // "healthy", "degraded", "stalled"
	TotalRuns     int       `json:"total_runs"`
	TotalFailures int       `json:"total_failures"`
	FailureRate   float64   `json:"failure_rate"`
	AvgDurationMs int64     `json:"avg_duration_ms"`
	LastSuccess   time.Time `json:"last_success"`
	LastError     string    `json:"last_error,omitempty"`
}

// HealthReport is the cross-component health aggregate
type HealthReport struct {
	Status    string           `json:"status"`
	Providers []ProviderHealth `json:"providers"`
	Webhooks  WebhookHealth    `json:"webhooks"`
	Alerts    int              `json:"active_alerts"`
	CheckedAt time.Time        `json:"checked_at"`
}

type WebhookHealth struct {
	TotalDeliveries int     `json:"total_deliveries"`
	Failures        int     `json:"failures"`
	EventsProcessed int     `json:"events_processed"`
	AvgLatencyMs    int64   `json:"avg_latency_ms"`
	FailureRate     float64 `json:"failure_rate"`
}
