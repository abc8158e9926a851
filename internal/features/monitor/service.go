package monitor

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

const (
	recentRunsWindow     = 20
	failureRateMinRuns   = 5
	failureRateThreshold = 0.2
	stalledAfter         = time.Hour
	maxAlerts            = 100
)

type Service interface {
	RecordSync(provider, operation string, duration time.Duration, success bool, errMsg string)
	RecordWebhook(duration time.Duration, eventsProcessed int, success bool)
	RaiseAlert(kind AlertKind, provider, message string)
	Health() HealthReport
	Alerts() []Alert
	Subscribe(conn *websocket.Conn)
	Unsubscribe(conn *websocket.Conn)
}

type providerStats struct {
	recent        []bool // success flags, newest last, bounded
	firstSeen     time.Time
	lastSuccess   time.Time
	lastError     string
	totalRuns     int
	totalFailures int
	totalDuration time.Duration
	stalledRaised bool
}

type webhookStats struct {
	total         int
	failures      int
	events        int
	totalDuration time.Duration
}

type ServiceImpl struct {
	mu        sync.Mutex
	providers map[string]*providerStats
	webhooks  webhookStats
	alerts    []Alert
	subs      map[*websocket.Conn]bool
	log       *zap.Logger
	now       func() time.Time
}

func NewService(log *zap.Logger) Service {
	return &ServiceImpl{
		providers: make(map[string]*providerStats),
		subs:      make(map[*websocket.Conn]bool),
		log:       log,
		now:       time.Now,
	}
}

func (s *ServiceImpl) RecordSync(provider, operation string, duration time.Duration, success bool, errMsg string) {
	s.mu.Lock()

	stats, ok := s.providers[provider]
	if !ok {
		stats = &providerStats{firstSeen: s.now()}
		s.providers[provider] = stats
	}

	stats.totalRuns++
	stats.totalDuration += duration
	stats.recent = append(stats.recent, success)
	if len(stats.recent) > recentRunsWindow {
		stats.recent = stats.recent[1:]
	}

	now := s.now()
	if success {
		stats.lastSuccess = now
		stats.lastError = ""
		stats.stalledRaised = false
	} else {
		stats.totalFailures++
		stats.lastError = errMsg
	}

	var breached, stalled bool
	if !success {
		breached = recentFailureRate(stats.recent) > failureRateThreshold && len(stats.recent) >= failureRateMinRuns
		anchor := stats.lastSuccess
		if anchor.IsZero() {
			anchor = stats.firstSeen
		}
		stalled = !stats.stalledRaised && now.Sub(anchor) > stalledAfter
		if stalled {
			stats.stalledRaised = true
		}
	}
	s.mu.Unlock()

	s.broadcast(Event{
		Type:       "sync",
		Provider:   provider,
		Operation:  operation,
		Success:    success,
		DurationMs: duration.Milliseconds(),
		Message:    errMsg,
		At:         now,
	})

	if breached {
		s.RaiseAlert(AlertFailureRate, provider, "failure rate above 20% over recent runs")
	}
	if stalled {
		s.RaiseAlert(AlertProviderStalled, provider, "no successful sync in over an hour")
	}
}

func (s *ServiceImpl) RecordWebhook(duration time.Duration, eventsProcessed int, success bool) {
	s.mu.Lock()
	s.webhooks.total++
	s.webhooks.events += eventsProcessed
	s.webhooks.totalDuration += duration
	if !success {
		s.webhooks.failures++
	}
	now := s.now()
	s.mu.Unlock()

	s.broadcast(Event{
		Type:       "webhook",
		Success:    success,
		DurationMs: duration.Milliseconds(),
		At:         now,
	})
}

func (s *ServiceImpl) RaiseAlert(kind AlertKind, provider, message string) {
	alert := Alert{
		Kind:     kind,
		Provider: provider,
		Message:  message,
		At:       s.now(),
	}

	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > maxAlerts {
		s.alerts = s.alerts[len(s.alerts)-maxAlerts:]
	}
	s.mu.Unlock()

	s.log.Warn("alert raised",
		zap.String("kind", string(kind)),
		zap.String("provider", provider),
		zap.String("operation", message))

	s.broadcast(Event{
		Type:     "alert",
		Provider: provider,
		Message:  string(kind) + ": " + message,
		At:       alert.At,
	})
}

func (s *ServiceImpl) Health() HealthReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	report := HealthReport{
		Status:    "healthy",
		CheckedAt: now,
		Alerts:    len(s.alerts),
	}

	for name, stats := range s.providers {
		ph := ProviderHealth{
			Provider:      name,
			Status:        "healthy",
			TotalRuns:     stats.totalRuns,
			TotalFailures: stats.totalFailures,
			LastSuccess:   stats.lastSuccess,
			LastError:     stats.lastError,
		}
		if stats.totalRuns > 0 {
			ph.FailureRate = float64(stats.totalFailures) / float64(stats.totalRuns)
			ph.AvgDurationMs = (stats.totalDuration / time.Duration(stats.totalRuns)).Milliseconds()
		}

		// A provider that has never succeeded is measured from its first
		// observed run, so a fresh failure is degraded rather than stalled.
		anchor := stats.lastSuccess
		if anchor.IsZero() {
			anchor = stats.firstSeen
		}

		switch {
		case stats.totalRuns > 0 && now.Sub(anchor) > stalledAfter:
			ph.Status = "stalled"
		case len(stats.recent) >= failureRateMinRuns && recentFailureRate(stats.recent) > failureRateThreshold:
			ph.Status = "degraded"
		}

		if ph.Status == "stalled" {
			report.Status = "stalled"
		} else if ph.Status == "degraded" && report.Status == "healthy" {
			report.Status = "degraded"
		}

		report.Providers = append(report.Providers, ph)
	}

	report.Webhooks = WebhookHealth{
		TotalDeliveries: s.webhooks.total,
		Failures:        s.webhooks.failures,
		EventsProcessed: s.webhooks.events,
	}
	if s.webhooks.total > 0 {
		report.Webhooks.AvgLatencyMs = (s.webhooks.totalDuration / time.Duration(s.webhooks.total)).Milliseconds()
		report.Webhooks.FailureRate = float64(s.webhooks.failures) / float64(s.webhooks.total)
	}

	return report
}

func (s *ServiceImpl) Alerts() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	// newest first
	out := make([]Alert, len(s.alerts))
	for i, a := range s.alerts {
		out[len(s.alerts)-1-i] = a
	}
	return out
}

func (s *ServiceImpl) Subscribe(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[conn] = true
}

func (s *ServiceImpl) Unsubscribe(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, conn)
}

func (s *ServiceImpl) broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.subs {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(s.subs, conn)
		}
	}
}

func recentFailureRate(recent []bool) float64 {
	if len(recent) == 0 {
		return 0
	}
	failures := 0
	for _, ok := range recent {
		if !ok {
			failures++
		}
	}
	return float64(failures) / float64(len(recent))
}
