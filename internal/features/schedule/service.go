package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-qbsync/internal/config"
	"go-qbsync/internal/connectors"
	"go-qbsync/internal/features/history"
	"go-qbsync/internal/features/monitor"
	sync_feature "go-qbsync/internal/features/sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const runTimeout = 10 * time.Minute

type Manager interface {
	Start(ctx context.Context) error
	Stop() error
	StopProvider(provider string)
	StopAll()
	UpdateConfig(ctx context.Context, provider string, partial PartialConfig) (*ScheduleConfig, error)
	RunNow(provider string)
	ApplyRecommendation(ctx context.Context, provider string, recType history.RecommendationType) (*ScheduleConfig, error)
	Status(ctx context.Context) (*StatusReport, error)
}

// configSource adapts the config repository to history.ConfigSource so the
// analyzer can read schedule parameters without depending on the manager.
type configSource struct {
	repo ConfigRepository
}

func NewConfigSource(repo ConfigRepository) history.ConfigSource {
	return &configSource{repo: repo}
}

func (cs *configSource) Configs(ctx context.Context) ([]history.ConfigInfo, error) {
	schedules, err := cs.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]history.ConfigInfo, 0, len(schedules))
	for _, cfg := range schedules {
		infos = append(infos, history.ConfigInfo{
			Provider:          cfg.Provider,
			IntervalMinutes:   cfg.IntervalMinutes,
			BusinessHoursOnly: cfg.BusinessHoursOnly,
		})
	}
	return infos, nil
}

type ManagerImpl struct {
	repo     ConfigRepository
	executor sync_feature.Executor
	history  *history.Engine
	monitor  monitor.Service
	log      *zap.Logger

	businessStart int
	businessEnd   int

	scheduler *cron.Cron
	mu        sync.Mutex
	entries   map[string]cron.EntryID
	running   map[string]bool

	now        func() time.Time
	retryDelay time.Duration
}

func NewManager(repo ConfigRepository, executor sync_feature.Executor, hist *history.Engine, mon monitor.Service, cfg *config.Config, log *zap.Logger) Manager {
	return &ManagerImpl{
		repo:          repo,
		executor:      executor,
		history:       hist,
		monitor:       mon,
		log:           log,
		businessStart: cfg.BusinessHoursStart,
		businessEnd:   cfg.BusinessHoursEnd,
		scheduler:     cron.New(),
		entries:       make(map[string]cron.EntryID),
		running:       make(map[string]bool),
		now:           time.Now,
		retryDelay:    30 * time.Second,
	}
}

// Start loads enabled configs, arms a timer per provider and starts the
// shared cron runner. A missing config for a known connector is seeded with
// defaults so a fresh deployment schedules itself.
func (s *ManagerImpl) Start(ctx context.Context) error {
	if err := s.seedDefaults(ctx); err != nil {
		return err
	}

	configs, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("loading enabled schedules: %w", err)
	}

	for i := range configs {
		if err := s.arm(ctx, &configs[i]); err != nil {
			s.log.Error("failed to arm schedule",
				zap.String("provider", configs[i].Provider),
				zap.Error(err))
		}
	}

	s.scheduler.Start()
	s.log.Info("schedule manager started", zap.Int("providers", len(configs)))
	return nil
}

func (s *ManagerImpl) seedDefaults(ctx context.Context) error {
	existing, err := s.repo.Get(ctx, connectors.ProviderQuickBooks)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return s.repo.Upsert(ctx, defaultConfig(connectors.ProviderQuickBooks))
}

// Stop halts the cron runner. In-flight executions run to completion so no
// mapping write is abandoned mid-record.
func (s *ManagerImpl) Stop() error {
	stopped := s.scheduler.Stop()
	<-stopped.Done()
	return nil
}

// arm replaces the provider's timer with one reflecting cfg. Callers must not
// hold s.mu. Removal and re-add happen under the lock so no stale-interval
// tick can fire in between.
func (s *ManagerImpl) arm(ctx context.Context, cfg *ScheduleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[cfg.Provider]; ok {
		s.scheduler.Remove(id)
		delete(s.entries, cfg.Provider)
	}

	if !cfg.Enabled {
		return nil
	}

	provider := cfg.Provider
	spec := fmt.Sprintf("@every %dm", cfg.IntervalMinutes)
	id, err := s.scheduler.AddFunc(spec, func() {
		s.tick(provider)
	})
	if err != nil {
		return fmt.Errorf("registering schedule for %s: %w", provider, err)
	}
	s.entries[provider] = id

	next := s.now().Add(time.Duration(cfg.IntervalMinutes) * time.Minute)
	return s.repo.UpdateRunTimes(ctx, provider, nil, &next)
}

// tick is one scheduled firing for a provider. A tick arriving while the
// previous run is still executing is dropped, not queued.
func (s *ManagerImpl) tick(provider string) {
	s.mu.Lock()
	if s.running[provider] {
		s.mu.Unlock()
		s.log.Debug("tick skipped, sync already in flight", zap.String("provider", provider))
		return
	}
	s.running[provider] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, provider)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cfg, err := s.repo.Get(ctx, provider)
	if err != nil || cfg == nil {
		s.log.Error("tick could not load schedule config",
			zap.String("provider", provider), zap.Error(err))
		return
	}

	now := s.now()
	next := now.Add(time.Duration(cfg.IntervalMinutes) * time.Minute)

	if cfg.BusinessHoursOnly && !s.withinBusinessHours(now) {
		// Outside the window: not a failure, just reschedule
		s.log.Debug("tick skipped outside business hours", zap.String("provider", provider))
		_ = s.repo.UpdateRunTimes(ctx, provider, nil, &next)
		return
	}

	s.execute(ctx, cfg)
	_ = s.repo.UpdateRunTimes(ctx, provider, &now, &next)
}

// execute runs one sync pass with transport-failure retries and reports the
// outcome to history and monitoring regardless of result.
func (s *ManagerImpl) execute(ctx context.Context, cfg *ScheduleConfig) {
	provider := cfg.Provider
	start := s.now()

	result, err := s.executor.SyncProvider(ctx, provider)
	for attempt := 0; attempt < cfg.RetryAttempts && errors.Is(err, connectors.ErrProviderUnavailable); attempt++ {
		s.log.Warn("sync failed on transport, retrying",
			zap.String("provider", provider),
			zap.Int("attempt", attempt+1))
		time.Sleep(s.retryDelay)
		result, err = s.executor.SyncProvider(ctx, provider)
	}

	duration := s.now().Sub(start)

	volume := 0
	if result != nil {
		volume = result.RecordsProcessed
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	} else if result != nil && len(result.Errors) > 0 {
		errMsg = result.Errors[0].Message
	}

	s.history.Record(history.Entry{
		Provider:     provider,
		Timestamp:    start,
		DurationMs:   duration.Milliseconds(),
		Success:      err == nil,
		DataVolume:   volume,
		ErrorMessage: errMsg,
	})
	s.monitor.RecordSync(provider, "scheduled_sync", duration, err == nil, errMsg)

	if err != nil {
		s.log.Error("scheduled sync failed",
			zap.String("provider", provider),
			zap.String("operation", "scheduled_sync"),
			zap.Error(err))
	}
}

func (s *ManagerImpl) withinBusinessHours(t time.Time) bool {
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	hour := t.Hour()
	return hour >= s.businessStart && hour < s.businessEnd
}

// UpdateConfig merges an operator mutation and atomically restarts the timer
// under the new parameters.
func (s *ManagerImpl) UpdateConfig(ctx context.Context, provider string, partial PartialConfig) (*ScheduleConfig, error) {
	cfg, err := s.repo.Get(ctx, provider)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = defaultConfig(provider)
	}

	if partial.Enabled != nil {
		cfg.Enabled = *partial.Enabled
	}
	if partial.IntervalMinutes != nil {
		if *partial.IntervalMinutes < 1 {
			return nil, fmt.Errorf("interval must be at least 1 minute")
		}
		cfg.IntervalMinutes = *partial.IntervalMinutes
	}
	if partial.BusinessHoursOnly != nil {
		cfg.BusinessHoursOnly = *partial.BusinessHoursOnly
	}
	if partial.RetryAttempts != nil {
		if *partial.RetryAttempts < 0 {
			return nil, fmt.Errorf("retry attempts cannot be negative")
		}
		cfg.RetryAttempts = *partial.RetryAttempts
	}
	if partial.Priority != nil {
		switch *partial.Priority {
		case PriorityLow, PriorityMedium, PriorityHigh:
			cfg.Priority = *partial.Priority
		default:
			return nil, fmt.Errorf("invalid priority: %s", *partial.Priority)
		}
	}

	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, err
	}

	if err := s.arm(ctx, cfg); err != nil {
		return nil, err
	}

	s.log.Info("schedule config updated",
		zap.String("provider", provider),
		zap.Int("interval_minutes", cfg.IntervalMinutes),
		zap.Bool("enabled", cfg.Enabled))
	return cfg, nil
}

// RunNow triggers an immediate out-of-band sync, bypassing business-hours
// gating but still respecting the one-in-flight rule.
func (s *ManagerImpl) RunNow(provider string) {
	go func() {
		s.mu.Lock()
		if s.running[provider] {
			s.mu.Unlock()
			s.log.Info("manual sync skipped, already in flight", zap.String("provider", provider))
			return
		}
		s.running[provider] = true
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			delete(s.running, provider)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		cfg, err := s.repo.Get(ctx, provider)
		if err != nil || cfg == nil {
			s.log.Error("manual sync could not load schedule config",
				zap.String("provider", provider), zap.Error(err))
			return
		}

		now := s.now()
		s.execute(ctx, cfg)
		_ = s.repo.UpdateRunTimes(ctx, provider, &now, nil)
	}()
}

func (s *ManagerImpl) StopProvider(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[provider]; ok {
		s.scheduler.Remove(id)
		delete(s.entries, provider)
		s.log.Info("schedule stopped", zap.String("provider", provider))
	}
	// Stopping an already-stopped provider is a no-op
}

func (s *ManagerImpl) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for provider, id := range s.entries {
		s.scheduler.Remove(id)
		delete(s.entries, provider)
	}
}

// ApplyRecommendation consumes a still-current recommendation and forwards
// its suggestion into UpdateConfig.
func (s *ManagerImpl) ApplyRecommendation(ctx context.Context, provider string, recType history.RecommendationType) (*ScheduleConfig, error) {
	rec, err := s.history.Take(provider, recType)
	if err != nil {
		return nil, err
	}

	partial := PartialConfig{}
	if rec.RecommendedInterval > 0 {
		partial.IntervalMinutes = &rec.RecommendedInterval
	}
	if rec.Type == history.RecommendationTiming {
		partial.BusinessHoursOnly = &rec.SuggestedBusinessHours
	}

	return s.UpdateConfig(ctx, provider, partial)
}

// Status assembles the dashboard aggregate, refreshing recommendations first
// so the caller never acts on a stale set.
func (s *ManagerImpl) Status(ctx context.Context) (*StatusReport, error) {
	recs, err := s.history.Analyze(ctx)
	if err != nil {
		return nil, err
	}

	schedules, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		Schedules:       schedules,
		Recommendations: recs,
		History:         s.history.Entries("", 50),
	}
	for _, cfg := range schedules {
		report.Metrics = append(report.Metrics, s.history.Metrics(cfg.Provider))
	}
	return report, nil
}
