package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-qbsync/internal/connectors"
	"go-qbsync/internal/features/mapping"
	"go-qbsync/internal/features/monitor"
	"go-qbsync/internal/features/record"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Executor performs pull and push passes against a provider. Both the
// scheduler and the webhook handler funnel into it so polled and event-driven
// changes take the identical code path.
type Executor interface {
	Sync(ctx context.Context, provider, entityType string, direction Direction) (*SyncResult, error)
	SyncProvider(ctx context.Context, provider string) (*SyncResult, error)
	SyncEntity(ctx context.Context, provider, entityType, externalID string, op Operation) error
}

type ExecutorImpl struct {
	MappingRepo mapping.Repository
	RecordRepo  record.Repository
	Registry    *connectors.Registry
	Monitor     monitor.Service
	Log         *zap.Logger
}

func NewExecutor(mappingRepo mapping.Repository, recordRepo record.Repository, registry *connectors.Registry, mon monitor.Service, log *zap.Logger) Executor {
	return &ExecutorImpl{
		MappingRepo: mappingRepo,
		RecordRepo:  recordRepo,
		Registry:    registry,
		Monitor:     mon,
		Log:         log,
	}
}

// SyncProvider runs a bidirectional pass over every entity type
func (s *ExecutorImpl) SyncProvider(ctx context.Context, provider string) (*SyncResult, error) {
	total := &SyncResult{Provider: provider, Direction: DirectionBidirectional, Errors: []RecordError{}}

	for _, entityType := range connectors.EntityTypes {
		result, err := s.Sync(ctx, provider, entityType, DirectionBidirectional)
		if err != nil {
			total.merge(result)
			return total, err
		}
		total.merge(result)
	}
	return total, nil
}

func (s *ExecutorImpl) Sync(ctx context.Context, provider, entityType string, direction Direction) (*SyncResult, error) {
	conn, err := s.Registry.Get(provider)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{
		Provider:   provider,
		EntityType: entityType,
		Direction:  direction,
		Errors:     []RecordError{},
	}

	switch direction {
	case DirectionPull:
		err = s.pull(ctx, conn, entityType, result)
	case DirectionPush:
		err = s.push(ctx, conn, entityType, result)
	case DirectionBidirectional:
		if err = s.pull(ctx, conn, entityType, result); err == nil {
			err = s.push(ctx, conn, entityType, result)
		}
	default:
		err = fmt.Errorf("unknown sync direction: %s", direction)
	}

	if err != nil {
		return result, err
	}
	return result, nil
}

// pull fetches the provider's collection and applies it record by record.
// Remote state always wins; re-running a pull with no provider-side change is
// a no-op on the mapping store.
func (s *ExecutorImpl) pull(ctx context.Context, conn connectors.Provider, entityType string, result *SyncResult) error {
	records, err := conn.FetchAll(ctx, entityType)
	if err != nil {
		return fmt.Errorf("fetching %s collection from %s: %w", entityType, conn.Name(), err)
	}

	for _, remote := range records {
		if err := s.applyRemote(ctx, conn.Name(), entityType, remote); err != nil {
			result.Errors = append(result.Errors, RecordError{EntityID: remote.ID, Message: err.Error()})
			continue
		}
		result.RecordsProcessed++
	}
	return nil
}

// applyRemote applies one remote record onto the internal store. Shared by
// full pulls and single-entity webhook dispatch.
func (s *ExecutorImpl) applyRemote(ctx context.Context, provider, entityType string, remote connectors.ExternalRecord) error {
	if remote.Deleted {
		return s.deactivate(ctx, provider, entityType, remote.ID)
	}

	now := time.Now()

	m, err := s.MappingRepo.FindByExternalID(ctx, provider, entityType, remote.ID)
	if err != nil && !errors.Is(err, mapping.ErrMappingNotFound) {
		return err
	}

	if m == nil {
		// First sight of this external record: create the internal record and
		// its mapping. A concurrent create for the same entity loses on the
		// unique index and falls back to the update path below.
		internalID := uuid.NewString()
		m = &mapping.ExternalMapping{
			Provider:   provider,
			EntityType: entityType,
			InternalID: internalID,
			ExternalID: remote.ID,
			SyncStatus: mapping.StatusSynced,
			LastSyncAt: now,
		}
		if err := s.MappingRepo.Create(ctx, m); err != nil {
			if !errors.Is(err, mapping.ErrDuplicateMapping) {
				return err
			}
			s.Monitor.RaiseAlert(monitor.AlertDuplicateMapping, provider,
				fmt.Sprintf("concurrent mapping create for %s %s", entityType, remote.ID))
			m, err = s.MappingRepo.FindByExternalID(ctx, provider, entityType, remote.ID)
			if err != nil {
				return fmt.Errorf("resolving mapping after duplicate create: %w", err)
			}
		}
	}

	rec := &record.Record{
		InternalID: m.InternalID,
		EntityType: entityType,
		Fields:     remote.Fields,
		Active:     true,
		SyncStatus: "synced",
	}
	if err := s.RecordRepo.Upsert(ctx, rec); err != nil {
		return err
	}

	return s.MappingRepo.UpdateSyncState(ctx, m, mapping.StatusSynced, "", now)
}

// deactivate handles a provider-side deletion: the internal record goes
// inactive and the mapping is marked deleted, never removed.
func (s *ExecutorImpl) deactivate(ctx context.Context, provider, entityType, externalID string) error {
	m, err := s.MappingRepo.FindByExternalID(ctx, provider, entityType, externalID)
	if errors.Is(err, mapping.ErrMappingNotFound) {
		// Never seen this record; nothing to deactivate
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.RecordRepo.Deactivate(ctx, entityType, m.InternalID); err != nil {
		return err
	}
	return s.MappingRepo.UpdateSyncState(ctx, m, mapping.StatusDeleted, "", time.Now())
}

// push sends unsynced internal records to the provider. One bad record never
// aborts the batch; provider failures mark the record and move on.
func (s *ExecutorImpl) push(ctx context.Context, conn connectors.Provider, entityType string, result *SyncResult) error {
	records, err := s.RecordRepo.ListUnsynced(ctx, entityType)
	if err != nil {
		return fmt.Errorf("listing unsynced %s records: %w", entityType, err)
	}

	provider := conn.Name()
	unavailable := 0

	for i := range records {
		rec := &records[i]

		m, err := s.MappingRepo.FindByInternalID(ctx, provider, entityType, rec.InternalID)
		if err != nil && !errors.Is(err, mapping.ErrMappingNotFound) {
			result.Errors = append(result.Errors, RecordError{EntityID: rec.InternalID, Message: err.Error()})
			continue
		}

		var pushErr error
		if m != nil {
			pushErr = s.pushUpdate(ctx, conn, entityType, rec, m)
		} else {
			pushErr = s.pushCreate(ctx, conn, entityType, rec)
		}

		if pushErr != nil {
			if errors.Is(pushErr, connectors.ErrProviderUnavailable) {
				unavailable++
			}
			_ = s.RecordRepo.SetSyncStatus(ctx, entityType, rec.InternalID, "error", pushErr.Error())
			result.Errors = append(result.Errors, RecordError{EntityID: rec.InternalID, Message: pushErr.Error()})
			continue
		}

		result.RecordsProcessed++
	}

	if unavailable > 0 {
		return fmt.Errorf("%d of %d %s records failed on transport: %w",
			unavailable, len(records), entityType, connectors.ErrProviderUnavailable)
	}
	return nil
}

func (s *ExecutorImpl) pushUpdate(ctx context.Context, conn connectors.Provider, entityType string, rec *record.Record, m *mapping.ExternalMapping) error {
	now := time.Now()

	if err := conn.Update(ctx, entityType, m.ExternalID, rec.Fields); err != nil {
		_ = s.MappingRepo.UpdateSyncState(ctx, m, mapping.StatusError, err.Error(), now)
		return err
	}

	if err := s.MappingRepo.UpdateSyncState(ctx, m, mapping.StatusSynced, "", now); err != nil {
		return err
	}
	return s.RecordRepo.SetSyncStatus(ctx, entityType, rec.InternalID, "synced", "")
}

func (s *ExecutorImpl) pushCreate(ctx context.Context, conn connectors.Provider, entityType string, rec *record.Record) error {
	provider := conn.Name()

	externalID, err := conn.Create(ctx, entityType, rec.Fields)
	if err != nil {
		// No mapping is created on failure; a later retry must not find a
		// half-written association and turn the next create into a duplicate.
		return err
	}

	now := time.Now()
	m := &mapping.ExternalMapping{
		Provider:   provider,
		EntityType: entityType,
		InternalID: rec.InternalID,
		ExternalID: externalID,
		SyncStatus: mapping.StatusSynced,
		LastSyncAt: now,
	}
	if err := s.MappingRepo.Create(ctx, m); err != nil {
		if !errors.Is(err, mapping.ErrDuplicateMapping) {
			return err
		}
		// A concurrent path created the mapping between our lookup and the
		// provider call. Alert on the integrity conflict, keep the existing row.
		s.Monitor.RaiseAlert(monitor.AlertDuplicateMapping, provider,
			fmt.Sprintf("concurrent mapping create for %s %s", entityType, rec.InternalID))
		existing, findErr := s.MappingRepo.FindByInternalID(ctx, provider, entityType, rec.InternalID)
		if findErr != nil {
			return fmt.Errorf("resolving mapping after duplicate create: %w", findErr)
		}
		if err := s.MappingRepo.UpdateSyncState(ctx, existing, mapping.StatusSynced, "", now); err != nil {
			return err
		}
	}

	return s.RecordRepo.SetSyncStatus(ctx, entityType, rec.InternalID, "synced", "")
}

// SyncEntity is the webhook-driven single-entity path. Same semantics as a
// pull, scoped to one external id.
func (s *ExecutorImpl) SyncEntity(ctx context.Context, provider, entityType, externalID string, op Operation) error {
	conn, err := s.Registry.Get(provider)
	if err != nil {
		return err
	}

	if op == OperationDelete {
		return s.deactivate(ctx, provider, entityType, externalID)
	}

	remote, err := conn.FetchOne(ctx, entityType, externalID)
	if err != nil {
		return fmt.Errorf("fetching %s %s from %s: %w", entityType, externalID, provider, err)
	}

	return s.applyRemote(ctx, provider, entityType, *remote)
}
