package webhook

import (
	"context"
	"fmt"
	"strings"

	"go-qbsync/internal/connectors"
	sync_feature "go-qbsync/internal/features/sync"

	"go.uber.org/zap"
)

// entityTypeFor maps provider entity names to internal entity types
func entityTypeFor(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "customer":
		return connectors.EntityCustomer, true
	case "item":
		return connectors.EntityProduct, true
	case "invoice":
		return connectors.EntityInvoice, true
	}
	return "", false
}

func operationFor(op string) sync_feature.Operation {
	switch strings.ToLower(op) {
	case "create":
		return sync_feature.OperationCreate
	case "delete", "remove", "void":
		return sync_feature.OperationDelete
	default:
		return sync_feature.OperationUpdate
	}
}

type Service interface {
	Handle(ctx context.Context, rawPayload []byte, signature string) (*HandleResult, error)
}

type ServiceImpl struct {
	Verifier *Verifier
	Events   ProcessedEventRepository
	Executor sync_feature.Executor
	Log      *zap.Logger
}

func NewService(verifier *Verifier, events ProcessedEventRepository, executor sync_feature.Executor, log *zap.Logger) Service {
	return &ServiceImpl{
		Verifier: verifier,
		Events:   events,
		Executor: executor,
		Log:      log,
	}
}

// Handle runs the full delivery pipeline: authenticate, validate, dispatch.
// Boundary failures abort before anything touches the mapping store; entity
// failures after that point are isolated per entity.
func (s *ServiceImpl) Handle(ctx context.Context, rawPayload []byte, signature string) (*HandleResult, error) {
	if !s.Verifier.VerifySignature(rawPayload, signature) {
		return nil, ErrInvalidSignature
	}

	if !s.Verifier.ValidatePayload(rawPayload) {
		return nil, ErrInvalidPayload
	}

	if s.Verifier.IsTestWebhook(rawPayload) {
		s.Log.Info("acknowledged provider test webhook")
		return &HandleResult{}, nil
	}

	result := &HandleResult{}
	for _, event := range s.Verifier.ExtractEvents(rawPayload) {
		s.dispatchEvent(ctx, event, result)
		result.EventsProcessed++
	}
	return result, nil
}

func (s *ServiceImpl) dispatchEvent(ctx context.Context, event WebhookEvent, result *HandleResult) {
	for _, entity := range event.Entities {
		entityType, ok := entityTypeFor(entity.Name)
		if !ok {
			s.Log.Debug("ignoring webhook entity of unhandled type",
				zap.String("provider", connectors.ProviderQuickBooks),
				zap.String("entity", entity.Name))
			continue
		}

		key := s.Verifier.IdempotencyKey(event.RealmID, event.EventID, entity.ID)
		fresh, err := s.Events.MarkProcessed(ctx, &ProcessedEvent{
			Key:      key,
			RealmID:  event.RealmID,
			EventID:  event.EventID,
			EntityID: entity.ID,
		})
		if err != nil {
			result.EntityFailures++
			s.Log.Error("idempotency check failed",
				zap.String("provider", connectors.ProviderQuickBooks),
				zap.String("entity_id", entity.ID),
				zap.Error(err))
			continue
		}
		if !fresh {
			// Redelivery of an already-handled entity change
			result.EntitiesSkipped++
			continue
		}

		err = s.Executor.SyncEntity(ctx, connectors.ProviderQuickBooks, entityType, entity.ID, operationFor(entity.Operation))
		if err != nil {
			// One bad entity must not abort the rest of the delivery. The
			// marker is released so a redelivery of this event retries the
			// entity instead of skipping it.
			result.EntityFailures++
			s.Log.Error("webhook entity sync failed",
				zap.String("provider", connectors.ProviderQuickBooks),
				zap.String("operation", fmt.Sprintf("webhook_%s", strings.ToLower(entity.Operation))),
				zap.String("entity_id", entity.ID),
				zap.Error(err))
			if relErr := s.Events.Release(ctx, key); relErr != nil {
				s.Log.Error("failed to release idempotency marker",
					zap.String("entity_id", entity.ID),
					zap.Error(relErr))
			}
		}
	}
}
