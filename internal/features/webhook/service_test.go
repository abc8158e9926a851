package webhook

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go-qbsync/internal/config"
	sync_feature "go-qbsync/internal/features/sync"

	"go.uber.org/zap"
)

type fakeEventRepo struct {
	seen map[string]bool
	err  error
}

func (f *fakeEventRepo) MarkProcessed(ctx context.Context, event *ProcessedEvent) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[event.Key] {
		return false, nil
	}
	f.seen[event.Key] = true
	return true, nil
}

func (f *fakeEventRepo) Release(ctx context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.seen, key)
	return nil
}

func (f *fakeEventRepo) EnsureIndexes(ctx context.Context) error { return nil }

type fakeExecutor struct {
	calls   []string
	failIDs map[string]error
}

func (f *fakeExecutor) Sync(ctx context.Context, provider, entityType string, direction sync_feature.Direction) (*sync_feature.SyncResult, error) {
	return &sync_feature.SyncResult{}, nil
}

func (f *fakeExecutor) SyncProvider(ctx context.Context, provider string) (*sync_feature.SyncResult, error) {
	return &sync_feature.SyncResult{}, nil
}

func (f *fakeExecutor) SyncEntity(ctx context.Context, provider, entityType, externalID string, op sync_feature.Operation) error {
	f.calls = append(f.calls, fmt.Sprintf("%s/%s/%s/%s", provider, entityType, externalID, op))
	if err, ok := f.failIDs[externalID]; ok {
		return err
	}
	return nil
}

func newTestService(executor *fakeExecutor, repo *fakeEventRepo) Service {
	verifier := NewVerifier(&config.Config{QBOWebhookSecret: ""}, zap.NewNop())
	return NewService(verifier, repo, executor, zap.NewNop())
}

func TestHandleDispatchesEachEntity(t *testing.T) {
	executor := &fakeExecutor{}
	svc := newTestService(executor, &fakeEventRepo{})

	result, err := svc.Handle(context.Background(), []byte(validPayload), "")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if result.EventsProcessed != 1 {
		t.Errorf("EventsProcessed = %d, want 1", result.EventsProcessed)
	}
	if len(executor.calls) != 2 {
		t.Fatalf("expected 2 entity syncs, got %d: %v", len(executor.calls), executor.calls)
	}
	if executor.calls[0] != "quickbooks/customer/101/update" {
		t.Errorf("unexpected first dispatch: %s", executor.calls[0])
	}
	if executor.calls[1] != "quickbooks/invoice/202/create" {
		t.Errorf("unexpected second dispatch: %s", executor.calls[1])
	}
}

func TestHandleRedeliverySkipsProcessedEntities(t *testing.T) {
	executor := &fakeExecutor{}
	repo := &fakeEventRepo{}
	svc := newTestService(executor, repo)

	if _, err := svc.Handle(context.Background(), []byte(validPayload), ""); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	result, err := svc.Handle(context.Background(), []byte(validPayload), "")
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if result.EntitiesSkipped != 2 {
		t.Errorf("EntitiesSkipped = %d, want 2", result.EntitiesSkipped)
	}
	if len(executor.calls) != 2 {
		t.Errorf("redelivery must not dispatch again, got %d calls", len(executor.calls))
	}
}

func TestHandleEntityFailureIsIsolated(t *testing.T) {
	executor := &fakeExecutor{failIDs: map[string]error{"101": errors.New("provider exploded")}}
	svc := newTestService(executor, &fakeEventRepo{})

	result, err := svc.Handle(context.Background(), []byte(validPayload), "")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if result.EntityFailures != 1 {
		t.Errorf("EntityFailures = %d, want 1", result.EntityFailures)
	}
	// The invoice after the failing customer still gets dispatched
	if len(executor.calls) != 2 {
		t.Errorf("expected both entities dispatched, got %d", len(executor.calls))
	}
}

func TestHandleFailedEntityRetriedOnRedelivery(t *testing.T) {
	executor := &fakeExecutor{failIDs: map[string]error{"101": errors.New("rate limited")}}
	repo := &fakeEventRepo{}
	svc := newTestService(executor, repo)

	result, err := svc.Handle(context.Background(), []byte(validPayload), "")
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if result.EntityFailures != 1 {
		t.Fatalf("EntityFailures = %d, want 1", result.EntityFailures)
	}

	// The provider retries the delivery once the transient failure clears.
	executor.failIDs = nil
	result, err = svc.Handle(context.Background(), []byte(validPayload), "")
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if result.EntitiesSkipped != 1 {
		t.Errorf("EntitiesSkipped = %d, want 1 (the entity that already succeeded)", result.EntitiesSkipped)
	}
	if result.EntityFailures != 0 {
		t.Errorf("EntityFailures = %d, want 0", result.EntityFailures)
	}
	want := "quickbooks/customer/101/update"
	if executor.calls[len(executor.calls)-1] != want {
		t.Errorf("redelivery must retry the failed entity, calls = %v", executor.calls)
	}
	if len(executor.calls) != 3 {
		t.Errorf("expected 3 dispatches in total, got %d: %v", len(executor.calls), executor.calls)
	}
}

func TestHandleInvalidSignature(t *testing.T) {
	verifier := NewVerifier(&config.Config{QBOWebhookSecret: "real-secret"}, zap.NewNop())
	svc := NewService(verifier, &fakeEventRepo{}, &fakeExecutor{}, zap.NewNop())

	_, err := svc.Handle(context.Background(), []byte(validPayload), "sha256=bm9wZQ==")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestHandleInvalidPayload(t *testing.T) {
	svc := newTestService(&fakeExecutor{}, &fakeEventRepo{})

	_, err := svc.Handle(context.Background(), []byte(`{"eventNotifications": [{"eventId": "1"}]}`), "")
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestHandleTestWebhookShortCircuits(t *testing.T) {
	executor := &fakeExecutor{}
	svc := newTestService(executor, &fakeEventRepo{})

	result, err := svc.Handle(context.Background(), []byte(testPayload), "")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if result.EventsProcessed != 0 || len(executor.calls) != 0 {
		t.Error("test delivery must acknowledge without dispatching")
	}
}

func TestHandleDeleteOperation(t *testing.T) {
	executor := &fakeExecutor{}
	svc := newTestService(executor, &fakeEventRepo{})

	payload := `{"eventNotifications": [{"realmId": "r", "eventName": "DataChangeEvent", "eventId": "evt-9",
		"dataChangeEvent": {"entities": [{"name": "Item", "id": "303", "operation": "Delete"}]}}]}`

	if _, err := svc.Handle(context.Background(), []byte(payload), ""); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(executor.calls) != 1 || executor.calls[0] != "quickbooks/product/303/delete" {
		t.Errorf("unexpected dispatch: %v", executor.calls)
	}
}

func TestHandleUnknownEntityTypeIgnored(t *testing.T) {
	executor := &fakeExecutor{}
	svc := newTestService(executor, &fakeEventRepo{})

	payload := `{"eventNotifications": [{"realmId": "r", "eventName": "DataChangeEvent", "eventId": "evt-10",
		"dataChangeEvent": {"entities": [{"name": "Payment", "id": "404", "operation": "Create"}]}}]}`

	result, err := svc.Handle(context.Background(), []byte(payload), "")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(executor.calls) != 0 {
		t.Errorf("unhandled entity types must not dispatch, got %v", executor.calls)
	}
	if result.EntityFailures != 0 {
		t.Errorf("ignoring an entity is not a failure")
	}
}
