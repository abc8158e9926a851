package connectors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Entity types the engine synchronizes
const (
	EntityCustomer = "customer"
	EntityProduct  = "product"
	EntityInvoice  = "invoice"
)

// EntityTypes lists every entity type a provider sync pass covers
var EntityTypes = []string{EntityCustomer, EntityProduct, EntityInvoice}

// ErrProviderUnavailable marks transient provider failures (network, 5xx).
// Callers may retry the whole pass.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrProviderRejected marks terminal per-record failures (4xx, validation).
// The record is flagged and skipped; automatic retries are pointless.
var ErrProviderRejected = errors.New("provider rejected request")

// ExternalRecord is one record as the provider holds it. Fields are opaque to
// the engine; field-level mapping is the connector's concern.
type ExternalRecord struct {
	ID          string
	Fields      map[string]interface{}
	Deleted     bool
	LastUpdated time.Time
}

// Provider abstracts the external accounting system behind pull/push calls.
type Provider interface {
	Name() string

	// FetchAll returns the provider's current collection for the entity type.
	FetchAll(ctx context.Context, entityType string) ([]ExternalRecord, error)

	// FetchOne returns a single record by its external id.
	FetchOne(ctx context.Context, entityType string, externalID string) (*ExternalRecord, error)

	// Create pushes a new record and returns the external id assigned by the provider.
	Create(ctx context.Context, entityType string, fields map[string]interface{}) (string, error)

	// Update pushes changed fields onto an existing external record.
	Update(ctx context.Context, entityType string, externalID string, fields map[string]interface{}) error
}

// Registry resolves provider names to connectors
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(qbo *QuickBooksConnector) *Registry {
	return NewRegistryFrom(qbo)
}

// NewRegistryFrom builds a registry over an explicit provider set
func NewRegistryFrom(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
