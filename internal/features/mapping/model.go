package mapping

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SyncStatus string

const (
	StatusSynced  SyncStatus = "synced"
	StatusPending SyncStatus = "pending"
	StatusError   SyncStatus = "error"
	StatusDeleted SyncStatus = "deleted"
)

// ErrMappingNotFound is returned by lookups with no matching row
var ErrMappingNotFound = errors.New("mapping not found")

// ErrDuplicateMapping signals a data-integrity conflict: either half of the
// (provider, entity_type) key space already holds the internal or external id.
var ErrDuplicateMapping = errors.New("duplicate mapping")

// ExternalMapping associates an internal entity with its id in an external
// provider. Within one (provider, entity_type) partition the association is a
// bijection: one row per internal id and one row per external id.
type ExternalMapping struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Provider   string             `json:"provider" bson:"provider"`
	EntityType string             `json:"entity_type" bson:"entity_type"`
	InternalID string             `json:"internal_id" bson:"internal_id"`
	ExternalID string             `json:"external_id" bson:"external_id"`
	LastSyncAt time.Time          `json:"last_sync_at" bson:"last_sync_at"`
	SyncStatus SyncStatus         `json:"sync_status" bson:"sync_status"`
	SyncError  string             `json:"sync_error,omitempty" bson:"sync_error,omitempty"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}
