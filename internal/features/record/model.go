package record

import (
	"time"
)

// Record is an internal business record as the sync engine sees it: an opaque
// field bag plus sync bookkeeping. The CRUD surface that edits these lives
// elsewhere; the engine only reads fields wholesale and flips status flags.
type Record struct {
	InternalID string                 `json:"internal_id" bson:"internal_id"`
	EntityType string                 `json:"entity_type" bson:"entity_type"`
	Fields     map[string]interface{} `json:"fields" bson:"fields"`
	Active     bool                   `json:"active" bson:"active"`
	SyncStatus string                 `json:"sync_status" bson:"sync_status"` // "synced", "pending", "error"
	SyncError  string                 `json:"sync_error,omitempty" bson:"sync_error,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at" bson:"updated_at"`
}
