package webhook

import (
	"errors"
	"time"
)

// ErrInvalidSignature rejects a delivery whose HMAC does not match
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrInvalidPayload rejects a structurally malformed delivery
var ErrInvalidPayload = errors.New("invalid webhook payload")

// EntityChange is one entity-level change inside a notification
type EntityChange struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Operation   string `json:"operation"` // "create", "update", "delete"
	LastUpdated string `json:"lastUpdated,omitempty"`
}

// WebhookEvent is one provider notification, transient for the duration of a
// single handler invocation
type WebhookEvent struct {
	RealmID   string         `json:"realm_id"`
	EventName string         `json:"event_name"`
	EventID   string         `json:"event_id"`
	Entities  []EntityChange `json:"entities"`
}

// ProcessedEvent is the durable idempotency marker for one (event, entity)
// pair. Unique key index + TTL expiry.
type ProcessedEvent struct {
	Key         string    `json:"key" bson:"key"`
	RealmID     string    `json:"realm_id" bson:"realm_id"`
	EventID     string    `json:"event_id" bson:"event_id"`
	EntityID    string    `json:"entity_id,omitempty" bson:"entity_id,omitempty"`
	ProcessedAt time.Time `json:"processed_at" bson:"processed_at"`
}

// HandleResult summarizes one webhook delivery
type HandleResult struct {
	EventsProcessed int `json:"events_processed"`
	EntitiesSkipped int `json:"entities_skipped"`
	EntityFailures  int `json:"entity_failures"`
}

// notificationPayload mirrors the provider's wire shape
type notificationPayload struct {
	EventNotifications []eventNotification `json:"eventNotifications"`
}

type eventNotification struct {
	RealmID         string `json:"realmId"`
	EventName       string `json:"eventName"`
	EventID         string `json:"eventId"`
	DataChangeEvent struct {
		Entities []EntityChange `json:"entities"`
	} `json:"dataChangeEvent"`
}
