package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"

	"go-qbsync/internal/config"

	"go.uber.org/zap"
)

// Verifier authenticates inbound webhook deliveries and derives idempotency
// keys. Stateless; safe for concurrent use.
type Verifier struct {
	secret []byte
	log    *zap.Logger
}

func NewVerifier(cfg *config.Config, log *zap.Logger) *Verifier {
	if cfg.QBOWebhookSecret == "" {
		log.Warn("QBO_WEBHOOK_SECRET is not set: webhook signature verification is DISABLED. Never run production like this.")
	}
	return &Verifier{
		secret: []byte(cfg.QBOWebhookSecret),
		log:    log,
	}
}

// VerifySignature computes HMAC-SHA256 over the raw payload bytes and
// compares in constant time. Accepts base64 (the provider's encoding) or hex
// signatures, with or without a "sha256=" prefix.
func (v *Verifier) VerifySignature(rawPayload []byte, providedSignature string) bool {
	if len(v.secret) == 0 {
		// Development-mode relaxation; announced at startup and on every pass
		v.log.Warn("accepting webhook without signature verification; no QBO_WEBHOOK_SECRET configured")
		return true
	}

	sig := strings.TrimPrefix(strings.TrimSpace(providedSignature), "sha256=")
	if sig == "" {
		return false
	}

	// A 64-char hex digest is also syntactically valid base64, so base64 only
	// counts when it yields a full digest; anything else falls back to hex.
	provided, err := base64.StdEncoding.DecodeString(sig)
	if err != nil || len(provided) != sha256.Size {
		provided, err = hex.DecodeString(sig)
		if err != nil {
			return false
		}
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawPayload)
	expected := mac.Sum(nil)

	return subtle.ConstantTimeCompare(expected, provided) == 1
}

// ValidatePayload checks the wire structure before any business logic runs:
// a notification list must exist, every notification needs realm id, event
// name and event id, and every entity change needs a type name, id and
// operation.
func (v *Verifier) ValidatePayload(rawPayload []byte) bool {
	var payload notificationPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return false
	}
	if payload.EventNotifications == nil {
		return false
	}

	for _, n := range payload.EventNotifications {
		if n.RealmID == "" || n.EventName == "" || n.EventID == "" {
			return false
		}
		for _, e := range n.DataChangeEvent.Entities {
			if e.Name == "" || e.ID == "" || e.Operation == "" {
				return false
			}
		}
	}
	return true
}

// ExtractEvents is a pure transformation of the wire payload into engine
// events. Tolerant of missing optional fields; callers validate first.
func (v *Verifier) ExtractEvents(rawPayload []byte) []WebhookEvent {
	var payload notificationPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return nil
	}

	events := make([]WebhookEvent, 0, len(payload.EventNotifications))
	for _, n := range payload.EventNotifications {
		events = append(events, WebhookEvent{
			RealmID:   n.RealmID,
			EventName: n.EventName,
			EventID:   n.EventID,
			Entities:  n.DataChangeEvent.Entities,
		})
	}
	return events
}

// IdempotencyKey fingerprints one (delivery, entity) pair. Deterministic:
// identical inputs always yield the identical key.
func (v *Verifier) IdempotencyKey(realmID, eventID, entityID string) string {
	sum := sha256.Sum256([]byte(realmID + ":" + eventID + ":" + entityID))
	return hex.EncodeToString(sum[:])
}

// IsTestWebhook recognizes the provider's synthetic test delivery: valid
// notifications that carry no entity changes at all.
func (v *Verifier) IsTestWebhook(rawPayload []byte) bool {
	var payload notificationPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return false
	}
	if len(payload.EventNotifications) == 0 {
		return false
	}
	for _, n := range payload.EventNotifications {
		if len(n.DataChangeEvent.Entities) > 0 {
			return false
		}
	}
	return true
}
