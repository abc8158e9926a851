package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"go-qbsync/internal/config"

	"go.uber.org/zap"
)

func newTestVerifier(secret string) *Verifier {
	return NewVerifier(&config.Config{QBOWebhookSecret: secret}, zap.NewNop())
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

const validPayload = `{
	"eventNotifications": [{
		"realmId": "1234567890",
		"eventName": "DataChangeEvent",
		"eventId": "evt-001",
		"dataChangeEvent": {
			"entities": [
				{"name": "Customer", "id": "101", "operation": "Update"},
				{"name": "Invoice", "id": "202", "operation": "Create"}
			]
		}
	}]
}`

const testPayload = `{
	"eventNotifications": [{
		"realmId": "1234567890",
		"eventName": "DataChangeEvent",
		"eventId": "evt-test",
		"dataChangeEvent": {"entities": []}
	}]
}`

func TestVerifySignature(t *testing.T) {
	secret := "webhook-verifier-token"
	v := newTestVerifier(secret)
	payload := []byte(validPayload)
	good := sign(secret, payload)

	tests := []struct {
		name      string
		signature string
		want      bool
	}{
		{"valid base64", good, true},
		{"valid with sha256 prefix", "sha256=" + good, true},
		{"wrong secret", sign("other-secret", payload), false},
		{"empty signature", "", false},
		{"garbage signature", "!!not-base64-or-hex!!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.VerifySignature(payload, tt.signature); got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifySignatureHexEncoding(t *testing.T) {
	secret := "webhook-verifier-token"
	v := newTestVerifier(secret)
	payload := []byte(validPayload)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	hexSig := hex.EncodeToString(mac.Sum(nil))

	if !v.VerifySignature(payload, hexSig) {
		t.Error("hex-encoded signature should verify")
	}
}

func TestVerifySignatureTamperedPayload(t *testing.T) {
	secret := "webhook-verifier-token"
	v := newTestVerifier(secret)
	payload := []byte(validPayload)
	good := sign(secret, payload)

	tampered := make([]byte, len(payload))
	copy(tampered, payload)
	tampered[len(tampered)/2] ^= 0x01

	if v.VerifySignature(tampered, good) {
		t.Error("signature over original payload must not verify a tampered one")
	}
}

func TestVerifySignatureEmptySecretAllowsAll(t *testing.T) {
	v := newTestVerifier("")
	if !v.VerifySignature([]byte(validPayload), "anything") {
		t.Error("empty secret should disable verification")
	}
	if !v.VerifySignature([]byte(validPayload), "") {
		t.Error("empty secret should disable verification even with no signature")
	}
}

func TestValidatePayload(t *testing.T) {
	v := newTestVerifier("s")

	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"valid", validPayload, true},
		{"test notification", testPayload, true},
		{"not json", "{not json", false},
		{"missing notifications", `{"something": "else"}`, false},
		{"missing realm id", `{"eventNotifications": [{"eventName": "e", "eventId": "1"}]}`, false},
		{"entity without id", `{"eventNotifications": [{"realmId": "r", "eventName": "e", "eventId": "1",
			"dataChangeEvent": {"entities": [{"name": "Customer", "operation": "Update"}]}}]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.ValidatePayload([]byte(tt.payload)); got != tt.want {
				t.Errorf("ValidatePayload() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractEvents(t *testing.T) {
	v := newTestVerifier("s")

	events := v.ExtractEvents([]byte(validPayload))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.RealmID != "1234567890" || ev.EventID != "evt-001" {
		t.Errorf("unexpected event identity: %+v", ev)
	}
	if len(ev.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(ev.Entities))
	}
	if ev.Entities[0].Name != "Customer" || ev.Entities[0].ID != "101" {
		t.Errorf("unexpected first entity: %+v", ev.Entities[0])
	}
}

func TestIdempotencyKey(t *testing.T) {
	v := newTestVerifier("s")

	a := v.IdempotencyKey("realm", "evt-1", "101")
	b := v.IdempotencyKey("realm", "evt-1", "101")
	if a != b {
		t.Error("identical inputs must produce identical keys")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}

	if v.IdempotencyKey("realm", "evt-1", "102") == a {
		t.Error("different entity must produce a different key")
	}
	if v.IdempotencyKey("realm", "evt-2", "101") == a {
		t.Error("different event must produce a different key")
	}
}

func TestIsTestWebhook(t *testing.T) {
	v := newTestVerifier("s")

	if !v.IsTestWebhook([]byte(testPayload)) {
		t.Error("notifications without entities should be recognized as a test delivery")
	}
	if v.IsTestWebhook([]byte(validPayload)) {
		t.Error("notifications carrying entities are not a test delivery")
	}
	if v.IsTestWebhook([]byte(`{"eventNotifications": []}`)) {
		t.Error("an empty notification list is not a test delivery")
	}
}
