package idempotency

import (
	"context"
	"testing"
)

func TestFingerprintIgnoresFieldOrder(t *testing.T) {
	a, err := Fingerprint(map[string]any{"amount": 100, "card": "4242"})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	b, err := Fingerprint(map[string]any{"card": "4242", "amount": 100})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if a != b {
		t.Fatalf("field order changed the fingerprint: %s vs %s", a, b)
	}
}

func TestFingerprintDistinguishesValues(t *testing.T) {
	a, _ := Fingerprint(map[string]any{"amount": 100})
	b, _ := Fingerprint(map[string]any{"amount": 101})
	if a == b {
		t.Fatal("different payloads must not collide")
	}
}

func TestCheckOrCreateRejectsEmptyKey(t *testing.T) {
	store := NewDBStore(newTestDB(t), 0)
	if _, err := store.CheckOrCreate(context.Background(), "", "scope", nil); err == nil {
		t.Fatal("expected error for empty key")
	}
}
