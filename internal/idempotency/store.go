package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrConflict means the key was reused with a different request payload.
// Callers must surface it and never proceed with the mutation.
var ErrConflict = errors.New("idempotency key reused with different payload")

type CheckResult struct {
	Status       string
	IsNew        bool
	ResponseCode int
	ResponseBody []byte
}

// Store is the idempotency gate for client-submitted mutating requests.
// CheckOrCreate claims (key, scope) for the caller; MarkCompleted/MarkFailed
// are the terminal writes releasing the claim.
type Store interface {
	CheckOrCreate(ctx context.Context, key, scope string, payload any) (CheckResult, error)
	MarkCompleted(ctx context.Context, key, scope string, code int, body []byte) error
	MarkFailed(ctx context.Context, key, scope string) error
	CleanupExpired(ctx context.Context, now time.Time, batch int) (int64, error)
}

// Fingerprint hashes the canonical JSON form of the payload. Round-tripping
// through an untyped value sorts object keys, so two bodies that differ only
// in field order produce the same hash.
func Fingerprint(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return "", fmt.Errorf("normalize payload: %w", err)
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func validateKeyScope(key, scope string) error {
	if key == "" || scope == "" {
		return errors.New("idempotency key and scope must be non-empty")
	}
	return nil
}
