package idempotency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/roi007leaf/pdq-checkout/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.IdempotencyRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type checkoutBody struct {
	Card   string `json:"card"`
	Amount int64  `json:"amount"`
}

func TestDBStoreFirstUseClaimsKey(t *testing.T) {
	store := NewDBStore(newTestDB(t), time.Hour)
	ctx := context.Background()

	res, err := store.CheckOrCreate(ctx, "key-1", "POST:/checkout", checkoutBody{Card: "4242", Amount: 100})
	if err != nil {
		t.Fatalf("CheckOrCreate: %v", err)
	}
	if !res.IsNew {
		t.Fatal("expected first use to be new")
	}
	if res.Status != domain.IdempotencyStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", res.Status)
	}
}

func TestDBStoreReplayAfterCompletion(t *testing.T) {
	store := NewDBStore(newTestDB(t), time.Hour)
	ctx := context.Background()
	body := checkoutBody{Card: "4242", Amount: 100}

	if _, err := store.CheckOrCreate(ctx, "key-1", "POST:/checkout", body); err != nil {
		t.Fatalf("CheckOrCreate: %v", err)
	}
	stored := []byte(`{"orderId":"o-1"}`)
	if err := store.MarkCompleted(ctx, "key-1", "POST:/checkout", http.StatusCreated, stored); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	res, err := store.CheckOrCreate(ctx, "key-1", "POST:/checkout", body)
	if err != nil {
		t.Fatalf("replay CheckOrCreate: %v", err)
	}
	if res.IsNew {
		t.Fatal("replay must not be new")
	}
	if res.Status != domain.IdempotencyStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", res.Status)
	}
	if res.ResponseCode != http.StatusCreated {
		t.Fatalf("expected stored code 201, got %d", res.ResponseCode)
	}
	if string(res.ResponseBody) != string(stored) {
		t.Fatalf("stored body mismatch: %s", res.ResponseBody)
	}
}

func TestDBStoreConflictOnDifferentPayload(t *testing.T) {
	store := NewDBStore(newTestDB(t), time.Hour)
	ctx := context.Background()

	if _, err := store.CheckOrCreate(ctx, "key-1", "POST:/checkout", checkoutBody{Card: "4242", Amount: 100}); err != nil {
		t.Fatalf("CheckOrCreate: %v", err)
	}
	_, err := store.CheckOrCreate(ctx, "key-1", "POST:/checkout", checkoutBody{Card: "4242", Amount: 999})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDBStoreSameKeyDifferentScope(t *testing.T) {
	store := NewDBStore(newTestDB(t), time.Hour)
	ctx := context.Background()
	body := checkoutBody{Card: "4242", Amount: 100}

	if _, err := store.CheckOrCreate(ctx, "key-1", "POST:/checkout", body); err != nil {
		t.Fatalf("CheckOrCreate: %v", err)
	}
	res, err := store.CheckOrCreate(ctx, "key-1", "POST:/shipping", body)
	if err != nil {
		t.Fatalf("CheckOrCreate other scope: %v", err)
	}
	if !res.IsNew {
		t.Fatal("same key in a different scope must be independent")
	}
}

func TestDBStoreInProgressBlocksConcurrentUse(t *testing.T) {
	store := NewDBStore(newTestDB(t), time.Hour)
	ctx := context.Background()
	body := checkoutBody{Card: "4242", Amount: 100}

	if _, err := store.CheckOrCreate(ctx, "key-1", "POST:/checkout", body); err != nil {
		t.Fatalf("CheckOrCreate: %v", err)
	}
	res, err := store.CheckOrCreate(ctx, "key-1", "POST:/checkout", body)
	if err != nil {
		t.Fatalf("second CheckOrCreate: %v", err)
	}
	if res.IsNew {
		t.Fatal("in-progress key must not be claimable")
	}
	if res.Status != domain.IdempotencyStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", res.Status)
	}
}

func TestDBStoreFailedKeyIsRetriable(t *testing.T) {
	store := NewDBStore(newTestDB(t), time.Hour)
	ctx := context.Background()
	body := checkoutBody{Card: "4242", Amount: 100}

	if _, err := store.CheckOrCreate(ctx, "key-1", "POST:/checkout", body); err != nil {
		t.Fatalf("CheckOrCreate: %v", err)
	}
	if err := store.MarkFailed(ctx, "key-1", "POST:/checkout"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	res, err := store.CheckOrCreate(ctx, "key-1", "POST:/checkout", body)
	if err != nil {
		t.Fatalf("retry CheckOrCreate: %v", err)
	}
	if !res.IsNew {
		t.Fatal("failed key must be retriable")
	}
}

func TestDBStoreCleanupExpired(t *testing.T) {
	db := newTestDB(t)
	store := NewDBStore(db, time.Hour)
	ctx := context.Background()

	if _, err := store.CheckOrCreate(ctx, "live", "POST:/checkout", checkoutBody{Card: "1"}); err != nil {
		t.Fatalf("CheckOrCreate: %v", err)
	}
	if _, err := store.CheckOrCreate(ctx, "stale", "POST:/checkout", checkoutBody{Card: "2"}); err != nil {
		t.Fatalf("CheckOrCreate: %v", err)
	}
	past := time.Now().UTC().Add(-time.Minute)
	if err := db.Model(&domain.IdempotencyRecord{}).Where("key = ?", "stale").Update("expires_at", past).Error; err != nil {
		t.Fatalf("age record: %v", err)
	}

	removed, err := store.CleanupExpired(ctx, time.Now().UTC(), 100)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	var count int64
	if err := db.Model(&domain.IdempotencyRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 surviving record, got %d", count)
	}
}
