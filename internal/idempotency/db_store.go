package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/roi007leaf/pdq-checkout/internal/domain"
)

// DBStore keeps idempotency records in the service's relational database.
// The unique index over (key, scope) resolves concurrent first-use races: the
// insert loser re-runs the check as if the row pre-existed.
type DBStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewDBStore(db *gorm.DB, ttl time.Duration) *DBStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DBStore{db: db, ttl: ttl}
}

func (s *DBStore) CheckOrCreate(ctx context.Context, key, scope string, payload any) (CheckResult, error) {
	if err := validateKeyScope(key, scope); err != nil {
		return CheckResult{}, err
	}
	hash, err := Fingerprint(payload)
	if err != nil {
		return CheckResult{}, err
	}

	// Two passes at most: a lost insert race falls through to re-reading the
	// winner's row.
	for attempt := 0; attempt < 2; attempt++ {
		var rec domain.IdempotencyRecord
		err := s.db.WithContext(ctx).
			Where("key = ? AND scope = ?", key, scope).
			First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			now := time.Now().UTC()
			rec = domain.IdempotencyRecord{
				ID:          uuid.New().String(),
				Key:         key,
				Scope:       scope,
				RequestHash: hash,
				Status:      domain.IdempotencyStatusInProgress,
				LockedAt:    &now,
				ExpiresAt:   now.Add(s.ttl),
			}
			createErr := s.db.WithContext(ctx).Create(&rec).Error
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				continue
			}
			if createErr != nil {
				return CheckResult{}, fmt.Errorf("create idempotency record: %w", createErr)
			}
			return CheckResult{Status: domain.IdempotencyStatusInProgress, IsNew: true}, nil
		case err != nil:
			return CheckResult{}, fmt.Errorf("load idempotency record: %w", err)
		}

		if rec.RequestHash != hash {
			return CheckResult{}, ErrConflict
		}

		switch rec.Status {
		case domain.IdempotencyStatusCompleted:
			return CheckResult{
				Status:       domain.IdempotencyStatusCompleted,
				ResponseCode: rec.ResponseCode,
				ResponseBody: rec.ResponseBody,
			}, nil
		case domain.IdempotencyStatusInProgress:
			return CheckResult{Status: domain.IdempotencyStatusInProgress}, nil
		case domain.IdempotencyStatusFailed:
			now := time.Now().UTC()
			err := s.db.WithContext(ctx).
				Model(&domain.IdempotencyRecord{}).
				Where("key = ? AND scope = ?", key, scope).
				Updates(map[string]any{
					"status":    domain.IdempotencyStatusInProgress,
					"locked_at": &now,
				}).Error
			if err != nil {
				return CheckResult{}, fmt.Errorf("reset failed record: %w", err)
			}
			return CheckResult{Status: domain.IdempotencyStatusInProgress, IsNew: true}, nil
		default:
			return CheckResult{}, fmt.Errorf("unknown idempotency status %q", rec.Status)
		}
	}
	return CheckResult{}, errors.New("idempotency check did not settle")
}

func (s *DBStore) MarkCompleted(ctx context.Context, key, scope string, code int, body []byte) error {
	return s.db.WithContext(ctx).
		Model(&domain.IdempotencyRecord{}).
		Where("key = ? AND scope = ?", key, scope).
		Updates(map[string]any{
			"status":        domain.IdempotencyStatusCompleted,
			"response_code": code,
			"response_body": body,
			"locked_at":     nil,
		}).Error
}

func (s *DBStore) MarkFailed(ctx context.Context, key, scope string) error {
	return s.db.WithContext(ctx).
		Model(&domain.IdempotencyRecord{}).
		Where("key = ? AND scope = ?", key, scope).
		Updates(map[string]any{
			"status":    domain.IdempotencyStatusFailed,
			"locked_at": nil,
		}).Error
}

// CleanupExpired deletes at most batch expired records, regardless of status.
func (s *DBStore) CleanupExpired(ctx context.Context, now time.Time, batch int) (int64, error) {
	if batch <= 0 {
		batch = 100
	}
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&domain.IdempotencyRecord{}).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(batch).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("select expired records: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.IdempotencyRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired records: %w", res.Error)
	}
	return res.RowsAffected, nil
}
