package idempotency

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roi007leaf/pdq-checkout/internal/domain"
)

var redisCheckOrCreateScript = redis.NewScript(`
local key = KEYS[1]
local fingerprint = ARGV[1]
local ttl_ms = ARGV[2]

if redis.call("EXISTS", key) == 0 then
  redis.call("HSET", key, "fingerprint", fingerprint, "status", "IN_PROGRESS")
  redis.call("PEXPIRE", key, ttl_ms)
  return {"new"}
end

local existing_fp = redis.call("HGET", key, "fingerprint")
if existing_fp ~= fingerprint then
  return {"conflict"}
end

local status = redis.call("HGET", key, "status")
if status == "COMPLETED" then
  return {"replay", redis.call("HGET", key, "response_code") or "", redis.call("HGET", key, "response_body") or ""}
end
if status == "FAILED" then
  redis.call("HSET", key, "status", "IN_PROGRESS")
  return {"retry"}
end

return {"in_progress"}
`)

var redisMarkScript = redis.NewScript(`
local key = KEYS[1]
local status = ARGV[1]
local response_code = ARGV[2]
local response_body = ARGV[3]

if redis.call("EXISTS", key) == 0 then
  return 0
end
if status == "COMPLETED" then
  redis.call("HSET", key, "status", status, "response_code", response_code, "response_body", response_body)
else
  redis.call("HSET", key, "status", status)
end
return 1
`)

// RedisStore is the Redis-backed alternative for gateways that prefer keeping
// idempotency state out of the relational database. Expiry rides on the key
// TTL, so CleanupExpired is a no-op.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "idem"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) redisKey(key, scope string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, scope, key)
}

func (s *RedisStore) CheckOrCreate(ctx context.Context, key, scope string, payload any) (CheckResult, error) {
	if err := validateKeyScope(key, scope); err != nil {
		return CheckResult{}, err
	}
	hash, err := Fingerprint(payload)
	if err != nil {
		return CheckResult{}, err
	}

	raw, err := redisCheckOrCreateScript.Run(
		ctx,
		s.client,
		[]string{s.redisKey(key, scope)},
		hash,
		int(s.ttl/time.Millisecond),
	).Result()
	if err != nil {
		return CheckResult{}, fmt.Errorf("idempotency check script: %w", err)
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) == 0 {
		return CheckResult{}, fmt.Errorf("unexpected script result %T", raw)
	}

	switch asString(values[0]) {
	case "new", "retry":
		return CheckResult{Status: domain.IdempotencyStatusInProgress, IsNew: true}, nil
	case "in_progress":
		return CheckResult{Status: domain.IdempotencyStatusInProgress}, nil
	case "conflict":
		return CheckResult{}, ErrConflict
	case "replay":
		if len(values) < 3 {
			return CheckResult{}, fmt.Errorf("malformed replay result")
		}
		code, parseErr := strconv.Atoi(asString(values[1]))
		if parseErr != nil {
			return CheckResult{}, fmt.Errorf("parse replay status code: %w", parseErr)
		}
		body, decodeErr := base64.StdEncoding.DecodeString(asString(values[2]))
		if decodeErr != nil {
			return CheckResult{}, fmt.Errorf("decode replay body: %w", decodeErr)
		}
		return CheckResult{
			Status:       domain.IdempotencyStatusCompleted,
			ResponseCode: code,
			ResponseBody: body,
		}, nil
	default:
		return CheckResult{}, fmt.Errorf("unknown idempotency state %q", asString(values[0]))
	}
}

func (s *RedisStore) MarkCompleted(ctx context.Context, key, scope string, code int, body []byte) error {
	_, err := redisMarkScript.Run(
		ctx,
		s.client,
		[]string{s.redisKey(key, scope)},
		domain.IdempotencyStatusCompleted,
		strconv.Itoa(code),
		base64.StdEncoding.EncodeToString(body),
	).Result()
	return err
}

func (s *RedisStore) MarkFailed(ctx context.Context, key, scope string) error {
	_, err := redisMarkScript.Run(
		ctx,
		s.client,
		[]string{s.redisKey(key, scope)},
		domain.IdempotencyStatusFailed,
		"",
		"",
	).Result()
	return err
}

func (s *RedisStore) CleanupExpired(ctx context.Context, now time.Time, batch int) (int64, error) {
	return 0, nil
}

func asString(v interface{}) string {
	switch typed := v.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	default:
		return fmt.Sprint(v)
	}
}
