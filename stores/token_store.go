package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-pass/internal/status"
	"ticket-pass/models"
)

// TokenStore persists tokens in Redis. Redis is the single source of truth for
// token state; every state transition goes through a Lua script so concurrent
// validations of the same token cannot both succeed.
type TokenStore struct {
	Redis *redis.Client
}

func NewTokenStore(redisClient *redis.Client) *TokenStore {
	return &TokenStore{Redis: redisClient}
}

func tokenKey(id string) string        { return fmt.Sprintf("token:%s", id) }
func bookingTokenKey(id string) string { return fmt.Sprintf("booking_token:%s", id) }
func eventTokensKey(id string) string  { return fmt.Sprintf("event_tokens:%s", id) }

const expiryIndexKey = "tokens:expiry"

// createTokenScript conditionally creates a token: it refuses when the booking
// index still points at a live token, and replaces the index otherwise.
const createTokenScript = `
local current = redis.call('GET', KEYS[1])
if current then
  local st = redis.call('HGET', 'token:' .. current, 'status')
  if st == 'active' or st == 'pending' then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('HSET', KEYS[2], unpack(ARGV, 3))
redis.call('ZADD', KEYS[3], ARGV[2], ARGV[1])
redis.call('SADD', KEYS[4], ARGV[1])
return 1
`

// validateTokenScript applies the read-check-increment sequence as one atomic
// operation: it re-checks status, expiry, the validation ceiling and the
// single-use rule before incrementing, and flips single-use tokens to used.
const validateTokenScript = `
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return {'not_found', 0}
end
local count = tonumber(redis.call('HGET', KEYS[1], 'validation_count') or '0')
if status ~= 'active' then
  return {status, count}
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if expires and tonumber(ARGV[1]) > expires then
  redis.call('HSET', KEYS[1], 'status', 'expired')
  redis.call('ZREM', KEYS[2], ARGV[3])
  redis.call('DEL', KEYS[3])
  return {'expired', count}
end
local max = tonumber(redis.call('HGET', KEYS[1], 'max_validations') or '1')
local single = redis.call('HGET', KEYS[1], 'single_use')
if count >= max then
  return {'limit_exceeded', count}
end
if single == '1' and count > 0 then
  return {'used', count}
end
count = count + 1
redis.call('HSET', KEYS[1], 'validation_count', count, 'last_validated_at', ARGV[1], 'used_by', ARGV[2])
if count == 1 then
  redis.call('HSET', KEYS[1], 'used_at', ARGV[1])
end
if single == '1' then
  redis.call('HSET', KEYS[1], 'status', 'used')
  redis.call('ZREM', KEYS[2], ARGV[3])
  redis.call('DEL', KEYS[3])
  return {'success_used', count}
end
return {'success', count}
`

// revokeTokenScript transitions to revoked. Idempotent: terminal states are
// left untouched and reported back.
const revokeTokenScript = `
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return 'not_found'
end
if status == 'revoked' or status == 'used' or status == 'expired' then
  return status
end
redis.call('HSET', KEYS[1], 'status', 'revoked')
redis.call('ZREM', KEYS[2], ARGV[1])
if redis.call('GET', KEYS[3]) == ARGV[1] then
  redis.call('DEL', KEYS[3])
end
return 'revoked'
`

// expireTokenScript is used by the sweep. A token already moved out of active
// by a live validation wins over the stale sweep.
const expireTokenScript = `
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'active' then
  local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
  if expires and tonumber(ARGV[1]) > expires then
    redis.call('HSET', KEYS[1], 'status', 'expired')
    if redis.call('GET', KEYS[3]) == ARGV[2] then
      redis.call('DEL', KEYS[3])
    end
    redis.call('ZREM', KEYS[2], ARGV[2])
    return 1
  end
end
redis.call('ZREM', KEYS[2], ARGV[2])
return 0
`

// activateTokenScript promotes a pre-issuance staged token.
const activateTokenScript = `
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return 'not_found'
end
if status ~= 'pending' then
  return status
end
redis.call('HSET', KEYS[1], 'status', 'active')
return 'active'
`

func (s *TokenStore) Create(ctx context.Context, t *models.Token) error {
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return err
	}

	singleUse := "0"
	if t.SingleUse {
		singleUse = "1"
	}

	args := []any{
		t.ID,
		strconv.FormatInt(t.ExpiresAt.Unix(), 10),
		"id", t.ID,
		"booking_id", t.BookingID,
		"event_id", t.EventID,
		"attendee_id", t.AttendeeID,
		"encrypted_payload", t.EncryptedPayload,
		"reference_url", t.ReferenceURL,
		"renderable_content", t.RenderableContent,
		"format", string(t.Format),
		"status", string(t.Status),
		"single_use", singleUse,
		"max_validations", strconv.Itoa(t.MaxValidations),
		"validation_count", strconv.Itoa(t.ValidationCount),
		"created_at", strconv.FormatInt(t.CreatedAt.Unix(), 10),
		"expires_at", strconv.FormatInt(t.ExpiresAt.Unix(), 10),
		"used_by", t.UsedBy,
		"metadata", string(metadata),
	}

	keys := []string{
		bookingTokenKey(t.BookingID),
		tokenKey(t.ID),
		expiryIndexKey,
		eventTokensKey(t.EventID),
	}

	created, err := s.Redis.Eval(ctx, createTokenScript, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	if created == 0 {
		return status.ErrTokenAlreadyExists
	}
	return nil
}

func (s *TokenStore) GetByID(ctx context.Context, id string) (*models.Token, error) {
	fields, err := s.Redis.HGetAll(ctx, tokenKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, status.ErrTokenNotFound
	}
	return tokenFromHash(fields)
}

// GetActiveByBooking resolves the booking index. A token that has since left
// the active/pending states is reported as not found.
func (s *TokenStore) GetActiveByBooking(ctx context.Context, bookingID string) (*models.Token, error) {
	id, err := s.Redis.Get(ctx, bookingTokenKey(bookingID)).Result()
	if err == redis.Nil {
		return nil, status.ErrTokenNotFound
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusActive && t.Status != models.StatusPending {
		return nil, status.ErrTokenNotFound
	}
	return t, nil
}

// ConditionalValidate runs the atomic validation update and reports the
// outcome together with the resulting validation count.
func (s *TokenStore) ConditionalValidate(ctx context.Context, t *models.Token, validatorID string, now time.Time) (models.ValidateOutcome, int, error) {
	keys := []string{
		tokenKey(t.ID),
		expiryIndexKey,
		bookingTokenKey(t.BookingID),
	}
	args := []any{
		strconv.FormatInt(now.Unix(), 10),
		validatorID,
		t.ID,
	}

	raw, err := s.Redis.Eval(ctx, validateTokenScript, keys, args...).Result()
	if err != nil {
		return models.OutcomeNotFound, 0, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 2 {
		return models.OutcomeNotFound, 0, fmt.Errorf("%w: unexpected validate reply %v", status.ErrStoreUnavailable, raw)
	}
	verdict, _ := reply[0].(string)
	count := int(toInt64(reply[1]))

	switch verdict {
	case "success", "success_used":
		return models.OutcomeSuccess, count, nil
	case "not_found":
		return models.OutcomeNotFound, count, nil
	case "used":
		return models.OutcomeAlreadyUsed, count, nil
	case "expired":
		return models.OutcomeExpired, count, nil
	case "revoked":
		return models.OutcomeRevoked, count, nil
	case "pending":
		return models.OutcomePending, count, nil
	case "limit_exceeded":
		return models.OutcomeLimitExceeded, count, nil
	default:
		return models.OutcomeNotFound, count, fmt.Errorf("%w: unexpected validate verdict %q", status.ErrStoreUnavailable, verdict)
	}
}

// Revoke is idempotent: a token already in a terminal state stays there.
func (s *TokenStore) Revoke(ctx context.Context, id string) error {
	bookingID, err := s.Redis.HGet(ctx, tokenKey(id), "booking_id").Result()
	if err == redis.Nil {
		return status.ErrTokenNotFound
	} else if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	keys := []string{tokenKey(id), expiryIndexKey, bookingTokenKey(bookingID)}
	verdict, err := s.Redis.Eval(ctx, revokeTokenScript, keys, id).Text()
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	if verdict == "not_found" {
		return status.ErrTokenNotFound
	}
	return nil
}

// Activate promotes a pending token to active.
func (s *TokenStore) Activate(ctx context.Context, id string) error {
	verdict, err := s.Redis.Eval(ctx, activateTokenScript, []string{tokenKey(id)}).Text()
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	switch verdict {
	case "not_found":
		return status.ErrTokenNotFound
	case "active", "pending":
		return nil
	default:
		return status.ErrTokenRevoked
	}
}

// ExpireBefore transitions every active token whose expiry has passed.
// Returns the number of tokens actually expired.
func (s *TokenStore) ExpireBefore(ctx context.Context, now time.Time) (int, error) {
	// Exclusive upper bound: a token expiring exactly now is still valid to
	// the validation script, so the sweep must not touch it yet.
	due, err := s.Redis.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	expired := 0
	for _, id := range due {
		bookingID, err := s.Redis.HGet(ctx, tokenKey(id), "booking_id").Result()
		if err == redis.Nil {
			s.Redis.ZRem(ctx, expiryIndexKey, id)
			continue
		} else if err != nil {
			return expired, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
		}

		keys := []string{tokenKey(id), expiryIndexKey, bookingTokenKey(bookingID)}
		n, err := s.Redis.Eval(ctx, expireTokenScript, keys, strconv.FormatInt(now.Unix(), 10), id).Int()
		if err != nil {
			return expired, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
		}
		expired += n
	}
	return expired, nil
}

// CountLive returns the number of tokens still tracked by the expiry index.
func (s *TokenStore) CountLive(ctx context.Context) (int64, error) {
	n, err := s.Redis.ZCard(ctx, expiryIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	return n, nil
}

func tokenFromHash(fields map[string]string) (*models.Token, error) {
	t := &models.Token{
		ID:                fields["id"],
		BookingID:         fields["booking_id"],
		EventID:           fields["event_id"],
		AttendeeID:        fields["attendee_id"],
		EncryptedPayload:  fields["encrypted_payload"],
		ReferenceURL:      fields["reference_url"],
		RenderableContent: fields["renderable_content"],
		Format:            models.TokenFormat(fields["format"]),
		Status:            models.TokenStatus(fields["status"]),
		SingleUse:         fields["single_use"] == "1",
		UsedBy:            fields["used_by"],
	}

	t.MaxValidations, _ = strconv.Atoi(fields["max_validations"])
	t.ValidationCount, _ = strconv.Atoi(fields["validation_count"])
	t.CreatedAt = unixField(fields, "created_at")
	t.ExpiresAt = unixField(fields, "expires_at")

	if at := unixField(fields, "used_at"); !at.IsZero() {
		t.UsedAt = &at
	}
	if at := unixField(fields, "last_validated_at"); !at.IsZero() {
		t.LastValidatedAt = &at
	}

	if raw := fields["metadata"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &t.Metadata); err != nil {
			return nil, fmt.Errorf("token %s: corrupt metadata: %w", t.ID, err)
		}
	}
	return t, nil
}

func unixField(fields map[string]string, name string) time.Time {
	sec, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil || sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}
