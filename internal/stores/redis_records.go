package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goVerify/record"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix    = "gv"
	defaultRetention      = 24 * time.Hour
	defaultIndexDepth     = 16
	fieldRecipient        = "recipient"
	fieldPurpose          = "purpose"
	fieldUserID           = "user_id"
	fieldCodeHash         = "code_hash"
	fieldCreatedAt        = "created_at"
	fieldExpiresAt        = "expires_at"
	fieldAttempts         = "attempts"
	fieldVerifiedAt       = "verified_at"
	fieldUsedAt           = "used_at"
	luaErrNotFound        = "not_found"
	luaErrConflict        = "conflict"
	redisRecordKeySegment = ":rec:"
	redisIndexKeySegment  = ":idx:"
)

// incrementAttemptsLua adds one wrong guess under the used/attempts guard.
// KEYS[1] = record key
// ARGV[1] = max attempts
//
// Returns the new attempt count, or error "not_found" / "conflict".
var incrementAttemptsLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {err='not_found'}
end
local used = redis.call('HGET', KEYS[1], 'used_at')
if used and used ~= '' then
  return {err='conflict'}
end
local attempts = tonumber(redis.call('HGET', KEYS[1], 'attempts') or '0')
if attempts >= tonumber(ARGV[1]) then
  return {err='conflict'}
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// markVerifiedLua sets verified_at once.
// KEYS[1] = record key
// ARGV[1] = max attempts
// ARGV[2] = verified at (unix nanos)
//
// Returns the stored verified_at, or error "not_found" / "conflict".
var markVerifiedLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {err='not_found'}
end
local used = redis.call('HGET', KEYS[1], 'used_at')
if used and used ~= '' then
  return {err='conflict'}
end
local attempts = tonumber(redis.call('HGET', KEYS[1], 'attempts') or '0')
if attempts >= tonumber(ARGV[1]) then
  return {err='conflict'}
end
local verified = redis.call('HGET', KEYS[1], 'verified_at')
if verified and verified ~= '' then
  return verified
end
redis.call('HSET', KEYS[1], 'verified_at', ARGV[2])
return ARGV[2]
`)

// markUsedLua sets used_at on a verified, unused record.
// KEYS[1] = record key
// ARGV[1] = used at (unix nanos)
var markUsedLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {err='not_found'}
end
local verified = redis.call('HGET', KEYS[1], 'verified_at')
if not verified or verified == '' then
  return {err='conflict'}
end
local used = redis.call('HGET', KEYS[1], 'used_at')
if used and used ~= '' then
  return {err='conflict'}
end
redis.call('HSET', KEYS[1], 'used_at', ARGV[1])
return 1
`)

// RedisRecordStore keeps each record in a hash and a per-(recipient,
// purpose) list of ids, newest first. Conditional updates run as Lua
// scripts so each is atomic on the server.
type RedisRecordStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisRecordStore returns a store using prefix for every key. Records
// and indexes expire after retention, which must outlive the code TTL.
func NewRedisRecordStore(redisClient redis.UniversalClient, prefix string, retention time.Duration) *RedisRecordStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return &RedisRecordStore{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *RedisRecordStore) recordKey(id string) string {
	return s.prefix + redisRecordKeySegment + id
}

func (s *RedisRecordStore) indexKey(recipient string, purpose record.Purpose) string {
	return s.prefix + redisIndexKeySegment + string(purpose) + ":" + recipient
}

// Create implements [record.Store].
func (s *RedisRecordStore) Create(ctx context.Context, rec *record.Record) error {
	if rec == nil || rec.ID == "" {
		return errors.New("verification record id required")
	}

	recKey := s.recordKey(rec.ID)
	idxKey := s.indexKey(rec.Recipient, rec.Purpose)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recKey, encodeRecordFields(rec))
		pipe.PExpire(ctx, recKey, s.retention)
		pipe.LPush(ctx, idxKey, rec.ID)
		pipe.LTrim(ctx, idxKey, 0, defaultIndexDepth-1)
		pipe.PExpire(ctx, idxKey, s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", record.ErrUnavailable, err)
	}
	return nil
}

// Latest implements [record.Store]. The index list is newest first, so the
// first id whose hash still exists is the verification target.
func (s *RedisRecordStore) Latest(ctx context.Context, recipient string, purpose record.Purpose) (*record.Record, error) {
	ids, err := s.redis.LRange(ctx, s.indexKey(recipient, purpose), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", record.ErrUnavailable, err)
	}

	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, record.ErrNotFound) {
			continue
		}
		return rec, err
	}
	return nil, record.ErrNotFound
}

// Get implements [record.Store].
func (s *RedisRecordStore) Get(ctx context.Context, id string) (*record.Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.recordKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", record.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, record.ErrNotFound
	}

	rec, err := decodeRecordFields(id, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", record.ErrUnavailable, err)
	}
	return rec, nil
}

// IncrementAttempts implements [record.Store].
func (s *RedisRecordStore) IncrementAttempts(ctx context.Context, id string, maxAttempts int) (int, error) {
	n, err := incrementAttemptsLua.Run(ctx, s.redis, []string{s.recordKey(id)}, maxAttempts).Int64()
	if err != nil {
		return 0, mapLuaError(err)
	}
	return int(n), nil
}

// MarkVerified implements [record.Store].
func (s *RedisRecordStore) MarkVerified(ctx context.Context, id string, at time.Time, maxAttempts int) (time.Time, error) {
	raw, err := markVerifiedLua.Run(ctx, s.redis, []string{s.recordKey(id)}, maxAttempts, at.UnixNano()).Text()
	if err != nil {
		return time.Time{}, mapLuaError(err)
	}

	stored, err := parseNanos(raw)
	if err != nil || stored == nil {
		return time.Time{}, fmt.Errorf("%w: invalid verified_at %q", record.ErrUnavailable, raw)
	}
	return *stored, nil
}

// MarkUsed implements [record.Store].
func (s *RedisRecordStore) MarkUsed(ctx context.Context, id string, at time.Time) error {
	if err := markUsedLua.Run(ctx, s.redis, []string{s.recordKey(id)}, at.UnixNano()).Err(); err != nil {
		return mapLuaError(err)
	}
	return nil
}

func mapLuaError(err error) error {
	switch err.Error() {
	case luaErrNotFound:
		return record.ErrNotFound
	case luaErrConflict:
		return record.ErrConflict
	default:
		return fmt.Errorf("%w: %v", record.ErrUnavailable, err)
	}
}

func encodeRecordFields(rec *record.Record) map[string]any {
	return map[string]any{
		fieldRecipient:  rec.Recipient,
		fieldPurpose:    string(rec.Purpose),
		fieldUserID:     rec.UserID,
		fieldCodeHash:   rec.CodeHash,
		fieldCreatedAt:  strconv.FormatInt(rec.CreatedAt.UnixNano(), 10),
		fieldExpiresAt:  strconv.FormatInt(rec.ExpiresAt.UnixNano(), 10),
		fieldAttempts:   strconv.Itoa(rec.Attempts),
		fieldVerifiedAt: formatNanos(rec.VerifiedAt),
		fieldUsedAt:     formatNanos(rec.UsedAt),
	}
}

func decodeRecordFields(id string, fields map[string]string) (*record.Record, error) {
	createdAt, err := parseNanos(fields[fieldCreatedAt])
	if err != nil || createdAt == nil {
		return nil, errors.New("invalid created_at")
	}
	expiresAt, err := parseNanos(fields[fieldExpiresAt])
	if err != nil || expiresAt == nil {
		return nil, errors.New("invalid expires_at")
	}
	attempts, err := strconv.Atoi(fields[fieldAttempts])
	if err != nil || attempts < 0 {
		return nil, errors.New("invalid attempts")
	}
	verifiedAt, err := parseNanos(fields[fieldVerifiedAt])
	if err != nil {
		return nil, errors.New("invalid verified_at")
	}
	usedAt, err := parseNanos(fields[fieldUsedAt])
	if err != nil {
		return nil, errors.New("invalid used_at")
	}

	return &record.Record{
		ID:         id,
		Recipient:  fields[fieldRecipient],
		Purpose:    record.Purpose(fields[fieldPurpose]),
		UserID:     fields[fieldUserID],
		CodeHash:   fields[fieldCodeHash],
		CreatedAt:  *createdAt,
		ExpiresAt:  *expiresAt,
		Attempts:   attempts,
		VerifiedAt: verifiedAt,
		UsedAt:     usedAt,
	}, nil
}

func formatNanos(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseNanos(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	t := time.Unix(0, n).UTC()
	return &t, nil
}
