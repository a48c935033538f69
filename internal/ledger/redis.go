package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// reserveScript runs the whole reserve decision on the server so concurrent
// callers observe a single winner.
//
// KEYS: fingerprint hash, message-id alias, id alias for a new record.
// ARGV: fingerprint, message id, new id, now (unix micros), sender, subject,
// key prefix, window (micros).
var reserveScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 0 and ARGV[2] ~= '' then
  local aliased = redis.call('GET', KEYS[2])
  if aliased then
    key = ARGV[7] .. 'fp:' .. aliased
  end
end
if redis.call('HSETNX', key, 'id', ARGV[3]) == 1 then
  redis.call('HSET', key,
    'fingerprint', ARGV[1], 'message_id', ARGV[2], 'sender', ARGV[5], 'subject', ARGV[6],
    'status', 'processing', 'attempts', 1, 'error', '',
    'created_at', ARGV[4], 'updated_at', ARGV[4])
  redis.call('SET', KEYS[3], ARGV[1])
  if ARGV[2] ~= '' then
    redis.call('SETNX', KEYS[2], ARGV[1])
  end
  return {1, ARGV[3], '', 0, 1}
end
local id = redis.call('HGET', key, 'id')
local status = redis.call('HGET', key, 'status')
if status == 'succeeded' then
  return {0, id, status, 0, 0}
end
if status == 'processing' then
  local updated = tonumber(redis.call('HGET', key, 'updated_at'))
  if updated > tonumber(ARGV[4]) - tonumber(ARGV[8]) then
    return {0, id, status, 0, 0}
  end
end
redis.call('HSET', key, 'status', 'processing', 'error', '', 'updated_at', ARGV[4])
local attempts = redis.call('HINCRBY', key, 'attempts', 1)
return {1, id, status, 1, attempts}
`)

// finalizeScript applies a terminal status only while the caller's attempt
// is still the live one. Returns -1 for an unknown id, 0 for a lost lease.
//
// KEYS: id alias.
// ARGV: key prefix, attempt, status, error, now (unix micros).
var finalizeScript = redis.NewScript(`
local fp = redis.call('GET', KEYS[1])
if not fp then
  return -1
end
local key = ARGV[1] .. 'fp:' .. fp
if redis.call('HGET', key, 'status') ~= 'processing'
   or tonumber(redis.call('HGET', key, 'attempts')) ~= tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', key, 'status', ARGV[3], 'error', ARGV[4], 'updated_at', ARGV[5])
return 1
`)

// Redis is a ledger stored in Redis hashes keyed by fingerprint.
type Redis struct {
	client *redis.Client
	prefix string
	opts   options
}

// NewRedis returns a ledger using client. Keys are namespaced under prefix.
func NewRedis(client *redis.Client, prefix string, opts ...Option) *Redis {
	if prefix == "" {
		prefix = "liftmail"
	}
	return &Redis{client: client, prefix: prefix + ":", opts: applyOptions(opts)}
}

func (r *Redis) fpKey(fingerprint string) string { return r.prefix + "fp:" + fingerprint }
func (r *Redis) idKey(id string) string          { return r.prefix + "id:" + id }
func (r *Redis) midKey(messageID string) string  { return r.prefix + "mid:" + messageID }

func (r *Redis) Reserve(ctx context.Context, key Key) (Reservation, error) {
	if err := validateKey(key); err != nil {
		return Reservation{}, err
	}
	id := uuid.NewString()
	now := r.opts.now().UnixMicro()
	raw, err := reserveScript.Run(ctx, r.client,
		[]string{r.fpKey(key.Fingerprint), r.midKey(key.MessageID), r.idKey(id)},
		key.Fingerprint, key.MessageID, id, now, key.Sender, key.Subject, r.prefix, r.opts.window.Microseconds(),
	).Slice()
	if err != nil {
		return Reservation{}, fmt.Errorf("redis reserve: %w", err)
	}
	if len(raw) != 5 {
		return Reservation{}, fmt.Errorf("redis reserve: unexpected reply %v", raw)
	}
	should, _ := raw[0].(int64)
	recordID, _ := raw[1].(string)
	prior, _ := raw[2].(string)
	reclaimed, _ := raw[3].(int64)
	attempt, _ := raw[4].(int64)
	return Reservation{
		ShouldProcess: should == 1,
		RecordID:      recordID,
		Attempt:       int(attempt),
		PriorStatus:   Status(prior),
		Reclaimed:     reclaimed == 1,
	}, nil
}

func (r *Redis) Finalize(ctx context.Context, lease Lease, status Status, errMsg string) error {
	if err := validateFinal(status); err != nil {
		return err
	}
	applied, err := finalizeScript.Run(ctx, r.client,
		[]string{r.idKey(lease.RecordID)},
		r.prefix, lease.Attempt, string(status), errMsg, r.opts.now().UnixMicro(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis finalize: %w", err)
	}
	switch applied {
	case 1:
		return nil
	case -1:
		return ErrNotFound
	default:
		return ErrLeaseLost
	}
}

func (r *Redis) Get(ctx context.Context, recordID string) (*Record, error) {
	fingerprint, err := r.client.Get(ctx, r.idKey(recordID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return r.load(ctx, r.fpKey(fingerprint))
}

func (r *Redis) load(ctx context.Context, key string) (*Record, error) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	return &Record{
		ID:          fields["id"],
		MessageID:   fields["message_id"],
		Fingerprint: fields["fingerprint"],
		Sender:      fields["sender"],
		Subject:     fields["subject"],
		Status:      Status(fields["status"]),
		Attempts:    attempts,
		Error:       fields["error"],
		CreatedAt:   microsToTime(fields["created_at"]),
		UpdatedAt:   microsToTime(fields["updated_at"]),
	}, nil
}

func (r *Redis) List(ctx context.Context, limit int, statuses ...Status) ([]Record, error) {
	wanted := filterStatuses(statuses)
	var records []Record
	iter := r.client.Scan(ctx, 0, r.prefix+"fp:*", 100).Iterator()
	for iter.Next(ctx) {
		rec, err := r.load(ctx, iter.Val())
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if wanted != nil && !wanted[rec.Status] {
			continue
		}
		records = append(records, *rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func microsToTime(value string) time.Time {
	micros, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMicro(micros).UTC()
}
