package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "contact_intake:rate_limit:"

// RedisStore keeps each record in a hash with a PEXPIRE set once, when the
// window opens.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

var incrementScript = redis.NewScript(`
-- KEYS[1] = record key
-- ARGV[1] = now_ms (int)
-- ARGV[2] = window_ms (int)
-- ARGV[3] = ceiling (int)
--
-- Returns {count, window_start_ms}
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
if count == 1 then
  redis.call('HSET', KEYS[1], 'window_start', ARGV[1])
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
  -- Ensure TTL exists even if key already existed without TTL
  if redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
  end
end

if count > tonumber(ARGV[3]) then
  count = redis.call('HINCRBY', KEYS[1], 'count', -1)
end

local start = redis.call('HGET', KEYS[1], 'window_start')
if not start then
  start = ARGV[1]
  redis.call('HSET', KEYS[1], 'window_start', start)
end
return {count, start}
`)

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration, ceiling int) (Record, error) {
	if s.rdb == nil {
		return Record{}, errors.New("redis client is nil")
	}
	if key == "" || window <= 0 || ceiling <= 0 {
		return Record{}, ErrInvalidArgument
	}

	res, err := incrementScript.Run(ctx, s.rdb, []string{s.key(key)}, now.UnixMilli(), window.Milliseconds(), ceiling).Slice()
	if err != nil {
		return Record{}, err
	}
	if len(res) != 2 {
		return Record{}, fmt.Errorf("unexpected script reply of length %d", len(res))
	}
	count, ok := res[0].(int64)
	if !ok {
		return Record{}, fmt.Errorf("unexpected count type %T", res[0])
	}
	startMs, err := parseMillis(res[1])
	if err != nil {
		return Record{}, err
	}
	return Record{Count: int(count), WindowStart: time.UnixMilli(startMs).UTC()}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string, _ time.Time) (Record, bool, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := recordFromHash(vals)
	return rec, ok, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) DeleteAll(ctx context.Context) (int, error) {
	total := 0
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		total += int(n)
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

func (s *RedisStore) List(ctx context.Context, _ time.Time, window time.Duration) ([]Entry, error) {
	out := make([]Entry, 0)
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		vals, err := s.rdb.HGetAll(ctx, full).Result()
		if err != nil {
			return nil, err
		}
		rec, ok := recordFromHash(vals)
		if !ok {
			// expired between SCAN and HGETALL
			continue
		}
		out = append(out, Entry{
			Key:         strings.TrimPrefix(full, s.prefix),
			Count:       rec.Count,
			WindowStart: rec.WindowStart,
			ExpiresAt:   rec.WindowStart.Add(window),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func recordFromHash(vals map[string]string) (Record, bool) {
	if len(vals) == 0 {
		return Record{}, false
	}
	count, err := strconv.Atoi(vals["count"])
	if err != nil || count <= 0 {
		return Record{}, false
	}
	startMs, err := strconv.ParseInt(vals["window_start"], 10, 64)
	if err != nil {
		return Record{}, false
	}
	return Record{Count: count, WindowStart: time.UnixMilli(startMs).UTC()}, true
}

func parseMillis(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected window_start type %T", v)
	}
}
