package lockout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix      = "alo:"
	redisFieldFailed    = "failed"
	redisFieldUntil     = "locked_until"
	defaultRetention    = 24 * time.Hour
	defaultApplyRetries = 8
)

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// RedisStore keeps lockout state in one Redis hash per user. Apply uses WATCH/MULTI so
// concurrent transitions from several processes serialise on the key.
type RedisStore struct {
	redis     redis.UniversalClient
	retention time.Duration
	retries   int
	now       func() time.Time
	fixed     bool
}

// NewRedisStore returns a RedisStore. retention bounds how long an unlocked counter is
// kept; zero selects 24h.
func NewRedisStore(client redis.UniversalClient, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &RedisStore{
		redis:     client,
		retention: retention,
		retries:   defaultApplyRetries,
		now:       time.Now,
	}
}

// WithClock sets the clock key lifetimes are measured against. Without it the store
// adopts the clock of the first Tracker built on it.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	if now != nil {
		s.now = now
		s.fixed = true
	}
	return s
}

func (s *RedisStore) useClock(now func() time.Time) {
	if !s.fixed {
		s.WithClock(now)
	}
}

func (s *RedisStore) key(userID string) string {
	return redisKeyPrefix + userID
}

func (s *RedisStore) Load(ctx context.Context, userID string) (State, error) {
	return s.load(ctx, s.redis, userID)
}

func (s *RedisStore) Apply(ctx context.Context, userID string, t Transition) (State, error) {
	key := s.key(userID)
	var next State

	txf := func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		next = t(current)
		if next.Equal(current) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next.IsZero() {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.HSet(ctx, key,
				redisFieldFailed, next.FailedAttempts,
				redisFieldUntil, unixMilli(next.LockedUntil),
			)
			pipe.PExpire(ctx, key, s.ttlFor(next))
			return nil
		})
		return err
	}

	for i := 0; i < s.retries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrUnavailable) {
			return State{}, err
		}
		return State{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return State{}, ErrContention
}

func (s *RedisStore) ttlFor(st State) time.Duration {
	ttl := s.retention
	if !st.LockedUntil.IsZero() {
		if until := st.LockedUntil.Sub(s.now()); until > ttl {
			ttl = until
		}
	}
	return ttl
}

func (s *RedisStore) load(ctx context.Context, c hashReader, userID string) (State, error) {
	fields, err := c.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return State{}, nil
	}

	var st State
	if raw, ok := fields[redisFieldFailed]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return State{}, fmt.Errorf("%w: corrupt failed counter: %v", ErrUnavailable, err)
		}
		st.FailedAttempts = n
	}
	if raw, ok := fields[redisFieldUntil]; ok {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return State{}, fmt.Errorf("%w: corrupt lock deadline: %v", ErrUnavailable, err)
		}
		if ms > 0 {
			st.LockedUntil = time.UnixMilli(ms)
		}
	}
	return st, nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
