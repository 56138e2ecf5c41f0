package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix  = "as"
	userIndexPrefix   = "au:"
	createStatusDup   = 0
	createStatusSaved = 1
)

// KEYS[1] session key, KEYS[2] user index. ARGV: blob, ttl ms, session id.
const createSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], ARGV[3])
local ttl = redis.call("PTTL", KEYS[2])
if ttl < tonumber(ARGV[2]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[2])
end
return 1
`

var createSessionLua = redis.NewScript(createSessionScript)

const deleteSessionScript = `
local existed = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed Registry.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore returns a Store using prefix as the session key namespace. An empty prefix
// selects "as".
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userKey(userID string) string {
	return userIndexPrefix + userID
}

// Create stores sess with a TTL equal to its lifetime and adds it to the user index.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	if err := validate(sess); err != nil {
		return err
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	ttl := sess.TTL()
	status, err := createSessionLua.Run(ctx, s.redis,
		[]string{s.key(sess.ID), s.userKey(sess.UserID)},
		data, ttl.Milliseconds(), sess.ID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if status == createStatusDup {
		return ErrDuplicate
	}
	return nil
}

// FindActive returns the session for id if it is live at now. A session found past its
// expiry is removed.
func (s *Store) FindActive(ctx context.Context, id string, now time.Time) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sess.ID = id

	if !sess.ActiveAt(now) {
		if err := s.deleteSessionAndIndex(ctx, sess.UserID, id); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

// Revoke deletes the session and its index entry. A missing session is not an error.
func (s *Store) Revoke(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	key := s.key(id)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}
	return s.deleteSessionAndIndex(ctx, sess.UserID, id)
}

// RevokeAllForUser deletes every indexed session of userID except exceptID.
//
// The index is read before the delete runs, so a session created concurrently may
// survive. That is acceptable for this operation.
func (s *Store) RevokeAllForUser(ctx context.Context, userID, exceptID string) (int, error) {
	userKey := s.userKey(userID)

	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(ids))
	members := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if id == exceptID {
			continue
		}
		keys = append(keys, s.key(id))
		members = append(members, id)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	var del *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, keys...)
		pipe.SRem(ctx, userKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(del.Val()), nil
}

// ListForUser returns the live sessions of userID ordered by creation time. Index
// entries whose blob has already expired are pruned.
func (s *Store) ListForUser(ctx context.Context, userID string, now time.Time) ([]*Session, error) {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		sess, decErr := Decode(data)
		if decErr != nil {
			continue
		}
		sess.ID = ids[i]
		if !sess.ActiveAt(now) {
			continue
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, userID, sessionID string) error {
	_, err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID), s.userKey(userID)}, sessionID).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
