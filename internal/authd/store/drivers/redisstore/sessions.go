// Package redisstore implements the session repository on Redis. Sessions
// are naturally TTL-bound, so Redis expiry does most of the lifecycle work
// and an explicit set per account provides the listing index.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/internal/authd/store"
)

// deleteSessionLua removes a session key and its index entry atomically, and
// reports whether the session key existed. Revoking twice is not an error.
var deleteSessionLua = redis.NewScript(`
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`)

type Sessions struct {
	client redis.UniversalClient
	prefix string
}

var _ store.Sessions = (*Sessions)(nil)

// NewSessions creates a session repository on the given Redis client. The
// prefix namespaces all keys, e.g. "authd".
func NewSessions(client redis.UniversalClient, prefix string) *Sessions {
	if prefix == "" {
		prefix = "authd"
	}
	return &Sessions{client: client, prefix: prefix}
}

func (s *Sessions) sessionKey(jti string) string {
	return s.prefix + ":session:" + jti
}

func (s *Sessions) accountKey(accountID string) string {
	return s.prefix + ":account:" + accountID
}

func (s *Sessions) CreateSession(ctx context.Context, sess domain.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("redisstore: session already expired")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redisstore: marshal session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, s.sessionKey(sess.JTI), data, ttl)
		pipe.SAdd(ctx, s.accountKey(sess.AccountID), sess.JTI)
		// Keep the index alive at least as long as its longest session.
		// NX seeds a TTL on a fresh index, GT only ever extends it.
		pipe.ExpireNX(ctx, s.accountKey(sess.AccountID), ttl)
		pipe.ExpireGT(ctx, s.accountKey(sess.AccountID), ttl)
		return nil
	})
	return err
}

func (s *Sessions) GetSessionByJTI(ctx context.Context, jti string) (domain.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(jti)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("redisstore: unmarshal session: %w", err)
	}
	return sess, nil
}

func (s *Sessions) RevokeSession(ctx context.Context, jti string) error {
	sess, err := s.GetSessionByJTI(ctx, jti)
	if errors.Is(err, store.ErrNotFound) {
		return nil // idempotent
	}
	if err != nil {
		return err
	}

	return deleteSessionLua.Run(ctx, s.client,
		[]string{s.sessionKey(jti), s.accountKey(sess.AccountID)}, jti).Err()
}

func (s *Sessions) RevokeAllAccountSessions(ctx context.Context, accountID string) (int64, error) {
	jtis, err := s.client.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return 0, err
	}
	if len(jtis) == 0 {
		return 0, nil
	}

	keys := make([]string, len(jtis))
	for i, jti := range jtis {
		keys[i] = s.sessionKey(jti)
	}

	// Expired members linger in the index until pruned, so only keys that
	// still existed count as revoked.
	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	if err := s.client.Del(ctx, s.accountKey(accountID)).Err(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

func (s *Sessions) ListAccountSessions(ctx context.Context, accountID string) ([]domain.Session, error) {
	jtis, err := s.client.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return nil, err
	}
	if len(jtis) == 0 {
		return nil, nil
	}

	keys := make([]string, len(jtis))
	for i, jti := range jtis {
		keys[i] = s.sessionKey(jti)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var sessions []domain.Session
	var stale []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, jtis[i])
			continue
		}
		var sess domain.Session
		if err := json.Unmarshal([]byte(str), &sess); err != nil {
			stale = append(stale, jtis[i])
			continue
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		_ = s.client.SRem(ctx, s.accountKey(accountID), stale...).Err()
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// DeleteExpiredSessions prunes index entries whose session keys have already
// been expired by Redis. The session keys themselves never need sweeping.
func (s *Sessions) DeleteExpiredSessions(ctx context.Context, _ time.Time) (int64, error) {
	var pruned int64

	iter := s.client.Scan(ctx, 0, s.prefix+":account:*", 100).Iterator()
	for iter.Next(ctx) {
		accountKey := iter.Val()

		jtis, err := s.client.SMembers(ctx, accountKey).Result()
		if err != nil {
			return pruned, err
		}
		for _, jti := range jtis {
			exists, err := s.client.Exists(ctx, s.sessionKey(jti)).Result()
			if err != nil {
				return pruned, err
			}
			if exists == 0 {
				if err := s.client.SRem(ctx, accountKey, jti).Err(); err != nil {
					return pruned, err
				}
				pruned++
			}
		}
	}
	return pruned, iter.Err()
}
