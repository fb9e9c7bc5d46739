package redisstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Close() error { return s.rdb.Close() }

func sendLockKey(sessionID string) string { return "chat:send:" + sessionID }

// Delete only while the lock still holds the caller's token. A sender that
// outlived the TTL must not free the next sender's lock.
var releaseSendLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// AcquireSendLock serializes sends against one session: while a send is
// outstanding, a second one is rejected rather than queued. Returns a release
// token when the lock was taken, empty when another send holds it. The TTL
// covers a hung provider call.
func (s *Store) AcquireSendLock(ctx context.Context, sessionID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, sendLockKey(sessionID), token, ttl).Result()
	if err != nil || !ok {
		return "", err
	}
	return token, nil
}

func (s *Store) ReleaseSendLock(ctx context.Context, sessionID, token string) error {
	return releaseSendLockScript.Run(ctx, s.rdb, []string{sendLockKey(sessionID)}, token).Err()
}
