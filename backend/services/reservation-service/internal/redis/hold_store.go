package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the hold only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// HoldStore keeps short-lived spot holds in redis. A hold is a key with the owner's token
// that expires on its own after ttl.
type HoldStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewHoldStore returns redis-backed hold store.
func NewHoldStore(client redis.Cmdable, ttl time.Duration) *HoldStore {
	return &HoldStore{client: client, ttl: ttl}
}

func holdKey(spotID string) string {
	return fmt.Sprintf("spots:hold:%s", spotID)
}

// Acquire sets the hold if no other hold for the spot is outstanding.
func (s *HoldStore) Acquire(ctx context.Context, spotID, token string) (bool, error) {
	return s.client.SetNX(ctx, holdKey(spotID), token, s.ttl).Result()
}

// Release drops the hold if token still owns it. Expired or foreign holds are left alone.
func (s *HoldStore) Release(ctx context.Context, spotID, token string) error {
	err := releaseScript.Run(ctx, s.client, []string{holdKey(spotID)}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
