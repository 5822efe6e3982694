package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MarkerStore records one-shot markers. The first Mark for a key wins until ttl passes.
type MarkerStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewMarkerStore returns a marker store under prefix.
func NewMarkerStore(client redis.Cmdable, prefix string, ttl time.Duration) *MarkerStore {
	return &MarkerStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *MarkerStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

// Mark reports true only for the first caller with id.
func (s *MarkerStore) Mark(ctx context.Context, id string) (bool, error) {
	return s.client.SetNX(ctx, s.key(id), 1, s.ttl).Result()
}
