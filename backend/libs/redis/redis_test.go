package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisClientRequiresAddr(t *testing.T) {
	_, err := NewRedisClient(Options{Addr: "  "})
	assert.EqualError(t, err, "redis: addr is empty")
}

func TestNewRedisClientFailsWithoutServer(t *testing.T) {
	// nothing listens on the discard port
	_, err := NewRedisClient(Options{Addr: "127.0.0.1:9"})
	assert.Error(t, err)
}
