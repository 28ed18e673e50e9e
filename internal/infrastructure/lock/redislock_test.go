package lock

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisLocker_Key(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer rdb.Close()

	assert.Equal(t, "stockledger:period-close:42", NewRedisLocker(rdb, "stockledger", 0).Key("period-close:42"))
	assert.Equal(t, "period-close:42", NewRedisLocker(rdb, "", 0).Key("period-close:42"))
}

func TestRedisLocker_DefaultTTL(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer rdb.Close()

	assert.Equal(t, DefaultTTL, NewRedisLocker(rdb, "x", 0).ttl)
}
