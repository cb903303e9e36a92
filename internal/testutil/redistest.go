// README: Redis helper for cache and GEO tests; skipped unless RIDEHAIL_TEST_REDIS_ADDR is set.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to RIDEHAIL_TEST_REDIS_ADDR on database 15 and flushes it.
func OpenRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("RIDEHAIL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RIDEHAIL_TEST_REDIS_ADDR not set; skipping Redis-backed tests")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	if err := rdb.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return rdb
}
