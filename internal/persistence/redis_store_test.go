package persistence

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

// TestRedisPipelineStore runs the store contract against a real Redis
// instance. Set BOOKFLOW_TEST_REDIS_ADDR to enable, e.g.
//
//	BOOKFLOW_TEST_REDIS_ADDR=localhost:6379 go test ./...
func TestRedisPipelineStore(t *testing.T) {
	addr := os.Getenv("BOOKFLOW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOOKFLOW_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis not reachable at %s: %v", addr, err)
	}

	// Each subtest gets its own key prefix so reruns and parallel
	// suites cannot see each other's records.
	seq := 0
	runStoreConformance(t, func(t *testing.T) PipelineStore {
		seq++
		prefix := fmt.Sprintf("bookflow-test:%d:%d:", os.Getpid(), seq)
		t.Cleanup(func() {
			ctx := context.Background()
			keys, err := client.Keys(ctx, prefix+"*").Result()
			if err == nil && len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		})
		return NewRedisPipelineStore(client, prefix)
	})
}
