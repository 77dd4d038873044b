package testsupport

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewMiniRedis starts an in-process Redis server and returns a connected
// client. Both are torn down when the test finishes. The embedded server
// supports the Lua scripting the rate limiter relies on, so these tests
// need no external Redis.
func NewMiniRedis(t *testing.T) *redis.Client {
	t.Helper()

	srv := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: srv.Addr(),
	})

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}
