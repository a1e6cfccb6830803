package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect returns nil, nil when no address is configured; Redis is optional.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	r := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.Ping(pingCtx).Err(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}
