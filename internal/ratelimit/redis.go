package ratelimit

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed quota.lua
var quotaLua string

var quotaScript = redis.NewScript(quotaLua)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore shares windows between instances. Each hit is one EVALSHA of quota.lua.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Window, error) {
	res, err := quotaScript.Run(ctx, s.client, []string{key}, limit, window.Milliseconds(), now.UnixMilli()).Result()
	if err != nil {
		return Window{}, fmt.Errorf("run quota script: %w", err)
	}
	return parseScriptResult(res)
}

func parseScriptResult(res any) (Window, error) {
	values, ok := res.([]any)
	if !ok || len(values) != 3 {
		return Window{}, fmt.Errorf("unexpected quota script result: %v", res)
	}

	nums := make([]int64, len(values))
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return Window{}, fmt.Errorf("unexpected quota script value %v at %d", v, i)
		}
		nums[i] = n
	}

	return Window{
		Admitted: nums[0] == 1,
		Count:    int(nums[1]),
		ResetAt:  time.UnixMilli(nums[2]),
	}, nil
}
