package service

import (
	"context"
	"time"

	"quizicle_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EditLocker 防止同一测验被并发编辑
type EditLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// NoopLocker 未启用 Redis 时使用
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// 仅当 value 仍为本次持有者的 token 时才删除
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisEditLocker struct {
	Redis *redis.Client
}

func NewRedisEditLocker(rdb *redis.Client) *RedisEditLocker {
	return &RedisEditLocker{Redis: rdb}
}

func (l *RedisEditLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.New().String()
	ok, err := l.Redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		if err := releaseScript.Run(context.Background(), l.Redis, []string{key}, token).Err(); err != nil && err != redis.Nil {
			logger.Log.Warn("failed to release edit lock", zap.String("key", key), zap.Error(err))
		}
	}
	return release, true, nil
}
