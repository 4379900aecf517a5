package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"moment_social_server/pkg/errorx"
)

// RedisState SharedState 的 Redis 实现
// 值按 JSON 存储，过期交给 Redis TTL；多个服务进程共享同一份状态
type RedisState[V any] struct {
	client *redis.Client
	prefix string // 键前缀，隔离不同用途的状态表
}

// NewRedisState 创建 Redis 共享状态
func NewRedisState[V any](client *redis.Client, prefix string) *RedisState[V] {
	return &RedisState[V]{client: client, prefix: prefix}
}

func (r *RedisState[V]) key(k string) string {
	return r.prefix + ":" + k
}

// Get 读取键值
func (r *RedisState[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, errorx.Wrapf(err, errorx.CodeCacheError, "redis get %s", key)
	}
	var value V
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return zero, false, errorx.Wrapf(err, errorx.CodeCacheError, "redis decode %s", key)
	}
	return value, true, nil
}

// Set 写入键值
func (r *RedisState[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "redis encode %s", key)
	}
	if err := r.client.Set(ctx, r.key(key), raw, ttl).Err(); err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "redis set %s", key)
	}
	return nil
}

// SetNX 键不存在时写入
func (r *RedisState[V]) SetNX(ctx context.Context, key string, value V, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, errorx.Wrapf(err, errorx.CodeCacheError, "redis encode %s", key)
	}
	ok, err := r.client.SetNX(ctx, r.key(key), raw, ttl).Result()
	if err != nil {
		return false, errorx.Wrapf(err, errorx.CodeCacheError, "redis setnx %s", key)
	}
	return ok, nil
}

// Delete 删除键
func (r *RedisState[V]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "redis del %s", key)
	}
	return nil
}
