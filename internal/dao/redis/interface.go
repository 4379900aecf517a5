package redis

import (
	"context"
	"time"
)

// CacheService 缓存服务接口
// Service 层依赖此接口而非具体 Redis 实现
type CacheService interface {
	// Set 设置键值对并指定过期时间
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Get 获取键对应的值（键不存在返回空字符串和 nil）
	Get(ctx context.Context, key string) (string, error)
}

// AsyncCacheService 异步缓存服务接口
// 缓存更新不挡消息投递路径，交给后台 Worker 执行
type AsyncCacheService interface {
	CacheService
	// SubmitTask 提交异步缓存任务
	SubmitTask(action func())
}
