// Package redis 提供 Redis 连接初始化与缓存服务
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"strconv"

	"github.com/redis/go-redis/v9"

	"moment_social_server/internal/config"
)

// redisClient 全局 Redis 客户端实例（包内可见）
var redisClient *redis.Client

// cacheService 全局缓存服务实例
var cacheService AsyncCacheService

// Init 初始化 Redis 连接
func Init() {
	conf := config.GetConfig()
	addr := conf.RedisConfig.Host + ":" + strconv.Itoa(conf.RedisConfig.Port)

	redisClient = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: conf.RedisConfig.Password,
		DB:       conf.RedisConfig.Db,
		// 连接池配置
		PoolSize:     50,
		MinIdleConns: 15,
	})

	// 15 个异步 Worker，缓冲区 3000，多个 Service 共享
	cacheService = NewRedisCache(redisClient, 15, 3000)
}

// GetCacheService 获取缓存服务实例，供 Service 层依赖注入
func GetCacheService() AsyncCacheService {
	return cacheService
}

// GetClient 获取底层客户端，SharedState 的 Redis 实现复用这条连接
func GetClient() *redis.Client {
	return redisClient
}
