package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"moment_social_server/internal/config"
	dao "moment_social_server/internal/dao/mysql"
	myredis "moment_social_server/internal/dao/redis"
	"moment_social_server/internal/handler"
	"moment_social_server/internal/https_server"
	"moment_social_server/internal/infrastructure/logger"
	"moment_social_server/internal/infrastructure/push"
	"moment_social_server/internal/service/chat"
	"moment_social_server/internal/service/notify"
	"moment_social_server/pkg/util/jwt"
	"moment_social_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, "dev"); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	zap.L().Info("日志初始化成功")

	// 3. 初始化数据库
	repos := dao.Init()
	zap.L().Info("数据库初始化成功")

	// 4. 初始化 Redis
	myredis.Init()
	zap.L().Info("Redis 初始化成功")

	// 5. 初始化 JWT 与雪花 ID
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)
	snowflake.Init(conf.SnowflakeConfig.MachineID)
	zap.L().Info("JWT 与雪花 ID 初始化成功")

	// 6. 组装实时会话服务（依赖注入）
	notifier := push.NewNotifier(&conf.KafkaConfig)
	presenceMirror, endDedup := chat.NewStateStores(conf.RedisConfig.SharedState, myredis.GetClient())
	chatService := chat.NewChatService(repos, notifier, presenceMirror, endDedup)
	cache := myredis.GetCacheService()
	if rc, ok := cache.(*myredis.RedisCache); ok {
		chatService.Delivery().SetCache(cache, rc)
	}
	zap.L().Info("实时会话服务初始化成功")

	// 7. 通知总线与 Handler 层
	bus := notify.NewBus()
	handlers := handler.NewHandlers(chatService, bus)
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("翻译器初始化失败", zap.Error(err))
	}

	// 8. 初始化 HTTP 服务器
	engine := https_server.Init(handlers)
	zap.L().Info("HTTP 服务器初始化成功")

	// 9. 启动服务
	host := conf.MainConfig.Host
	port := conf.MainConfig.Port
	go func() {
		if err := engine.Run(fmt.Sprintf("%s:%d", host, port)); err != nil {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 信号监听，优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("关闭服务器...")
	if err := notifier.Close(); err != nil {
		zap.L().Warn("关闭推送通道失败", zap.Error(err))
	}
	zap.L().Info("服务器已关闭")
}
