// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"github.com/gin-gonic/gin"

	"moment_social_server/internal/handler"
)

// Router 路由管理器，持有 Handler 聚合
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
// 在 https_server.Init() 中调用
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	rt.RegisterWebSocketRoutes(r)    // WebSocket 路由
	rt.RegisterNotificationRoutes(r) // SSE 通知流路由
	rt.RegisterPresenceRoutes(r)     // 在线状态路由
	rt.RegisterMessageRoutes(r)      // 消息历史路由
}
