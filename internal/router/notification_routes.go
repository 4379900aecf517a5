// 本文件定义 SSE 通知流与在线状态查询路由
package router

import (
	"github.com/gin-gonic/gin"

	"moment_social_server/internal/infrastructure/middleware"
)

// RegisterNotificationRoutes 注册通知流路由（需要认证）
func (rt *Router) RegisterNotificationRoutes(r *gin.Engine) {
	group := r.Group("/notifications", middleware.JWTAuth())
	group.GET("/stream", rt.handlers.Sse.Stream)
}

// RegisterPresenceRoutes 注册在线状态路由（需要认证）
func (rt *Router) RegisterPresenceRoutes(r *gin.Engine) {
	group := r.Group("/api/presence", middleware.JWTAuth())
	group.POST("/query", rt.handlers.Presence.Query)
}
