// 本文件定义会话消息历史路由
package router

import (
	"github.com/gin-gonic/gin"

	"moment_social_server/internal/infrastructure/middleware"
)

// RegisterMessageRoutes 注册消息历史路由（需要认证）
func (rt *Router) RegisterMessageRoutes(r *gin.Engine) {
	group := r.Group("/api/conversations", middleware.JWTAuth())
	group.GET("/:conversation_id/messages", rt.handlers.Message.History)
}
