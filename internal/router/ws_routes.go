// 本文件定义 WebSocket 相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterWebSocketRoutes 注册 WebSocket 路由
// 认证在握手阶段完成，不走 JWT 中间件（浏览器 WebSocket 无法带 Header）
func (rt *Router) RegisterWebSocketRoutes(r *gin.Engine) {
	// 连接示例: ws://host:port/ws?token=xxx
	r.GET("/ws", rt.handlers.Ws.Connect)
}
