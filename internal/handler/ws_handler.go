// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 握手与认证
package handler

import (
	"context"
	"net/http"
	"strings"

	"moment_social_server/internal/service/chat"
	"moment_social_server/pkg/errorx"
	"moment_social_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	// 跨域站点也允许建立连接，鉴权靠 token
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WsHandler WebSocket 入口
type WsHandler struct {
	svc *chat.ChatService
}

// NewWsHandler 创建 WebSocket Handler
func NewWsHandler(svc *chat.ChatService) *WsHandler {
	return &WsHandler{svc: svc}
}

// Connect 建立 WebSocket 连接
// GET /ws?token=xxx，也支持 Authorization: Bearer xxx
// 凭证无效直接回 401，升级和进房都不会发生
func (h *WsHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code": errorx.CodeUnauthorized,
			"msg":  "缺少认证凭证",
		})
		return
	}

	claims, err := jwt.ParseToken(token)
	if err != nil {
		zap.L().Warn("ws auth failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{
			"code": errorx.CodeUnauthorized,
			"msg":  errorx.ErrAuthenticationFailed.Msg,
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Error("ws upgrade failed", zap.Error(err))
		return
	}

	// 升级完成后 HTTP handler 即返回，连接生命周期自己管理
	userConn := chat.NewUserConn(conn, claims.UserID, h.svc)
	userConn.Start(context.Background())
}
