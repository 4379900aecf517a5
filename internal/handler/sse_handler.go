// 本文件处理 SSE 通知流
// 点赞、评论、关注等非聊天通知走这条单向流，与 WebSocket 聊天通道独立
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"moment_social_server/internal/config"
	"moment_social_server/internal/service/notify"
	"moment_social_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SseHandler 通知流入口
type SseHandler struct {
	bus *notify.Bus
}

// NewSseHandler 创建 SSE Handler
func NewSseHandler(bus *notify.Bus) *SseHandler {
	return &SseHandler{bus: bus}
}

// Stream 订阅通知流
// GET /notifications/stream（走 JWT 中间件，user_id 从上下文取）
// 周期性发心跳注释帧探测客户端断开，断开后清理订阅
func (h *SseHandler) Stream(c *gin.Context) {
	userId := c.GetString("user_id")
	if userId == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code": errorx.CodeUnauthorized,
			"msg":  "请先登录",
		})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code": errorx.CodeServerBusy,
			"msg":  "streaming unsupported",
		})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	sub := h.bus.Subscribe(userId)
	defer h.bus.Unsubscribe(sub)

	heartbeat := config.GetConfig().SSEConfig.HeartbeatSeconds
	if heartbeat <= 0 {
		heartbeat = 30
	}
	ticker := time.NewTicker(time.Duration(heartbeat) * time.Second)
	defer ticker.Stop()

	// 先发一帧确认连接
	fmt.Fprintf(c.Writer, ": connected\n\n")
	flusher.Flush()

	zap.L().Info("sse stream opened", zap.String("user_id", userId), zap.String("sub_id", sub.Id))
	for {
		select {
		case <-c.Request.Context().Done():
			zap.L().Info("sse stream closed", zap.String("user_id", userId), zap.String("sub_id", sub.Id))
			return
		case <-ticker.C:
			fmt.Fprintf(c.Writer, ": heartbeat\n\n")
			flusher.Flush()
		case ev, ok := <-sub.Ch:
			if !ok {
				return
			}
			raw, err := json.Marshal(ev)
			if err != nil {
				zap.L().Error("marshal notify event failed", zap.Error(err))
				continue
			}
			fmt.Fprintf(c.Writer, "id: %s\nevent: %s\ndata: %s\n\n", ev.Id, ev.Type, raw)
			flusher.Flush()
		}
	}
}
