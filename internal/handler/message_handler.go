// 本文件处理会话消息历史查询
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"moment_social_server/internal/service/chat"
)

// MessageHandler 消息历史查询入口
type MessageHandler struct {
	svc *chat.ChatService
}

// NewMessageHandler 创建消息 Handler
func NewMessageHandler(svc *chat.ChatService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

// History 拉取会话最近消息
// GET /api/conversations/:conversation_id/messages?limit=50
func (h *MessageHandler) History(c *gin.Context) {
	userId := c.GetString("user_id")
	conversationId := c.Param("conversation_id")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		HandleParamError(c, err)
		return
	}

	msgs, err := h.svc.Delivery().History(c.Request.Context(), userId, conversationId, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, msgs)
}
