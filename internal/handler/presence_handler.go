// 本文件处理在线状态查询
package handler

import (
	"moment_social_server/internal/service/chat"

	"github.com/gin-gonic/gin"
)

// PresenceHandler 在线状态查询入口
type PresenceHandler struct {
	svc *chat.ChatService
}

// NewPresenceHandler 创建在线状态 Handler
func NewPresenceHandler(svc *chat.ChatService) *PresenceHandler {
	return &PresenceHandler{svc: svc}
}

// PresenceQueryRequest 批量在线状态查询请求
type PresenceQueryRequest struct {
	UserIds []string `json:"user_ids" binding:"required,min=1,max=100"`
}

// Query 批量查询在线状态
// POST /api/presence/query
func (h *PresenceHandler) Query(c *gin.Context) {
	var req PresenceQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	HandleSuccess(c, h.svc.Presence().GetOnline(c.Request.Context(), req.UserIds))
}
