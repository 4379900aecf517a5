// Package handler 提供 HTTP 请求处理器
// 本文件定义 Handler 聚合结构和构造函数
package handler

import (
	"moment_social_server/internal/service/chat"
	"moment_social_server/internal/service/notify"
)

// Handlers 聚合所有 Handler 实例
// 作为依赖注入的入口，Router 层通过此结构访问各个 Handler
type Handlers struct {
	Ws       *WsHandler
	Sse      *SseHandler
	Presence *PresenceHandler
	Message  *MessageHandler
}

// NewHandlers 创建并注入所有 Handler 实例
func NewHandlers(svc *chat.ChatService, bus *notify.Bus) *Handlers {
	return &Handlers{
		Ws:       NewWsHandler(svc),
		Sse:      NewSseHandler(bus),
		Presence: NewPresenceHandler(svc),
		Message:  NewMessageHandler(svc),
	}
}
