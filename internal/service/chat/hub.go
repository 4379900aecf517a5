package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"

	dao "moment_social_server/internal/dao/mysql"
)

// Hub 连接与房间注册表
// 两类房间：会话房间（conversation id 维度）和用户房间（user id 维度），
// 聊天事件同时走两条路径投递，接收端按消息 id 幂等
type Hub struct {
	mu sync.RWMutex

	// users: userId -> connId -> conn，用户房间就是这张表的一行
	users map[string]map[string]*UserConn
	// conversations: conversationId -> connId -> conn，首次 join 时懒创建
	conversations map[string]map[string]*UserConn

	participantRepo dao.ParticipantRepository
	presence        *PresenceTracker
}

// NewHub 创建 Hub
func NewHub(participantRepo dao.ParticipantRepository, presence *PresenceTracker) *Hub {
	return &Hub{
		users:           make(map[string]map[string]*UserConn),
		conversations:   make(map[string]map[string]*UserConn),
		participantRepo: participantRepo,
		presence:        presence,
	}
}

// Register 注册连接
// 用户的第一条连接把在线状态翻转为 online，并自动加入其参与的全部会话房间
func (h *Hub) Register(ctx context.Context, c *UserConn) {
	h.mu.Lock()
	conns, ok := h.users[c.UserId]
	if !ok {
		conns = make(map[string]*UserConn)
		h.users[c.UserId] = conns
	}
	first := len(conns) == 0
	conns[c.ConnId] = c
	h.mu.Unlock()

	// 自动加入参与的会话房间，断线重连后房间成员从库里重建
	convIds, err := h.participantRepo.ListConversationIds(c.UserId)
	if err != nil {
		zap.L().Warn("list conversations on register failed",
			zap.String("user_id", c.UserId), zap.Error(err))
	} else {
		h.mu.Lock()
		for _, convId := range convIds {
			h.addToRoomLocked(convId, c)
		}
		h.mu.Unlock()
	}

	if first {
		h.presence.SetOnline(ctx, c.UserId, true)
	}
}

// Unregister 注销连接
// 最后一条连接关闭时把在线状态翻转为 offline 并记录 lastSeen
func (h *Hub) Unregister(ctx context.Context, c *UserConn) {
	h.mu.Lock()
	if conns, ok := h.users[c.UserId]; ok {
		delete(conns, c.ConnId)
		if len(conns) == 0 {
			delete(h.users, c.UserId)
		}
	}
	last := len(h.users[c.UserId]) == 0
	for convId, room := range h.conversations {
		delete(room, c.ConnId)
		if len(room) == 0 {
			delete(h.conversations, convId)
		}
	}
	h.mu.Unlock()

	if last {
		h.presence.SetOnline(ctx, c.UserId, false)
	}
}

// JoinConversation 显式加入会话房间
// 非参与者静默忽略，不下发错误
func (h *Hub) JoinConversation(c *UserConn, conversationId string) {
	userIds, err := h.participantRepo.ListUserIds(conversationId)
	if err != nil {
		zap.L().Warn("join conversation lookup failed",
			zap.String("conversation_id", conversationId), zap.Error(err))
		return
	}
	if !containsString(userIds, c.UserId) {
		zap.L().Debug("non-participant join ignored",
			zap.String("user_id", c.UserId), zap.String("conversation_id", conversationId))
		return
	}
	h.mu.Lock()
	h.addToRoomLocked(conversationId, c)
	h.mu.Unlock()
}

// LeaveConversation 离开会话房间
func (h *Hub) LeaveConversation(c *UserConn, conversationId string) {
	h.mu.Lock()
	if room, ok := h.conversations[conversationId]; ok {
		delete(room, c.ConnId)
		if len(room) == 0 {
			delete(h.conversations, conversationId)
		}
	}
	h.mu.Unlock()
}

// AddUserToRoom 把某用户当前所有连接加入会话房间（拉人进群时用）
func (h *Hub) AddUserToRoom(userId, conversationId string) {
	h.mu.Lock()
	for _, c := range h.users[userId] {
		h.addToRoomLocked(conversationId, c)
	}
	h.mu.Unlock()
}

// RemoveUserFromRoom 把某用户当前所有连接移出会话房间
func (h *Hub) RemoveUserFromRoom(userId, conversationId string) {
	h.mu.Lock()
	if room, ok := h.conversations[conversationId]; ok {
		for connId := range h.users[userId] {
			delete(room, connId)
		}
		if len(room) == 0 {
			delete(h.conversations, conversationId)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) addToRoomLocked(conversationId string, c *UserConn) {
	room, ok := h.conversations[conversationId]
	if !ok {
		room = make(map[string]*UserConn)
		h.conversations[conversationId] = room
	}
	room[c.ConnId] = c
}

// BroadcastToConversation 向会话房间内所有连接广播
func (h *Hub) BroadcastToConversation(conversationId string, message []byte) {
	h.BroadcastToConversationExcept(conversationId, "", message)
}

// BroadcastToConversationExcept 向会话房间广播，排除指定连接
func (h *Hub) BroadcastToConversationExcept(conversationId, exceptConnId string, message []byte) {
	h.mu.RLock()
	room := h.conversations[conversationId]
	conns := make([]*UserConn, 0, len(room))
	for connId, c := range room {
		if connId == exceptConnId {
			continue
		}
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.send(message)
	}
}

// BroadcastToUser 向用户房间（该用户的全部连接）广播
func (h *Hub) BroadcastToUser(userId string, message []byte) {
	h.BroadcastToUserExcept(userId, "", message)
}

// BroadcastToUserExcept 向用户房间广播，排除指定连接
func (h *Hub) BroadcastToUserExcept(userId, exceptConnId string, message []byte) {
	h.mu.RLock()
	conns := make([]*UserConn, 0, len(h.users[userId]))
	for connId, c := range h.users[userId] {
		if connId == exceptConnId {
			continue
		}
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.send(message)
	}
}

// OnlineConnCount 某用户当前连接数
func (h *Hub) OnlineConnCount(userId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userId])
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
