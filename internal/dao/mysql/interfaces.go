// Package mysql 数据访问层：Repository 接口定义
// Service 层依赖这些接口而非具体 GORM 实现，测试时注入桩实现
package mysql

import (
	"time"

	"moment_social_server/internal/model"
)

// UserRepository 用户资料读取
type UserRepository interface {
	// FindByUuid 按 uuid 查找用户
	FindByUuid(uuid string) (*model.UserInfo, error)
	// Create 创建用户（种子数据、联调用）
	Create(user *model.UserInfo) error
}

// ConversationRepository 会话读取与更新
type ConversationRepository interface {
	// FindByUuid 按 uuid 查找会话，不存在返回 CodeNotFound
	FindByUuid(uuid string) (*model.Conversation, error)
	// Create 创建会话
	Create(conv *model.Conversation) error
	// TouchLastMessageAt 刷新会话最后消息时间
	TouchLastMessageAt(uuid string, at time.Time) error
}

// ParticipantRepository 会话成员管理
type ParticipantRepository interface {
	// ListUserIds 会话内全部成员的用户 uuid
	ListUserIds(conversationId string) ([]string, error)
	// ListConversationIds 用户参与的全部会话 uuid
	ListConversationIds(userId string) ([]string, error)
	// Add 插入成员行
	// 撞到 (conversation_id, user_id) 唯一约束时返回的错误满足 IsDuplicateKey，
	// 调用方（双人会话自修复）把这种冲突当成功处理
	Add(p *model.ConversationParticipant) error
	// Remove 删除成员行
	Remove(conversationId, userId string) error
	// MarkRead 推进已读水位
	MarkRead(conversationId, userId string, at time.Time) error
	// Role 查询成员角色，非成员返回 CodeNotFound
	Role(conversationId, userId string) (string, error)
}

// MessageRepository 消息持久化
type MessageRepository interface {
	// Create 写入消息
	Create(message *model.Message) error
	// FindByUuid 按雪花 ID 查找
	FindByUuid(uuid int64) (*model.Message, error)
	// Edit 更新内容并置 is_edited
	Edit(uuid int64, content string) error
	// SoftDelete 置 is_deleted 并清空内容
	SoftDelete(uuid int64) error
	// ListByConversation 按会话取最近 limit 条消息（时间正序）
	ListByConversation(conversationId string, limit int) ([]model.Message, error)
}

// CallRepository 通话记录持久化
type CallRepository interface {
	// Create 写入通话记录
	Create(record *model.CallRecord) error
	// UpdateLatest 修正该会话同类型最近一条记录的结果字段
	UpdateLatest(conversationId, callType, status string, endedAt time.Time, duration int) error
}

// PresenceRepository 在线状态持久化
type PresenceRepository interface {
	// Upsert 按 user_id 插入或更新在线状态
	Upsert(userId string, isOnline bool, lastSeen time.Time) error
	// FindByUserIds 批量查询
	FindByUserIds(userIds []string) ([]model.UserPresence, error)
}

// ReactionRepository 消息表情回应
type ReactionRepository interface {
	// Upsert 幂等写入 (message, user, emoji)
	Upsert(r *model.MessageReaction) error
	// Delete 删除回应
	Delete(messageId int64, userId, emoji string) error
}
