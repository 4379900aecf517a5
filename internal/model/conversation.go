package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// 会话类型
const (
	ConversationDirect = "direct" // 双人会话
	ConversationGroup  = "group"  // 群组会话
)

// Conversation 会话模型，对应 conversation 表
type Conversation struct {
	gorm.Model

	// Uuid 会话唯一标识
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(36);comment:会话uuid" json:"id"`

	// Type 会话类型：direct 双人 / group 群组
	Type string `gorm:"column:type;type:varchar(10);not null;comment:会话类型" json:"type"`

	// Name 群名，双人会话为空
	Name string `gorm:"column:name;type:varchar(100);comment:群名" json:"name,omitempty"`

	// CreatedBy 创建者用户 uuid
	CreatedBy string `gorm:"column:created_by;type:char(36);comment:创建者" json:"created_by"`

	// LastMessageAt 最后消息时间，会话列表排序用
	LastMessageAt sql.NullTime `gorm:"column:last_message_at;type:datetime;comment:最近消息时间" json:"-"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversation"
}

// ConversationParticipant 会话成员模型，对应 conversation_participant 表
// (conversation_id, user_id) 唯一索引是双人会话自修复逻辑的前提：
// 并发补插成员行时由该约束裁决，冲突按成功处理
type ConversationParticipant struct {
	gorm.Model

	ConversationId string `gorm:"column:conversation_id;type:char(36);not null;uniqueIndex:uk_conv_user;comment:会话uuid" json:"conversation_id"`
	UserId         string `gorm:"column:user_id;type:char(36);not null;uniqueIndex:uk_conv_user;index;comment:成员uuid" json:"user_id"`

	// Role 群组内角色，owner 可以移除成员；双人会话不使用
	Role string `gorm:"column:role;type:varchar(10);default:member;comment:角色" json:"role"`

	// JoinedAt 加入时间
	JoinedAt sql.NullTime `gorm:"column:joined_at;type:datetime;comment:加入时间" json:"-"`

	// LastReadAt 已读水位，未读数从这里算
	LastReadAt sql.NullTime `gorm:"column:last_read_at;type:datetime;comment:已读时间" json:"-"`
}

// TableName 指定表名
func (ConversationParticipant) TableName() string {
	return "conversation_participant"
}
