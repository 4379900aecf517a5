package model

import (
	"time"

	"gorm.io/gorm"
)

// UserPresence 在线状态模型，对应 user_presence 表
// 内存中有一份镜像用于快速广播，这里是持久化副本
type UserPresence struct {
	gorm.Model

	// UserId 用户 uuid，一人一行
	UserId string `gorm:"column:user_id;uniqueIndex;type:char(36);not null;comment:用户uuid" json:"user_id"`

	// IsOnline 是否在线（至少有一条打开的连接）
	IsOnline bool `gorm:"column:is_online;not null;default:false;comment:是否在线" json:"is_online"`

	// LastSeenAt 最近活跃时间，下线时为下线时刻
	LastSeenAt time.Time `gorm:"column:last_seen_at;type:datetime;not null;comment:最近活跃时间" json:"last_seen"`
}

// TableName 指定表名
func (UserPresence) TableName() string {
	return "user_presence"
}
