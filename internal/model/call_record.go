package model

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// 通话类型
const (
	CallAudio = "audio"
	CallVideo = "video"
)

// 通话结果
const (
	CallMissed   = "missed"   // 未接（offer 时预写，接听后修正）
	CallAnswered = "answered"
	CallDeclined = "declined"
)

// CallRecord 通话记录模型，对应 call_record 表
// 信令会话只存在于内存，通话结束后由这条记录留底
type CallRecord struct {
	gorm.Model

	// Uuid 记录唯一标识
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(36);comment:记录uuid" json:"id"`

	// ConversationId 所属会话
	ConversationId string `gorm:"column:conversation_id;index;type:char(36);not null;comment:会话uuid" json:"conversation_id"`

	// CallerId 主叫用户 uuid
	CallerId string `gorm:"column:caller_id;type:char(36);not null;comment:主叫uuid" json:"caller_id"`

	// CallType audio / video
	CallType string `gorm:"column:call_type;type:varchar(10);not null;comment:通话类型" json:"call_type"`

	// Status missed / answered / declined
	Status string `gorm:"column:status;type:varchar(10);not null;comment:通话结果" json:"status"`

	// StartedAt / EndedAt 起止时间
	StartedAt time.Time    `gorm:"column:started_at;type:datetime;not null;comment:开始时间" json:"started_at"`
	EndedAt   sql.NullTime `gorm:"column:ended_at;type:datetime;comment:结束时间" json:"ended_at,omitempty"`

	// Duration 通话时长（秒）
	Duration int `gorm:"column:duration;comment:时长秒" json:"duration"`
}

// TableName 指定表名
func (CallRecord) TableName() string {
	return "call_record"
}
