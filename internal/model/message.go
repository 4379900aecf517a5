package model

import "gorm.io/gorm"

// 消息类型
const (
	MessageText    = "text"
	MessageImage   = "image"
	MessageAudio   = "audio"
	MessageVideo   = "video"
	MessageSticker = "sticker"
	MessageGif     = "gif"
	MessageFile    = "file"
)

// ValidMessageType 校验消息类型取值
func ValidMessageType(t string) bool {
	switch t {
	case MessageText, MessageImage, MessageAudio, MessageVideo, MessageSticker, MessageGif, MessageFile:
		return true
	}
	return false
}

// Message 消息模型，对应 message 表
type Message struct {
	gorm.Model

	// Uuid 消息唯一标识，雪花算法生成
	Uuid int64 `gorm:"column:uuid;uniqueIndex;type:bigint;not null;comment:消息雪花ID" json:"id,string"`

	// ConversationId 所属会话 uuid
	ConversationId string `gorm:"column:conversation_id;index;type:char(36);not null;comment:会话uuid" json:"conversation_id"`

	// SenderId 发送者 uuid
	SenderId string `gorm:"column:sender_id;index;type:char(36);not null;comment:发送者uuid" json:"sender_id"`

	// Type 消息类型，见上方常量
	Type string `gorm:"column:type;type:varchar(10);not null;comment:消息类型" json:"message_type"`

	// Content 文本内容，媒体消息为空
	Content string `gorm:"column:content;type:TEXT;comment:消息内容" json:"content,omitempty"`

	// FileUrl 媒体文件地址，文件先上传对象存储，这里只存访问链接
	FileUrl  string `gorm:"column:file_url;type:varchar(255);comment:文件url" json:"file_url,omitempty"`
	FileName string `gorm:"column:file_name;type:varchar(100);comment:文件名" json:"file_name,omitempty"`
	FileSize int64  `gorm:"column:file_size;comment:文件大小(字节)" json:"file_size,omitempty"`

	// ReplyToId 被回复消息的雪花 ID，0 表示非回复
	ReplyToId int64 `gorm:"column:reply_to_id;type:bigint;default:0;comment:回复消息ID" json:"reply_to_id,string,omitempty"`

	// IsEdited 是否编辑过
	IsEdited bool `gorm:"column:is_edited;not null;default:false;comment:是否编辑过" json:"is_edited"`

	// IsDeleted 软删除标记；置位时内容已清空，之后不可再修改
	IsDeleted bool `gorm:"column:is_deleted;not null;default:false;comment:是否已删除" json:"is_deleted"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "message"
}

// MessageReaction 消息表情回应，对应 message_reaction 表
type MessageReaction struct {
	gorm.Model

	MessageId int64  `gorm:"column:message_id;type:bigint;not null;uniqueIndex:uk_msg_user_emoji;comment:消息ID" json:"message_id,string"`
	UserId    string `gorm:"column:user_id;type:char(36);not null;uniqueIndex:uk_msg_user_emoji;comment:用户uuid" json:"user_id"`
	Emoji     string `gorm:"column:emoji;type:varchar(20);not null;uniqueIndex:uk_msg_user_emoji;comment:表情" json:"emoji"`
}

// TableName 指定表名
func (MessageReaction) TableName() string {
	return "message_reaction"
}
