package repository

import (
	"gorm.io/gorm"

	"moment_social_server/internal/model"
	"moment_social_server/pkg/errorx"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) *messageRepository {
	return &messageRepository{db: db}
}

// Create 写入消息
func (r *messageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return wrapDBError(err, "创建消息")
	}
	return nil
}

// FindByUuid 按雪花 ID 查找
func (r *messageRepository) FindByUuid(uuid int64) (*model.Message, error) {
	var message model.Message
	if err := r.db.Where("uuid = ?", uuid).First(&message).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 uuid=%d", uuid)
	}
	return &message, nil
}

// Edit 更新内容并置 is_edited
// 已删除的消息内容不可再修改
func (r *messageRepository) Edit(uuid int64, content string) error {
	res := r.db.Model(&model.Message{}).
		Where("uuid = ? AND is_deleted = ?", uuid, false).
		Updates(map[string]any{"content": content, "is_edited": true})
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "编辑消息 uuid=%d", uuid)
	}
	if res.RowsAffected == 0 {
		return errorx.Newf(errorx.CodeNotFound, "消息不存在或已删除 uuid=%d", uuid)
	}
	return nil
}

// SoftDelete 置 is_deleted 并清空内容
func (r *messageRepository) SoftDelete(uuid int64) error {
	if err := r.db.Model(&model.Message{}).Where("uuid = ?", uuid).
		Updates(map[string]any{"is_deleted": true, "content": ""}).Error; err != nil {
		return wrapDBErrorf(err, "删除消息 uuid=%d", uuid)
	}
	return nil
}

// ListByConversation 按会话取最近 limit 条消息（时间正序，过滤已删除）
func (r *messageRepository) ListByConversation(conversationId string, limit int) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("conversation_id = ? AND is_deleted = ?", conversationId, false).
		Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 conversation_id=%s", conversationId)
	}
	// 倒序查出来再翻转为时间正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
