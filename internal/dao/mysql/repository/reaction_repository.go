package repository

import (
	"gorm.io/gorm"

	"moment_social_server/internal/model"
)

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository 创建表情回应 Repository
func NewReactionRepository(db *gorm.DB) *reactionRepository {
	return &reactionRepository{db: db}
}

// Upsert 幂等写入 (message, user, emoji)，重复回应不报错
func (r *reactionRepository) Upsert(reaction *model.MessageReaction) error {
	if err := r.db.Create(reaction).Error; err != nil {
		if IsDuplicateKey(err) {
			return nil
		}
		return wrapDBError(err, "写入表情回应")
	}
	return nil
}

// Delete 删除回应
func (r *reactionRepository) Delete(messageId int64, userId, emoji string) error {
	if err := r.db.Where("message_id = ? AND user_id = ? AND emoji = ?", messageId, userId, emoji).
		Delete(&model.MessageReaction{}).Error; err != nil {
		return wrapDBErrorf(err, "删除表情回应 message_id=%d", messageId)
	}
	return nil
}
