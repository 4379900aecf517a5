package repository

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"moment_social_server/internal/model"
)

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建会话 Repository
func NewConversationRepository(db *gorm.DB) *conversationRepository {
	return &conversationRepository{db: db}
}

// FindByUuid 按 uuid 查找会话
func (r *conversationRepository) FindByUuid(uuid string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.Where("uuid = ?", uuid).First(&conv).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 uuid=%s", uuid)
	}
	return &conv, nil
}

// Create 创建会话
func (r *conversationRepository) Create(conv *model.Conversation) error {
	if err := r.db.Create(conv).Error; err != nil {
		return wrapDBError(err, "创建会话")
	}
	return nil
}

// TouchLastMessageAt 刷新会话最后消息时间
func (r *conversationRepository) TouchLastMessageAt(uuid string, at time.Time) error {
	if err := r.db.Model(&model.Conversation{}).Where("uuid = ?", uuid).
		Update("last_message_at", sql.NullTime{Time: at, Valid: true}).Error; err != nil {
		return wrapDBErrorf(err, "更新会话时间 uuid=%s", uuid)
	}
	return nil
}

type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository 创建会话成员 Repository
func NewParticipantRepository(db *gorm.DB) *participantRepository {
	return &participantRepository{db: db}
}

// ListUserIds 会话内全部成员的用户 uuid
func (r *participantRepository) ListUserIds(conversationId string) ([]string, error) {
	var ids []string
	if err := r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ?", conversationId).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话成员 conversation_id=%s", conversationId)
	}
	return ids, nil
}

// ListConversationIds 用户参与的全部会话 uuid
func (r *participantRepository) ListConversationIds(userId string) ([]string, error) {
	var ids []string
	if err := r.db.Model(&model.ConversationParticipant{}).
		Where("user_id = ?", userId).
		Pluck("conversation_id", &ids).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户会话 user_id=%s", userId)
	}
	return ids, nil
}

// Add 插入成员行，唯一约束冲突原样返回，由调用方用 IsDuplicateKey 判定
func (r *participantRepository) Add(p *model.ConversationParticipant) error {
	if err := r.db.Create(p).Error; err != nil {
		if IsDuplicateKey(err) {
			return err
		}
		return wrapDBError(err, "插入会话成员")
	}
	return nil
}

// Remove 删除成员行
func (r *participantRepository) Remove(conversationId, userId string) error {
	if err := r.db.Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Delete(&model.ConversationParticipant{}).Error; err != nil {
		return wrapDBErrorf(err, "删除会话成员 conversation_id=%s user_id=%s", conversationId, userId)
	}
	return nil
}

// MarkRead 推进已读水位
func (r *participantRepository) MarkRead(conversationId, userId string, at time.Time) error {
	if err := r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Update("last_read_at", sql.NullTime{Time: at, Valid: true}).Error; err != nil {
		return wrapDBErrorf(err, "更新已读水位 conversation_id=%s user_id=%s", conversationId, userId)
	}
	return nil
}

// Role 查询成员角色
func (r *participantRepository) Role(conversationId, userId string) (string, error) {
	var p model.ConversationParticipant
	if err := r.db.Select("role").
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		First(&p).Error; err != nil {
		return "", wrapDBErrorf(err, "查询成员角色 conversation_id=%s user_id=%s", conversationId, userId)
	}
	return p.Role, nil
}
