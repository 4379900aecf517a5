package repository

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"moment_social_server/internal/model"
)

type callRepository struct {
	db *gorm.DB
}

// NewCallRepository 创建通话记录 Repository
func NewCallRepository(db *gorm.DB) *callRepository {
	return &callRepository{db: db}
}

// Create 写入通话记录
func (r *callRepository) Create(record *model.CallRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return wrapDBError(err, "创建通话记录")
	}
	return nil
}

// UpdateLatest 修正该会话同类型最近一条记录的结果字段
// offer 时预写的 missed 记录在接听/挂断时被这里改写
func (r *callRepository) UpdateLatest(conversationId, callType, status string, endedAt time.Time, duration int) error {
	updates := map[string]any{"status": status}
	if !endedAt.IsZero() {
		updates["ended_at"] = sql.NullTime{Time: endedAt, Valid: true}
		updates["duration"] = duration
	}
	if err := r.db.Model(&model.CallRecord{}).
		Where("conversation_id = ? AND call_type = ?", conversationId, callType).
		Order("created_at DESC").Limit(1).
		Updates(updates).Error; err != nil {
		return wrapDBErrorf(err, "更新通话记录 conversation_id=%s", conversationId)
	}
	return nil
}

type presenceRepository struct {
	db *gorm.DB
}

// NewPresenceRepository 创建在线状态 Repository
func NewPresenceRepository(db *gorm.DB) *presenceRepository {
	return &presenceRepository{db: db}
}

// Upsert 按 user_id 插入或更新在线状态
func (r *presenceRepository) Upsert(userId string, isOnline bool, lastSeen time.Time) error {
	res := r.db.Model(&model.UserPresence{}).Where("user_id = ?", userId).
		Updates(map[string]any{"is_online": isOnline, "last_seen_at": lastSeen})
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "更新在线状态 user_id=%s", userId)
	}
	if res.RowsAffected == 0 {
		p := &model.UserPresence{UserId: userId, IsOnline: isOnline, LastSeenAt: lastSeen}
		if err := r.db.Create(p).Error; err != nil {
			// 并发首次上线可能撞唯一约束，重试为更新
			if IsDuplicateKey(err) {
				return r.Upsert(userId, isOnline, lastSeen)
			}
			return wrapDBErrorf(err, "插入在线状态 user_id=%s", userId)
		}
	}
	return nil
}

// FindByUserIds 批量查询
func (r *presenceRepository) FindByUserIds(userIds []string) ([]model.UserPresence, error) {
	var rows []model.UserPresence
	if err := r.db.Where("user_id IN ?", userIds).Find(&rows).Error; err != nil {
		return nil, wrapDBError(err, "查询在线状态")
	}
	return rows, nil
}
