package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	dao "moment_social_server/internal/dao/mysql"
	"moment_social_server/internal/infrastructure/state"
)

// presenceEntry 在线状态的共享内存镜像条目
type presenceEntry struct {
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// ConversationFanout 在线状态变更的广播出口，由 Hub 实现
type ConversationFanout interface {
	BroadcastToConversation(conversationId string, message []byte)
}

// PresenceTracker 在线状态跟踪
// 状态落库（UserPresence 表）同时写入 SharedState 镜像，
// 每次真实翻转向该用户参与的所有会话房间广播 user_online_status
type PresenceTracker struct {
	presenceRepo    dao.PresenceRepository
	participantRepo dao.ParticipantRepository
	mirror          state.SharedState[presenceEntry]
	fanout          ConversationFanout

	now func() time.Time
}

// NewPresenceTracker 创建在线状态跟踪器
func NewPresenceTracker(presenceRepo dao.PresenceRepository, participantRepo dao.ParticipantRepository, mirror state.SharedState[presenceEntry]) *PresenceTracker {
	return &PresenceTracker{
		presenceRepo:    presenceRepo,
		participantRepo: participantRepo,
		mirror:          mirror,
		now:             time.Now,
	}
}

// SetFanout 注入广播出口（Hub 和 Tracker 互相引用，构造后注入）
func (p *PresenceTracker) SetFanout(fanout ConversationFanout) {
	p.fanout = fanout
}

// SetOnline 设置在线状态
// 重复设置同一状态只刷新 lastSeen，不重复广播
func (p *PresenceTracker) SetOnline(ctx context.Context, userId string, isOnline bool) {
	prev, hit, err := p.mirror.Get(ctx, userId)
	if err != nil {
		zap.L().Warn("presence mirror get failed", zap.String("user_id", userId), zap.Error(err))
	}

	entry := presenceEntry{IsOnline: isOnline, LastSeenAt: p.now()}
	if err := p.mirror.Set(ctx, userId, entry, 0); err != nil {
		zap.L().Warn("presence mirror set failed", zap.String("user_id", userId), zap.Error(err))
	}
	if err := p.presenceRepo.Upsert(userId, isOnline, entry.LastSeenAt); err != nil {
		zap.L().Warn("presence upsert failed", zap.String("user_id", userId), zap.Error(err))
	}

	// 状态没有翻转就不广播
	if hit && prev.IsOnline == isOnline {
		return
	}

	frame, err := encodeOutbound(EventUserOnlineStatus, UserOnlineStatusPayload{
		UserId:     userId,
		IsOnline:   isOnline,
		LastSeenAt: entry.LastSeenAt,
	})
	if err != nil {
		zap.L().Error("encode user_online_status failed", zap.Error(err))
		return
	}

	convIds, err := p.participantRepo.ListConversationIds(userId)
	if err != nil {
		zap.L().Warn("list conversations for presence broadcast failed",
			zap.String("user_id", userId), zap.Error(err))
		return
	}
	if p.fanout == nil {
		return
	}
	for _, convId := range convIds {
		p.fanout.BroadcastToConversation(convId, frame)
	}
}

// GetOnline 批量查询在线状态，镜像未命中时回源数据库并回填
func (p *PresenceTracker) GetOnline(ctx context.Context, userIds []string) map[string]presenceEntry {
	result := make(map[string]presenceEntry, len(userIds))
	var misses []string
	for _, uid := range userIds {
		entry, hit, err := p.mirror.Get(ctx, uid)
		if err != nil || !hit {
			misses = append(misses, uid)
			continue
		}
		result[uid] = entry
	}

	if len(misses) > 0 {
		rows, err := p.presenceRepo.FindByUserIds(misses)
		if err != nil {
			zap.L().Warn("presence db lookup failed", zap.Error(err))
		} else {
			for _, row := range rows {
				entry := presenceEntry{IsOnline: row.IsOnline, LastSeenAt: row.LastSeenAt}
				result[row.UserId] = entry
				if err := p.mirror.Set(ctx, row.UserId, entry, 0); err != nil {
					zap.L().Debug("presence mirror backfill failed", zap.Error(err))
				}
			}
		}
	}

	// 没有任何记录的用户视为离线
	for _, uid := range userIds {
		if _, ok := result[uid]; !ok {
			result[uid] = presenceEntry{IsOnline: false}
		}
	}
	return result
}

// IsOnline 单用户在线查询
func (p *PresenceTracker) IsOnline(ctx context.Context, userId string) bool {
	return p.GetOnline(ctx, []string{userId})[userId].IsOnline
}
