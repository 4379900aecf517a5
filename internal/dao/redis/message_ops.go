package redis

import (
	"context"
	"time"

	"moment_social_server/pkg/errorx"
)

// 会话消息缓存：每个会话一个 List，只保留最近若干条
const (
	messageListKeyPrefix = "conv:messages:"
	messageListMaxLen    = 100
	messageListTTL       = 24 * time.Hour
)

// MessageCache 会话最近消息缓存
type MessageCache interface {
	// AppendMessage 追加一条消息 JSON 并裁剪到最大长度
	AppendMessage(ctx context.Context, conversationId string, payload string) error
	// RecentMessages 读取最近的消息 JSON 列表（时间正序）
	RecentMessages(ctx context.Context, conversationId string, limit int64) ([]string, error)
}

// AppendMessage 追加消息到会话缓存
func (r *RedisCache) AppendMessage(ctx context.Context, conversationId string, payload string) error {
	key := messageListKeyPrefix + conversationId
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, -messageListMaxLen, -1)
	pipe.Expire(ctx, key, messageListTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "append message cache %s", conversationId)
	}
	return nil
}

// RecentMessages 读取会话缓存中最近的消息
func (r *RedisCache) RecentMessages(ctx context.Context, conversationId string, limit int64) ([]string, error) {
	key := messageListKeyPrefix + conversationId
	if limit <= 0 || limit > messageListMaxLen {
		limit = messageListMaxLen
	}
	rows, err := r.client.LRange(ctx, key, -limit, -1).Result()
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeCacheError, "read message cache %s", conversationId)
	}
	return rows, nil
}
