package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	dao "moment_social_server/internal/dao/mysql"
	"moment_social_server/internal/dao/mysql/repository"
	redisdao "moment_social_server/internal/dao/redis"
	"moment_social_server/internal/infrastructure/push"
	"moment_social_server/internal/model"
	"moment_social_server/pkg/constants"
	"moment_social_server/pkg/errorx"
	"moment_social_server/pkg/util/snowflake"
)

// DeliveryService 消息投递管道
// 成员校验（含双人会话自修复）→ 落库 → 双路径广播 → 旁路推送与缓存
type DeliveryService struct {
	repos    *dao.Repositories
	hub      *Hub
	presence *PresenceTracker
	notifier push.Notifier

	// cache 异步缓存，可为 nil（测试或未启用 Redis 时）
	cache    redisdao.AsyncCacheService
	msgCache redisdao.MessageCache

	now func() time.Time
}

// NewDeliveryService 创建投递管道
func NewDeliveryService(repos *dao.Repositories, hub *Hub, presence *PresenceTracker, notifier push.Notifier) *DeliveryService {
	return &DeliveryService{
		repos:    repos,
		hub:      hub,
		presence: presence,
		notifier: notifier,
		now:      time.Now,
	}
}

// SetCache 注入异步缓存（可选）
func (d *DeliveryService) SetCache(cache redisdao.AsyncCacheService, msgCache redisdao.MessageCache) {
	d.cache = cache
	d.msgCache = msgCache
}

// Send 投递一条消息
// c 为发送方连接，ack 回给这条连接；信令合成消息也复用此管道
func (d *DeliveryService) Send(ctx context.Context, c *UserConn, req *SendMessage) (*MessagePayload, error) {
	senderId := c.UserId

	// 1. 会话存在性
	conv, err := d.repos.Conversation.FindByUuid(req.ConversationId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.ErrConversationNotFound
		}
		return nil, err
	}
	if !model.ValidMessageType(req.Type) {
		return nil, errorx.ErrInvalidParam
	}

	// 2. 成员校验与双人会话自修复
	participantIds, err := d.ensureParticipant(conv, senderId)
	if err != nil {
		return nil, err
	}

	// 3. 回复消息水合
	var replyToId int64
	var replyTo *MessagePayload
	if req.ReplyToId != "" {
		replyToId, err = strconv.ParseInt(req.ReplyToId, 10, 64)
		if err != nil {
			return nil, errorx.Wrap(err, errorx.CodeInvalidParam, "reply_to_id 格式错误")
		}
		if origin, err := d.repos.Message.FindByUuid(replyToId); err != nil {
			// 被回复消息不存在不阻断发送
			zap.L().Debug("reply-to message not found", zap.Int64("reply_to_id", replyToId))
			replyToId = 0
		} else {
			replyTo = d.toPayload(origin, nil)
		}
	}

	// 4. 落库
	now := d.now()
	msg := &model.Message{
		Uuid:           snowflake.GenerateID(),
		ConversationId: conv.Uuid,
		SenderId:       senderId,
		Type:           req.Type,
		Content:        req.Content,
		FileUrl:        req.FileUrl,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		ReplyToId:      replyToId,
	}
	if err := d.repos.Message.Create(msg); err != nil {
		return nil, err
	}
	if err := d.repos.Conversation.TouchLastMessageAt(conv.Uuid, now); err != nil {
		zap.L().Warn("touch last_message_at failed", zap.String("conversation_id", conv.Uuid), zap.Error(err))
	}
	// 发送方视角这条消息即已读
	if err := d.repos.Participant.MarkRead(conv.Uuid, senderId, now); err != nil {
		zap.L().Warn("mark read failed", zap.String("user_id", senderId), zap.Error(err))
	}

	// 5. 发送者资料快照
	sender := d.senderSnapshot(ctx, senderId)

	payload := d.toPayload(msg, sender)
	payload.ReplyTo = replyTo

	// 6. 双路径广播：会话房间一次 + 每个成员的用户房间一次，接收端按 id 幂等
	d.fanoutNewMessage(c, participantIds, payload)

	// 7. 旁路：离线成员推送 + 会话消息缓存，失败都不影响投递结果
	d.notifyOffline(ctx, participantIds, senderId, sender, payload)
	d.cacheMessage(payload)

	return payload, nil
}

// ensureParticipant 成员校验
// 双人会话允许成员行缺失（0/1 行）时补插发送者，唯一约束冲突当成功；
// 成员行已满且发送者不在其中才是真正的越权
func (d *DeliveryService) ensureParticipant(conv *model.Conversation, senderId string) ([]string, error) {
	participantIds, err := d.repos.Participant.ListUserIds(conv.Uuid)
	if err != nil {
		return nil, err
	}

	if conv.Type == model.ConversationDirect && len(participantIds) > 2 {
		return nil, errorx.ErrInvalidConversation
	}

	if containsString(participantIds, senderId) {
		return participantIds, nil
	}

	if conv.Type == model.ConversationDirect && len(participantIds) < 2 {
		// 懒创建导致只有发起方的成员行落了库，补插发送者自己的行
		err := d.repos.Participant.Add(&model.ConversationParticipant{
			ConversationId: conv.Uuid,
			UserId:         senderId,
			Role:           "member",
			JoinedAt:       sql.NullTime{Time: d.now(), Valid: true},
		})
		if err != nil && !repository.IsDuplicateKey(err) {
			return nil, errorx.Wrap(err, errorx.CodeDBError, "补插会话成员失败")
		}
		// 冲突说明并发请求已经补上了，同样视为成功
		if !containsString(participantIds, senderId) {
			participantIds = append(participantIds, senderId)
		}
		return participantIds, nil
	}

	return nil, errorx.ErrNotParticipant
}

// fanoutNewMessage 广播 new_message / message_sent / conversation_updated
func (d *DeliveryService) fanoutNewMessage(c *UserConn, participantIds []string, payload *MessagePayload) {
	frame, err := encodeOutbound(EventNewMessage, payload)
	if err != nil {
		zap.L().Error("encode new_message failed", zap.Error(err))
		return
	}
	d.hub.BroadcastToConversation(payload.ConversationId, frame)
	for _, uid := range participantIds {
		d.hub.BroadcastToUser(uid, frame)
	}

	// ack 只回发送连接
	if c != nil {
		if ack, err := encodeOutbound(EventMessageSent, payload); err == nil {
			c.send(ack)
		}
	}

	// 接收方刷新会话列表
	updated, err := encodeOutbound(EventConversationUpdated, ConversationUpdatedPayload{
		ConversationId: payload.ConversationId,
		Message:        payload,
	})
	if err != nil {
		return
	}
	for _, uid := range participantIds {
		if uid == payload.SenderId {
			continue
		}
		d.hub.BroadcastToUser(uid, updated)
	}
}

// notifyOffline 给不在线的成员发离线推送，逐个隔离失败
func (d *DeliveryService) notifyOffline(ctx context.Context, participantIds []string, senderId string, sender *model.ProfileSnapshot, payload *MessagePayload) {
	if d.notifier == nil {
		return
	}
	title := "新消息"
	if sender != nil {
		title = sender.FirstName
		if sender.LastName != "" {
			title += " " + sender.LastName
		}
	}
	body := notificationPreview(payload)
	for _, uid := range participantIds {
		if uid == senderId {
			continue
		}
		if d.presence.IsOnline(ctx, uid) {
			continue
		}
		d.notifier.Notify(ctx, push.Notification{
			UserId: uid,
			Title:  title,
			Body:   body,
			Data:   map[string]string{"conversation_id": payload.ConversationId, "message_id": payload.Id},
		})
	}
}

// History 拉取会话最近消息
// 缓存优先，未命中回源数据库并异步回填；读侧复用发送侧的成员校验
func (d *DeliveryService) History(ctx context.Context, userId, conversationId string, limit int) ([]*MessagePayload, error) {
	conv, err := d.repos.Conversation.FindByUuid(conversationId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.ErrConversationNotFound
		}
		return nil, err
	}
	if _, err := d.ensureParticipant(conv, userId); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	if d.msgCache != nil {
		rows, err := d.msgCache.RecentMessages(ctx, conversationId, int64(limit))
		if err != nil {
			zap.L().Warn("read message cache failed", zap.String("conversation_id", conversationId), zap.Error(err))
		} else if len(rows) > 0 {
			out := make([]*MessagePayload, 0, len(rows))
			for _, row := range rows {
				var p MessagePayload
				if err := json.Unmarshal([]byte(row), &p); err != nil {
					zap.L().Warn("decode cached message failed", zap.String("conversation_id", conversationId), zap.Error(err))
					continue
				}
				out = append(out, &p)
			}
			return out, nil
		}
	}

	msgs, err := d.repos.Message.ListByConversation(conversationId, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*MessagePayload, 0, len(msgs))
	for i := range msgs {
		out = append(out, d.toPayload(&msgs[i], nil))
	}
	d.backfillMessageCache(conversationId, out)
	return out, nil
}

const profileCacheKeyPrefix = "user:profile:"

// senderSnapshot 取发送者资料快照，缓存优先，回源后异步写回
func (d *DeliveryService) senderSnapshot(ctx context.Context, senderId string) *model.ProfileSnapshot {
	if d.cache != nil {
		if raw, err := d.cache.Get(ctx, profileCacheKeyPrefix+senderId); err == nil && raw != "" {
			var snap model.ProfileSnapshot
			if json.Unmarshal([]byte(raw), &snap) == nil {
				return &snap
			}
		}
	}

	user, err := d.repos.User.FindByUuid(senderId)
	if err != nil {
		return nil
	}
	snap := user.Snapshot()

	if d.cache != nil {
		if raw, err := json.Marshal(snap); err == nil {
			cache := d.cache
			d.cache.SubmitTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), constants.REDIS_TIMEOUT*time.Second)
				defer cancel()
				if err := cache.Set(ctx, profileCacheKeyPrefix+senderId, string(raw), constants.PROFILE_CACHE_TTL); err != nil {
					zap.L().Debug("cache profile snapshot failed", zap.String("user_id", senderId), zap.Error(err))
				}
			})
		}
	}
	return &snap
}

// backfillMessageCache 缓存未命中后把数据库读到的最近消息写回缓存
func (d *DeliveryService) backfillMessageCache(conversationId string, payloads []*MessagePayload) {
	if d.cache == nil || d.msgCache == nil || len(payloads) == 0 {
		return
	}
	rows := make([]string, 0, len(payloads))
	for _, p := range payloads {
		if raw, err := json.Marshal(p); err == nil {
			rows = append(rows, string(raw))
		}
	}
	d.cache.SubmitTask(func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.REDIS_TIMEOUT*time.Second)
		defer cancel()
		for _, row := range rows {
			if err := d.msgCache.AppendMessage(ctx, conversationId, row); err != nil {
				zap.L().Warn("backfill message cache failed", zap.String("conversation_id", conversationId), zap.Error(err))
				return
			}
		}
	})
}

// cacheMessage 把消息追加进会话的最近消息缓存
func (d *DeliveryService) cacheMessage(payload *MessagePayload) {
	if d.cache == nil || d.msgCache == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	convId := payload.ConversationId
	d.cache.SubmitTask(func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.REDIS_TIMEOUT*time.Second)
		defer cancel()
		if err := d.msgCache.AppendMessage(ctx, convId, string(raw)); err != nil {
			zap.L().Warn("append message cache failed", zap.String("conversation_id", convId), zap.Error(err))
		}
	})
}

// toPayload 数据库消息转线上表示
func (d *DeliveryService) toPayload(msg *model.Message, sender *model.ProfileSnapshot) *MessagePayload {
	p := &MessagePayload{
		Id:             strconv.FormatInt(msg.Uuid, 10),
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Sender:         sender,
		Type:           msg.Type,
		Content:        msg.Content,
		FileUrl:        msg.FileUrl,
		FileName:       msg.FileName,
		FileSize:       msg.FileSize,
		IsEdited:       msg.IsEdited,
		IsDeleted:      msg.IsDeleted,
		CreatedAt:      msg.CreatedAt,
	}
	if msg.ReplyToId != 0 {
		p.ReplyToId = strconv.FormatInt(msg.ReplyToId, 10)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = d.now()
	}
	return p
}

// notificationPreview 推送正文预览，媒体消息用类型占位
func notificationPreview(payload *MessagePayload) string {
	switch payload.Type {
	case model.MessageImage:
		return "📷 Photo"
	case model.MessageAudio:
		return "🎤 Voice message"
	case model.MessageVideo:
		return "🎬 Video"
	case model.MessageSticker:
		return "😀 Sticker"
	case model.MessageGif:
		return "GIF"
	case model.MessageFile:
		if payload.FileName != "" {
			return "📎 " + payload.FileName
		}
		return "📎 File"
	default:
		runes := []rune(payload.Content)
		if len(runes) > constants.NOTIFY_PREVIEW_LEN {
			return string(runes[:constants.NOTIFY_PREVIEW_LEN]) + "…"
		}
		return payload.Content
	}
}
