package chat

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	dao "moment_social_server/internal/dao/mysql"
	"moment_social_server/internal/infrastructure/push"
	"moment_social_server/internal/infrastructure/state"
)

// ChatService 实时会话服务聚合
type ChatService struct {
	hub       *Hub
	presence  *PresenceTracker
	delivery  *DeliveryService
	signaling *SignalingService
	actions   *ActionService
}

// NewChatService 组装实时会话服务
// presenceMirror/endDedup 单机用内存实现，多进程部署换 Redis 实现
func NewChatService(
	repos *dao.Repositories,
	notifier push.Notifier,
	presenceMirror state.SharedState[presenceEntry],
	endDedup state.SharedState[time.Time],
) *ChatService {
	presence := NewPresenceTracker(repos.Presence, repos.Participant, presenceMirror)
	hub := NewHub(repos.Participant, presence)
	presence.SetFanout(hub)

	delivery := NewDeliveryService(repos, hub, presence, notifier)
	signaling := NewSignalingService(repos, hub, delivery, endDedup)
	actions := NewActionService(repos, hub)

	return &ChatService{
		hub:       hub,
		presence:  presence,
		delivery:  delivery,
		signaling: signaling,
		actions:   actions,
	}
}

// NewStateStores 构造在线状态镜像和挂断去重的共享状态
// useRedis 为 true 时状态落 Redis，多个服务进程可以共享；
// 否则用进程内存实现
func NewStateStores(useRedis bool, client *redis.Client) (state.SharedState[presenceEntry], state.SharedState[time.Time]) {
	if useRedis && client != nil {
		return state.NewRedisState[presenceEntry](client, "presence"),
			state.NewRedisState[time.Time](client, "call_end")
	}
	return state.NewMemoryState[presenceEntry](), state.NewMemoryState[time.Time]()
}

// Hub 暴露连接注册表
func (s *ChatService) Hub() *Hub { return s.hub }

// Presence 暴露在线状态跟踪器
func (s *ChatService) Presence() *PresenceTracker { return s.presence }

// Delivery 暴露投递管道
func (s *ChatService) Delivery() *DeliveryService { return s.delivery }

// Signaling 暴露信令服务
func (s *ChatService) Signaling() *SignalingService { return s.signaling }

// Dispatch 入站事件分发
// 唯一的分发点：新增事件类型时这里不补分支无法编译通过
func (s *ChatService) Dispatch(ctx context.Context, c *UserConn, ev Inbound) {
	var err error
	conversationId := ""

	switch e := ev.(type) {
	case *JoinConversation:
		s.hub.JoinConversation(c, e.ConversationId)
	case *LeaveConversation:
		s.hub.LeaveConversation(c, e.ConversationId)
	case *SendMessage:
		conversationId = e.ConversationId
		_, err = s.delivery.Send(ctx, c, e)
	case *TypingStart:
		conversationId = e.ConversationId
		err = s.actions.Typing(c, e.ConversationId, true)
	case *TypingStop:
		conversationId = e.ConversationId
		err = s.actions.Typing(c, e.ConversationId, false)
	case *CallOffer:
		conversationId = e.ConversationId
		err = s.signaling.Offer(ctx, c, e)
	case *CallAnswer:
		conversationId = e.ConversationId
		err = s.signaling.Answer(ctx, c, e)
	case *CallIceCandidate:
		conversationId = e.ConversationId
		err = s.signaling.IceCandidate(c, e)
	case *CallEnd:
		conversationId = e.ConversationId
		err = s.signaling.End(ctx, c, e)
	case *CallDecline:
		conversationId = e.ConversationId
		err = s.signaling.Decline(ctx, c, e)
	case *AddReaction:
		err = s.actions.AddReaction(c, e)
	case *RemoveReaction:
		err = s.actions.RemoveReaction(c, e)
	case *EditMessage:
		err = s.actions.EditMessage(c, e)
	case *DeleteMessage:
		err = s.actions.DeleteMessage(c, e)
	case *UpdateOnlineStatus:
		s.presence.SetOnline(ctx, c.UserId, e.IsOnline)
	case *AddGroupMember:
		conversationId = e.ConversationId
		err = s.actions.AddGroupMember(c, e)
	case *RemoveGroupMember:
		conversationId = e.ConversationId
		err = s.actions.RemoveGroupMember(c, e)
	default:
		zap.L().Error("unhandled inbound event", zap.Any("event", ev))
		return
	}

	// 失败只回给操作者本人
	if err != nil {
		zap.L().Warn("handle event failed",
			zap.String("user_id", c.UserId),
			zap.String("conversation_id", conversationId),
			zap.Error(err))
		c.sendError(err, conversationId)
	}
}
