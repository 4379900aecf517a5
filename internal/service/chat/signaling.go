package chat

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	dao "moment_social_server/internal/dao/mysql"
	"moment_social_server/internal/infrastructure/state"
	"moment_social_server/internal/model"
	"moment_social_server/pkg/constants"
	"moment_social_server/pkg/errorx"
)

// 通话阶段
const (
	phaseRinging   = "ringing"
	phaseConnected = "connected"
)

// callSession 内存中的信令会话，按 (会话, 通话类型) 维度存在于通话期间
type callSession struct {
	CallId         string
	ConversationId string
	CallerId       string
	CallType       string
	Phase          string
	StartedAt      time.Time
	ConnectedAt    time.Time
}

// SignalingService WebRTC 信令状态机
// offer/answer/ice/end/decline 在参与者之间转发，本服务不经手媒体流；
// 近同时的重复 call_end 通过去重窗口抑制，避免通话记录和总结消息写两遍
type SignalingService struct {
	mu       sync.Mutex
	sessions map[string]*callSession

	repos    *dao.Repositories
	hub      *Hub
	delivery *DeliveryService

	// endDedup 记录最近处理过的 call_end 时间，多进程部署时换 Redis 实现
	endDedup state.SharedState[time.Time]

	now func() time.Time
}

// NewSignalingService 创建信令服务
func NewSignalingService(repos *dao.Repositories, hub *Hub, delivery *DeliveryService, endDedup state.SharedState[time.Time]) *SignalingService {
	return &SignalingService{
		sessions: make(map[string]*callSession),
		repos:    repos,
		hub:      hub,
		delivery: delivery,
		endDedup: endDedup,
		now:      time.Now,
	}
}

func sessionKey(conversationId, callType string) string {
	return conversationId + "|" + callType
}

// Offer 发起通话
// 非成员只给主叫连接回 error，绝不广播；
// 来电载荷带主叫资料快照，接收端无需再查一次用户信息
func (s *SignalingService) Offer(ctx context.Context, c *UserConn, req *CallOffer) error {
	participantIds, err := s.repos.Participant.ListUserIds(req.ConversationId)
	if err != nil {
		return err
	}
	if !containsString(participantIds, c.UserId) {
		return errorx.ErrNotParticipant
	}

	// 主叫连接可能还没显式 join，发起通话视同加入
	s.hub.JoinConversation(c, req.ConversationId)

	var caller *model.ProfileSnapshot
	if user, err := s.repos.User.FindByUuid(c.UserId); err == nil {
		snap := user.Snapshot()
		caller = &snap
	}

	now := s.now()
	sess := &callSession{
		CallId:         uuid.NewString(),
		ConversationId: req.ConversationId,
		CallerId:       c.UserId,
		CallType:       req.CallType,
		Phase:          phaseRinging,
		StartedAt:      now,
	}
	s.mu.Lock()
	s.sessions[sessionKey(req.ConversationId, req.CallType)] = sess
	s.mu.Unlock()

	// 预写 missed 记录，接听/挂断/拒接时修正
	if err := s.repos.Call.Create(&model.CallRecord{
		Uuid:           sess.CallId,
		ConversationId: req.ConversationId,
		CallerId:       c.UserId,
		CallType:       req.CallType,
		Status:         model.CallMissed,
		StartedAt:      now,
	}); err != nil {
		zap.L().Warn("write provisional call record failed",
			zap.String("conversation_id", req.ConversationId), zap.Error(err))
	}

	frame, err := encodeOutbound(EventCallOffer, CallOfferPayload{
		ConversationId: req.ConversationId,
		CallId:         sess.CallId,
		CallType:       req.CallType,
		Offer:          req.Offer,
		CallerId:       c.UserId,
		Caller:         caller,
	})
	if err != nil {
		return err
	}
	s.relayToOthers(c, req.ConversationId, participantIds, frame)
	zap.L().Info("call offer relayed",
		zap.String("conversation_id", req.ConversationId),
		zap.String("caller_id", c.UserId),
		zap.String("call_type", req.CallType))
	return nil
}

// Answer 接听
// 没有在途 offer 的 answer 属于时序错误，静默丢弃
func (s *SignalingService) Answer(ctx context.Context, c *UserConn, req *CallAnswer) error {
	s.mu.Lock()
	sess := s.findSessionLocked(req.ConversationId)
	if sess == nil {
		s.mu.Unlock()
		zap.L().Debug("answer without in-flight offer, dropped",
			zap.String("conversation_id", req.ConversationId), zap.String("user_id", c.UserId),
			zap.Error(errorx.ErrSignalingOutOfOrder))
		return nil
	}
	sess.Phase = phaseConnected
	sess.ConnectedAt = s.now()
	callType := sess.CallType
	s.mu.Unlock()

	frame, err := encodeOutbound(EventCallAnswer, CallAnswerPayload{
		ConversationId: req.ConversationId,
		Answer:         req.Answer,
		UserId:         c.UserId,
	})
	if err != nil {
		return err
	}
	// 接听连接自己不收；同一用户的其它设备会收到，据此停止振铃
	s.relayExceptConn(c, req.ConversationId, frame)

	// 尽力而为的记录修正，失败不影响信令
	if err := s.repos.Call.UpdateLatest(req.ConversationId, callType, model.CallAnswered, time.Time{}, 0); err != nil {
		zap.L().Warn("mark call answered failed",
			zap.String("conversation_id", req.ConversationId), zap.Error(err))
	}
	return nil
}

// IceCandidate 无条件转发，整个通话期间持续交换
func (s *SignalingService) IceCandidate(c *UserConn, req *CallIceCandidate) error {
	frame, err := encodeOutbound(EventCallIceCandidate, CallIceCandidatePayload{
		ConversationId: req.ConversationId,
		Candidate:      req.Candidate,
		UserId:         c.UserId,
	})
	if err != nil {
		return err
	}
	s.relayExceptConn(c, req.ConversationId, frame)
	return nil
}

// End 挂断
// 双端经常几乎同时发 call_end：每个事件各自在独立协程里处理，
// 用 SetNX 原子抢占去重窗口，抢到的那一次定稿记录和总结消息，
// 窗口内的其余挂断只转发事件
func (s *SignalingService) End(ctx context.Context, c *UserConn, req *CallEnd) error {
	key := sessionKey(req.ConversationId, req.CallType)
	now := s.now()

	won, err := s.endDedup.SetNX(ctx, key, now, constants.CALL_END_DEDUP_WINDOW)
	if err != nil {
		zap.L().Warn("track call_end failed", zap.String("key", key), zap.Error(err))
		won = true
	}
	if !won {
		zap.L().Debug("duplicate call_end suppressed", zap.String("key", key))
		s.broadcastEnd(c, req, 0)
		return nil
	}

	s.mu.Lock()
	sess := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	duration := req.Duration
	if duration <= 0 && sess != nil && sess.Phase == phaseConnected {
		duration = int(now.Sub(sess.ConnectedAt) / time.Second)
	}

	status := model.CallMissed
	if duration > 0 || (sess != nil && sess.Phase == phaseConnected) {
		status = model.CallAnswered
	}
	if err := s.repos.Call.UpdateLatest(req.ConversationId, req.CallType, status, now, duration); err != nil {
		zap.L().Warn("finalize call record failed",
			zap.String("conversation_id", req.ConversationId), zap.Error(err))
	}

	// 有效通话追加一条总结消息，和普通消息走同一条投递管道
	if duration > 0 {
		summary := &SendMessage{
			ConversationId: req.ConversationId,
			Type:           model.MessageText,
			Content:        formatCallSummary(req.CallType, duration),
		}
		if _, err := s.delivery.Send(ctx, c, summary); err != nil {
			zap.L().Warn("send call summary failed",
				zap.String("conversation_id", req.ConversationId), zap.Error(err))
		}
	}

	s.broadcastEnd(c, req, duration)
	return nil
}

// Decline 拒接
// 给每个未拒接的参与者各写一条 declined 记录（主叫视角的通话历史）
func (s *SignalingService) Decline(ctx context.Context, c *UserConn, req *CallDecline) error {
	key := sessionKey(req.ConversationId, req.CallType)
	s.mu.Lock()
	sess := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()
	if sess == nil {
		zap.L().Debug("decline without in-flight offer, dropped",
			zap.String("conversation_id", req.ConversationId), zap.String("user_id", c.UserId),
			zap.Error(errorx.ErrSignalingOutOfOrder))
		return nil
	}

	frame, err := encodeOutbound(EventCallDecline, CallDeclinePayload{
		ConversationId: req.ConversationId,
		CallType:       req.CallType,
		UserId:         c.UserId,
	})
	if err != nil {
		return err
	}
	s.relayExceptConn(c, req.ConversationId, frame)

	participantIds, err := s.repos.Participant.ListUserIds(req.ConversationId)
	if err != nil {
		return err
	}
	now := s.now()
	for _, uid := range participantIds {
		if uid == c.UserId {
			continue
		}
		if err := s.repos.Call.Create(&model.CallRecord{
			Uuid:           uuid.NewString(),
			ConversationId: req.ConversationId,
			CallerId:       uid,
			CallType:       req.CallType,
			Status:         model.CallDeclined,
			StartedAt:      sess.StartedAt,
			EndedAt:        sql.NullTime{Time: now, Valid: true},
		}); err != nil {
			zap.L().Warn("write declined call record failed",
				zap.String("conversation_id", req.ConversationId), zap.String("caller_id", uid), zap.Error(err))
		}
	}
	return nil
}

// Phase 查询某会话当前通话阶段，没有在途通话返回空串
func (s *SignalingService) Phase(conversationId, callType string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[sessionKey(conversationId, callType)]; sess != nil {
		return sess.Phase
	}
	return ""
}

// findSessionLocked 按会话找在途信令会话（answer 事件不带通话类型）
func (s *SignalingService) findSessionLocked(conversationId string) *callSession {
	for _, sess := range s.sessions {
		if sess.ConversationId == conversationId {
			return sess
		}
	}
	return nil
}

// broadcastEnd 广播 call_end
func (s *SignalingService) broadcastEnd(c *UserConn, req *CallEnd, duration int) {
	frame, err := encodeOutbound(EventCallEnd, CallEndPayload{
		ConversationId: req.ConversationId,
		CallType:       req.CallType,
		UserId:         c.UserId,
		Duration:       duration,
	})
	if err != nil {
		zap.L().Error("encode call_end failed", zap.Error(err))
		return
	}
	s.hub.BroadcastToConversation(req.ConversationId, frame)
}

// relayToOthers 给除发起者外的每个成员的用户房间投递，会话房间再兜底一次
func (s *SignalingService) relayToOthers(c *UserConn, conversationId string, participantIds []string, frame []byte) {
	for _, uid := range participantIds {
		if uid == c.UserId {
			continue
		}
		s.hub.BroadcastToUser(uid, frame)
	}
	s.hub.BroadcastToConversationExcept(conversationId, c.ConnId, frame)
}

// relayExceptConn 转发给会话内其他人（含本用户的其它设备）
func (s *SignalingService) relayExceptConn(c *UserConn, conversationId string, frame []byte) {
	s.hub.BroadcastToConversationExcept(conversationId, c.ConnId, frame)
	participantIds, err := s.repos.Participant.ListUserIds(conversationId)
	if err != nil {
		return
	}
	for _, uid := range participantIds {
		if uid == c.UserId {
			continue
		}
		s.hub.BroadcastToUser(uid, frame)
	}
}

// formatCallSummary 通话总结文案，时长格式 h:mm:ss 或 m:ss
func formatCallSummary(callType string, duration int) string {
	hours := duration / 3600
	minutes := (duration % 3600) / 60
	seconds := duration % 60

	var durationText string
	if hours > 0 {
		durationText = fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	} else {
		durationText = fmt.Sprintf("%d:%02d", minutes, seconds)
	}

	emoji := "📞"
	typeText := "Audio call"
	if callType == model.CallVideo {
		emoji = "📹"
		typeText = "Video call"
	}
	return fmt.Sprintf("%s %s ended. Duration: %s", emoji, typeText, durationText)
}
