package chat

import (
	"database/sql"
	"strconv"
	"time"

	"go.uber.org/zap"

	dao "moment_social_server/internal/dao/mysql"
	"moment_social_server/internal/dao/mysql/repository"
	"moment_social_server/internal/model"
	"moment_social_server/pkg/errorx"
)

// ActionService 消息编辑、表情回应、群成员变更等辅助操作
type ActionService struct {
	repos *dao.Repositories
	hub   *Hub

	now func() time.Time
}

// NewActionService 创建辅助操作服务
func NewActionService(repos *dao.Repositories, hub *Hub) *ActionService {
	return &ActionService{repos: repos, hub: hub, now: time.Now}
}

// Typing 输入状态转发给会话内其他人，不落库
func (a *ActionService) Typing(c *UserConn, conversationId string, isTyping bool) error {
	frame, err := encodeOutbound(EventUserTyping, UserTypingPayload{
		ConversationId: conversationId,
		UserId:         c.UserId,
		IsTyping:       isTyping,
	})
	if err != nil {
		return err
	}
	a.hub.BroadcastToConversationExcept(conversationId, c.ConnId, frame)
	return nil
}

// AddReaction 给消息加表情回应，重复回应幂等
func (a *ActionService) AddReaction(c *UserConn, req *AddReaction) error {
	messageId, err := strconv.ParseInt(req.MessageId, 10, 64)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidParam, "message_id 格式错误")
	}
	msg, err := a.repos.Message.FindByUuid(messageId)
	if err != nil {
		return err
	}
	if err := a.repos.Reaction.Upsert(&model.MessageReaction{
		MessageId: messageId,
		UserId:    c.UserId,
		Emoji:     req.Emoji,
	}); err != nil {
		return err
	}
	return a.fanoutReaction(EventReactionAdded, msg.ConversationId, req.MessageId, c.UserId, req.Emoji)
}

// RemoveReaction 撤销表情回应
func (a *ActionService) RemoveReaction(c *UserConn, req *RemoveReaction) error {
	messageId, err := strconv.ParseInt(req.MessageId, 10, 64)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidParam, "message_id 格式错误")
	}
	msg, err := a.repos.Message.FindByUuid(messageId)
	if err != nil {
		return err
	}
	if err := a.repos.Reaction.Delete(messageId, c.UserId, req.Emoji); err != nil {
		return err
	}
	return a.fanoutReaction(EventReactionRemoved, msg.ConversationId, req.MessageId, c.UserId, req.Emoji)
}

func (a *ActionService) fanoutReaction(event, conversationId, messageId, userId, emoji string) error {
	frame, err := encodeOutbound(event, ReactionPayload{
		MessageId:      messageId,
		ConversationId: conversationId,
		UserId:         userId,
		Emoji:          emoji,
	})
	if err != nil {
		return err
	}
	a.fanoutToConversation(conversationId, frame)
	return nil
}

// EditMessage 编辑消息，仅发送者可以编辑，已删除的消息不可编辑
func (a *ActionService) EditMessage(c *UserConn, req *EditMessage) error {
	messageId, err := strconv.ParseInt(req.MessageId, 10, 64)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidParam, "message_id 格式错误")
	}
	msg, err := a.repos.Message.FindByUuid(messageId)
	if err != nil {
		return err
	}
	if msg.SenderId != c.UserId {
		return errorx.New(errorx.CodeNotParticipant, "只有发送者可以编辑消息")
	}
	if err := a.repos.Message.Edit(messageId, req.Content); err != nil {
		return err
	}

	msg.Content = req.Content
	msg.IsEdited = true
	frame, err := encodeOutbound(EventMessageEdited, &MessagePayload{
		Id:             req.MessageId,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Type:           msg.Type,
		Content:        msg.Content,
		FileUrl:        msg.FileUrl,
		FileName:       msg.FileName,
		FileSize:       msg.FileSize,
		IsEdited:       true,
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		return err
	}
	a.fanoutToConversation(msg.ConversationId, frame)
	return nil
}

// DeleteMessage 软删除消息，仅发送者可以删除，删除后内容清空且不可再改
func (a *ActionService) DeleteMessage(c *UserConn, req *DeleteMessage) error {
	messageId, err := strconv.ParseInt(req.MessageId, 10, 64)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidParam, "message_id 格式错误")
	}
	msg, err := a.repos.Message.FindByUuid(messageId)
	if err != nil {
		return err
	}
	if msg.SenderId != c.UserId {
		return errorx.New(errorx.CodeNotParticipant, "只有发送者可以删除消息")
	}
	if err := a.repos.Message.SoftDelete(messageId); err != nil {
		return err
	}

	frame, err := encodeOutbound(EventMessageDeleted, MessageDeletedPayload{
		MessageId:      req.MessageId,
		ConversationId: msg.ConversationId,
	})
	if err != nil {
		return err
	}
	a.fanoutToConversation(msg.ConversationId, frame)
	return nil
}

// AddGroupMember 拉人进群，操作者必须是群成员
func (a *ActionService) AddGroupMember(c *UserConn, req *AddGroupMember) error {
	conv, err := a.repos.Conversation.FindByUuid(req.ConversationId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return errorx.ErrConversationNotFound
		}
		return err
	}
	if conv.Type != model.ConversationGroup {
		return errorx.New(errorx.CodeInvalidState, "双人会话不能添加成员")
	}
	if _, err := a.repos.Participant.Role(req.ConversationId, c.UserId); err != nil {
		if errorx.IsNotFound(err) {
			return errorx.ErrNotParticipant
		}
		return err
	}

	err = a.repos.Participant.Add(&model.ConversationParticipant{
		ConversationId: req.ConversationId,
		UserId:         req.UserId,
		Role:           "member",
		JoinedAt:       sql.NullTime{Time: a.now(), Valid: true},
	})
	if err != nil && !repository.IsDuplicateKey(err) {
		return errorx.Wrap(err, errorx.CodeDBError, "添加群成员失败")
	}

	// 新成员的在线连接立刻进房间
	a.hub.AddUserToRoom(req.UserId, req.ConversationId)

	frame, err := encodeOutbound(EventMemberAdded, MemberPayload{
		ConversationId: req.ConversationId,
		UserId:         req.UserId,
		ActorId:        c.UserId,
	})
	if err != nil {
		return err
	}
	a.fanoutToConversation(req.ConversationId, frame)
	a.hub.BroadcastToUser(req.UserId, frame)
	return nil
}

// RemoveGroupMember 移除群成员，需要 owner 角色；成员可以移除自己（退群）
func (a *ActionService) RemoveGroupMember(c *UserConn, req *RemoveGroupMember) error {
	conv, err := a.repos.Conversation.FindByUuid(req.ConversationId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return errorx.ErrConversationNotFound
		}
		return err
	}
	if conv.Type != model.ConversationGroup {
		return errorx.New(errorx.CodeInvalidState, "双人会话不能移除成员")
	}

	if req.UserId != c.UserId {
		role, err := a.repos.Participant.Role(req.ConversationId, c.UserId)
		if err != nil {
			if errorx.IsNotFound(err) {
				return errorx.ErrNotParticipant
			}
			return err
		}
		if role != "owner" {
			return errorx.New(errorx.CodeNotParticipant, "只有群主可以移除成员")
		}
	}

	if err := a.repos.Participant.Remove(req.ConversationId, req.UserId); err != nil {
		return err
	}
	a.hub.RemoveUserFromRoom(req.UserId, req.ConversationId)

	frame, err := encodeOutbound(EventMemberRemoved, MemberPayload{
		ConversationId: req.ConversationId,
		UserId:         req.UserId,
		ActorId:        c.UserId,
	})
	if err != nil {
		return err
	}
	a.fanoutToConversation(req.ConversationId, frame)
	a.hub.BroadcastToUser(req.UserId, frame)
	return nil
}

// fanoutToConversation 会话房间 + 各成员用户房间双路径广播
func (a *ActionService) fanoutToConversation(conversationId string, frame []byte) {
	a.hub.BroadcastToConversation(conversationId, frame)
	participantIds, err := a.repos.Participant.ListUserIds(conversationId)
	if err != nil {
		zap.L().Warn("list participants for fanout failed",
			zap.String("conversation_id", conversationId), zap.Error(err))
		return
	}
	for _, uid := range participantIds {
		a.hub.BroadcastToUser(uid, frame)
	}
}
