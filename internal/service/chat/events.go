// Package chat 实现实时会话核心：连接注册、房间广播、消息投递、
// 在线状态与 WebRTC 通话信令
package chat

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"moment_social_server/internal/model"
	"moment_social_server/pkg/errorx"
)

// 入站事件名
const (
	EventJoinConversation   = "join_conversation"
	EventLeaveConversation  = "leave_conversation"
	EventSendMessage        = "send_message"
	EventTypingStart        = "typing_start"
	EventTypingStop         = "typing_stop"
	EventCallOffer          = "call_offer"
	EventCallAnswer         = "call_answer"
	EventCallIceCandidate   = "call_ice_candidate"
	EventCallEnd            = "call_end"
	EventCallDecline        = "call_decline"
	EventAddReaction        = "add_reaction"
	EventRemoveReaction     = "remove_reaction"
	EventEditMessage        = "edit_message"
	EventDeleteMessage      = "delete_message"
	EventUpdateOnlineStatus = "update_online_status"
	EventAddGroupMember     = "add_group_member"
	EventRemoveGroupMember  = "remove_group_member"
)

// 出站事件名
const (
	EventNewMessage          = "new_message"
	EventMessageSent         = "message_sent"
	EventConversationUpdated = "conversation_updated"
	EventUserTyping          = "user_typing"
	EventReactionAdded       = "reaction_added"
	EventReactionRemoved     = "reaction_removed"
	EventMessageEdited       = "message_edited"
	EventMessageDeleted      = "message_deleted"
	EventUserOnlineStatus    = "user_online_status"
	EventMemberAdded         = "member_added"
	EventMemberRemoved       = "member_removed"
	EventError               = "error"
	// call_offer 等通话事件出入站同名，复用入站常量
)

// Envelope 事件信封，所有帧都是 {"event": ..., "data": ...}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound 入站事件的封闭联合类型
// 每种事件一个结构体，新增事件必须同时扩展 decodeRegistry 和 Dispatch
type Inbound interface {
	isInbound()
}

type JoinConversation struct {
	ConversationId string `json:"conversation_id" validate:"required"`
}

type LeaveConversation struct {
	ConversationId string `json:"conversation_id" validate:"required"`
}

type SendMessage struct {
	ConversationId string `json:"conversation_id" validate:"required"`
	Type           string `json:"type" validate:"required,oneof=text image audio video sticker gif file"`
	Content        string `json:"content" validate:"required_without=FileUrl"`
	FileUrl        string `json:"file_url"`
	FileName       string `json:"file_name"`
	FileSize       int64  `json:"file_size"`
	ReplyToId      string `json:"reply_to_id"`
}

type TypingStart struct {
	ConversationId string `json:"conversation_id" validate:"required"`
}

type TypingStop struct {
	ConversationId string `json:"conversation_id" validate:"required"`
}

type CallOffer struct {
	ConversationId string          `json:"conversation_id" validate:"required"`
	CallType       string          `json:"call_type" validate:"required,oneof=audio video"`
	Offer          json.RawMessage `json:"offer" validate:"required"`
}

type CallAnswer struct {
	ConversationId string          `json:"conversation_id" validate:"required"`
	Answer         json.RawMessage `json:"answer" validate:"required"`
}

type CallIceCandidate struct {
	ConversationId string          `json:"conversation_id" validate:"required"`
	Candidate      json.RawMessage `json:"candidate" validate:"required"`
}

type CallEnd struct {
	ConversationId string `json:"conversation_id" validate:"required"`
	CallType       string `json:"call_type" validate:"required,oneof=audio video"`
	Duration       int    `json:"duration"`
}

type CallDecline struct {
	ConversationId string `json:"conversation_id" validate:"required"`
	CallType       string `json:"call_type" validate:"required,oneof=audio video"`
}

type AddReaction struct {
	MessageId string `json:"message_id" validate:"required"`
	Emoji     string `json:"emoji" validate:"required"`
}

type RemoveReaction struct {
	MessageId string `json:"message_id" validate:"required"`
	Emoji     string `json:"emoji" validate:"required"`
}

type EditMessage struct {
	MessageId string `json:"message_id" validate:"required"`
	Content   string `json:"content" validate:"required"`
}

type DeleteMessage struct {
	MessageId string `json:"message_id" validate:"required"`
}

type UpdateOnlineStatus struct {
	IsOnline bool `json:"is_online"`
}

type AddGroupMember struct {
	ConversationId string `json:"conversation_id" validate:"required"`
	UserId         string `json:"user_id" validate:"required"`
}

type RemoveGroupMember struct {
	ConversationId string `json:"conversation_id" validate:"required"`
	UserId         string `json:"user_id" validate:"required"`
}

func (JoinConversation) isInbound()   {}
func (LeaveConversation) isInbound()  {}
func (SendMessage) isInbound()        {}
func (TypingStart) isInbound()        {}
func (TypingStop) isInbound()         {}
func (CallOffer) isInbound()          {}
func (CallAnswer) isInbound()         {}
func (CallIceCandidate) isInbound()   {}
func (CallEnd) isInbound()            {}
func (CallDecline) isInbound()        {}
func (AddReaction) isInbound()        {}
func (RemoveReaction) isInbound()     {}
func (EditMessage) isInbound()        {}
func (DeleteMessage) isInbound()      {}
func (UpdateOnlineStatus) isInbound() {}
func (AddGroupMember) isInbound()     {}
func (RemoveGroupMember) isInbound()  {}

var validate = validator.New()

// decodeRegistry 事件名到载荷构造器的映射
var decodeRegistry = map[string]func() Inbound{
	EventJoinConversation:   func() Inbound { return &JoinConversation{} },
	EventLeaveConversation:  func() Inbound { return &LeaveConversation{} },
	EventSendMessage:        func() Inbound { return &SendMessage{} },
	EventTypingStart:        func() Inbound { return &TypingStart{} },
	EventTypingStop:         func() Inbound { return &TypingStop{} },
	EventCallOffer:          func() Inbound { return &CallOffer{} },
	EventCallAnswer:         func() Inbound { return &CallAnswer{} },
	EventCallIceCandidate:   func() Inbound { return &CallIceCandidate{} },
	EventCallEnd:            func() Inbound { return &CallEnd{} },
	EventCallDecline:        func() Inbound { return &CallDecline{} },
	EventAddReaction:        func() Inbound { return &AddReaction{} },
	EventRemoveReaction:     func() Inbound { return &RemoveReaction{} },
	EventEditMessage:        func() Inbound { return &EditMessage{} },
	EventDeleteMessage:      func() Inbound { return &DeleteMessage{} },
	EventUpdateOnlineStatus: func() Inbound { return &UpdateOnlineStatus{} },
	EventAddGroupMember:     func() Inbound { return &AddGroupMember{} },
	EventRemoveGroupMember:  func() Inbound { return &RemoveGroupMember{} },
}

// DecodeInbound 解析并校验一帧入站事件
func DecodeInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeInvalidParam, "事件帧格式错误")
	}
	factory, ok := decodeRegistry[env.Event]
	if !ok {
		return nil, errorx.Newf(errorx.CodeInvalidParam, "未知事件类型 %s", env.Event)
	}
	ev := factory()
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return nil, errorx.Wrapf(err, errorx.CodeInvalidParam, "事件 %s 载荷格式错误", env.Event)
		}
	}
	if err := validate.Struct(ev); err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeInvalidParam, "事件 %s 载荷校验失败", env.Event)
	}
	return ev, nil
}

// encodeOutbound 编码一帧出站事件
func encodeOutbound(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeServerBusy, "编码事件 %s 失败", event)
	}
	return json.Marshal(Envelope{Event: event, Data: payload})
}

// ---- 出站载荷 ----

// MessagePayload 消息的线上表示，snowflake id 以字符串下发
type MessagePayload struct {
	Id             string                 `json:"id"`
	ConversationId string                 `json:"conversation_id"`
	SenderId       string                 `json:"sender_id"`
	Sender         *model.ProfileSnapshot `json:"sender,omitempty"`
	Type           string                 `json:"type"`
	Content        string                 `json:"content"`
	FileUrl        string                 `json:"file_url,omitempty"`
	FileName       string                 `json:"file_name,omitempty"`
	FileSize       int64                  `json:"file_size,omitempty"`
	ReplyToId      string                 `json:"reply_to_id,omitempty"`
	ReplyTo        *MessagePayload        `json:"reply_to,omitempty"`
	IsEdited       bool                   `json:"is_edited"`
	IsDeleted      bool                   `json:"is_deleted"`
	CreatedAt      time.Time              `json:"created_at"`
}

type ConversationUpdatedPayload struct {
	ConversationId string          `json:"conversation_id"`
	Message        *MessagePayload `json:"message"`
}

type UserTypingPayload struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

type CallOfferPayload struct {
	ConversationId string                 `json:"conversation_id"`
	CallId         string                 `json:"call_id"`
	CallType       string                 `json:"call_type"`
	Offer          json.RawMessage        `json:"offer"`
	CallerId       string                 `json:"caller_id"`
	Caller         *model.ProfileSnapshot `json:"caller"`
}

type CallAnswerPayload struct {
	ConversationId string          `json:"conversation_id"`
	Answer         json.RawMessage `json:"answer"`
	UserId         string          `json:"user_id"`
}

type CallIceCandidatePayload struct {
	ConversationId string          `json:"conversation_id"`
	Candidate      json.RawMessage `json:"candidate"`
	UserId         string          `json:"user_id"`
}

type CallEndPayload struct {
	ConversationId string `json:"conversation_id"`
	CallType       string `json:"call_type"`
	UserId         string `json:"user_id"`
	Duration       int    `json:"duration,omitempty"`
}

type CallDeclinePayload struct {
	ConversationId string `json:"conversation_id"`
	CallType       string `json:"call_type"`
	UserId         string `json:"user_id"`
}

type ReactionPayload struct {
	MessageId      string `json:"message_id"`
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	Emoji          string `json:"emoji"`
}

type MessageDeletedPayload struct {
	MessageId      string `json:"message_id"`
	ConversationId string `json:"conversation_id"`
}

type UserOnlineStatusPayload struct {
	UserId     string    `json:"user_id"`
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type MemberPayload struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	ActorId        string `json:"actor_id"`
}

type ErrorPayload struct {
	Code           int    `json:"code"`
	Message        string `json:"message"`
	ConversationId string `json:"conversation_id,omitempty"`
}
