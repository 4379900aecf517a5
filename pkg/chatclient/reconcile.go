// Package chatclient 提供客户端侧的消息时间线对账与通话连接看护
// 服务端双路径广播会造成重复投递，乐观插入会造成占位消息，
// 这里保证两者在界面上都只呈现一条
package chatclient

import (
	"sort"
	"strings"
)

// PendingIdPrefix 乐观占位消息的临时 id 前缀
const PendingIdPrefix = "temp-"

// ClientMessage 时间线上的一条消息
type ClientMessage struct {
	Id             string `json:"id"`
	ConversationId string `json:"conversation_id"`
	SenderId       string `json:"sender_id"`
	Type           string `json:"type"`
	Content        string `json:"content"`
	FileUrl        string `json:"file_url,omitempty"`
	IsEdited       bool   `json:"is_edited"`
	IsDeleted      bool   `json:"is_deleted"`
	// CreatedAtUnixMs 排序用时间戳
	CreatedAtUnixMs int64 `json:"created_at_unix_ms"`
}

// Pending 是否为乐观占位消息
func (m ClientMessage) Pending() bool {
	return strings.HasPrefix(m.Id, PendingIdPrefix)
}

// Timeline 单个会话的消息时间线
// 非并发安全，调用方在单个界面协程里使用
type Timeline struct {
	messages []ClientMessage
}

// NewTimeline 创建时间线
func NewTimeline() *Timeline {
	return &Timeline{}
}

// AddPending 插入乐观占位消息，随后等 Apply 或 FailSend 收尾
func (t *Timeline) AddPending(m ClientMessage) {
	t.messages = append(t.messages, m)
	t.sortByTime()
}

// Apply 合并一条服务端权威消息
// 对账顺序：
//  1. id 相同 → 原地替换（覆盖编辑更新，也吸收双路径广播的重复投递）
//  2. 否则移除同发送者、同文本内容（文本消息）或同文件地址（媒体消息）
//     的占位消息，再插入权威消息
//  3. 按时间戳重排
//
// 占位消息和权威消息绝不会同时留在列表里
func (t *Timeline) Apply(m ClientMessage) {
	for i := range t.messages {
		if t.messages[i].Id == m.Id {
			t.messages[i] = m
			t.sortByTime()
			return
		}
	}

	t.dropPending(m.SenderId, m.Content, m.FileUrl)
	t.messages = append(t.messages, m)
	t.sortByTime()
}

// FailSend 发送失败，清掉匹配的占位消息，不能让它永远卡在界面上
func (t *Timeline) FailSend(senderId, content, fileUrl string) {
	t.dropPending(senderId, content, fileUrl)
}

// Messages 当前时间线快照
func (t *Timeline) Messages() []ClientMessage {
	out := make([]ClientMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len 时间线长度
func (t *Timeline) Len() int {
	return len(t.messages)
}

func (t *Timeline) dropPending(senderId, content, fileUrl string) {
	kept := t.messages[:0]
	for _, msg := range t.messages {
		if msg.Pending() && msg.SenderId == senderId && matchesPending(msg, content, fileUrl) {
			continue
		}
		kept = append(kept, msg)
	}
	t.messages = kept
}

// matchesPending 占位匹配规则：文本按内容，媒体按文件地址
func matchesPending(pending ClientMessage, content, fileUrl string) bool {
	if fileUrl != "" {
		return pending.FileUrl == fileUrl
	}
	return content != "" && pending.Content == content
}

func (t *Timeline) sortByTime() {
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].CreatedAtUnixMs < t.messages[j].CreatedAtUnixMs
	})
}
