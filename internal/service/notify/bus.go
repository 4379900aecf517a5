// Package notify 提供非聊天通知（点赞、评论、关注）的 SSE 订阅总线
// 每个用户一组订阅通道，与聊天的房间广播模型相互独立
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event 通知事件
type Event struct {
	Id        string          `json:"id"`
	Type      string          `json:"type"` // like / comment / follow / mention
	ActorId   string          `json:"actor_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Subscription 一条 SSE 订阅
type Subscription struct {
	Id     string
	UserId string
	Ch     chan Event
}

// Bus 按用户维度的订阅总线
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[string]*Subscription // userId -> subId -> sub
}

// NewBus 创建总线
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[string]*Subscription)}
}

// Subscribe 订阅某用户的通知流
func (b *Bus) Subscribe(userId string) *Subscription {
	sub := &Subscription{
		Id:     uuid.NewString(),
		UserId: userId,
		Ch:     make(chan Event, 16),
	}
	b.mu.Lock()
	if b.subs[userId] == nil {
		b.subs[userId] = make(map[string]*Subscription)
	}
	b.subs[userId][sub.Id] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe 取消订阅并关闭通道
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if m, ok := b.subs[sub.UserId]; ok {
		if _, ok := m[sub.Id]; ok {
			delete(m, sub.Id)
			close(sub.Ch)
		}
		if len(m) == 0 {
			delete(b.subs, sub.UserId)
		}
	}
	b.mu.Unlock()
}

// Publish 向用户的所有订阅投递事件，慢消费者直接丢帧
func (b *Bus) Publish(userId string, ev Event) {
	if ev.Id == "" {
		ev.Id = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[userId] {
		select {
		case sub.Ch <- ev:
		default:
			zap.L().Warn("notify subscriber slow, dropping event",
				zap.String("user_id", userId), zap.String("event_id", ev.Id))
		}
	}
}

// SubscriberCount 某用户当前订阅数
func (b *Bus) SubscriberCount(userId string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userId])
}
