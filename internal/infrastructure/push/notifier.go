// Package push 提供离线推送通道
// 新消息投递后向 Kafka 写一条推送事件，由下游推送网关消费
package push

import "context"

// Notification 推送事件载荷
type Notification struct {
	UserId string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// Notifier 推送通道接口
// 推送是尽力而为的旁路，失败不影响消息投递结果
type Notifier interface {
	Notify(ctx context.Context, n Notification)
	Close() error
}
