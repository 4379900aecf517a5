// Package state 提供共享键值状态的抽象
// 在线状态镜像和通话挂断去重表都是跨事件的可变共享结构，
// 统一建模为带过期语义的 SharedState：单进程用内存实现，
// 多进程部署切换为 Redis 实现即可保持一致
package state

import (
	"context"
	"time"
)

// SharedState 带过期语义的共享键值状态
// V 建议使用可 JSON 序列化的小结构体，Redis 实现按 JSON 存储
type SharedState[V any] interface {
	// Get 读取键值，第二个返回值表示键是否存在（含未过期）
	Get(ctx context.Context, key string) (V, bool, error)
	// Set 写入键值，ttl 为 0 表示不过期
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	// SetNX 键不存在时写入，返回是否写入成功
	SetNX(ctx context.Context, key string, value V, ttl time.Duration) (bool, error)
	// Delete 删除键（不存在不报错）
	Delete(ctx context.Context, key string) error
}
