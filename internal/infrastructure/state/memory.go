package state

import (
	"context"
	"sync"
	"time"
)

// memoryEntry 内存实现的存储单元
type memoryEntry[V any] struct {
	value     V
	expiresAt time.Time // 零值表示不过期
}

// MemoryState SharedState 的进程内实现
// 读写路径都顺带清理过期键，不依赖后台协程，
// 适合单进程部署（多进程场景换 RedisState）
type MemoryState[V any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[V]
	now     func() time.Time // 测试注入
}

// NewMemoryState 创建内存共享状态
func NewMemoryState[V any]() *MemoryState[V] {
	return &MemoryState[V]{
		entries: make(map[string]memoryEntry[V]),
		now:     time.Now,
	}
}

// SetClock 注入时钟，仅测试使用
func (m *MemoryState[V]) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryState[V]) expired(e memoryEntry[V]) bool {
	return !e.expiresAt.IsZero() && m.now().After(e.expiresAt)
}

// Get 读取键值
func (m *MemoryState[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false, nil
	}
	if m.expired(e) {
		delete(m.entries, key)
		var zero V
		return zero, false, nil
	}
	return e.value, true, nil
}

// Set 写入键值
func (m *MemoryState[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = m.entry(value, ttl)
	return nil
}

// SetNX 键不存在时写入
func (m *MemoryState[V]) SetNX(_ context.Context, key string, value V, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !m.expired(e) {
		return false, nil
	}
	m.entries[key] = m.entry(value, ttl)
	return true, nil
}

// Delete 删除键
func (m *MemoryState[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryState[V]) entry(value V, ttl time.Duration) memoryEntry[V] {
	e := memoryEntry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	return e
}
