package chatclient

import "time"

// 通话连接看护状态
type MonitorState int

const (
	MonitorIdle MonitorState = iota
	MonitorActive
	// MonitorWaiting 线路断开，等宽限期再决定是否重连
	MonitorWaiting
	MonitorRestarting
	MonitorClosed
)

// 看护动作，由调用方执行（定时器、ICE 重启、挂断）
type MonitorAction int

const (
	ActionNone MonitorAction = iota
	// ActionWaitGrace 启动宽限期定时器，到期后调 OnGraceElapsed
	ActionWaitGrace
	// ActionRestartIce 发起一次 ICE 重启
	ActionRestartIce
	// ActionTeardown 本地拆除通话并向对端发 call_end
	ActionTeardown
)

// MonitorConfig 看护参数
type MonitorConfig struct {
	// GracePeriod 断开后的宽限期，期间线路自己恢复则不干预
	GracePeriod time.Duration
	// MaxRestarts ICE 重启次数上限，超过后放弃并拆除通话
	MaxRestarts int
}

// DefaultMonitorConfig 默认参数
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		GracePeriod: 4 * time.Second,
		MaxRestarts: 2,
	}
}

// CallMonitor 通话连接看护状态机
// 对端掉线不会有服务端超时兜底，由客户端观察连接状态自行收尾：
// 断开 → 宽限期 → 有限次 ICE 重启 → 本地拆除并通知对端。
// 纯状态转移，不含定时器，调用方驱动，便于测试
type CallMonitor struct {
	cfg            MonitorConfig
	state          MonitorState
	restarts       int
	disconnectedAt time.Time
}

// NewCallMonitor 创建看护状态机
func NewCallMonitor(cfg MonitorConfig) *CallMonitor {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultMonitorConfig().GracePeriod
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = DefaultMonitorConfig().MaxRestarts
	}
	return &CallMonitor{cfg: cfg, state: MonitorIdle}
}

// State 当前状态
func (m *CallMonitor) State() MonitorState {
	return m.state
}

// Restarts 已尝试的 ICE 重启次数
func (m *CallMonitor) Restarts() int {
	return m.restarts
}

// OnConnected 线路已连通（首次建立或重启成功）
func (m *CallMonitor) OnConnected() MonitorAction {
	if m.state == MonitorClosed {
		return ActionNone
	}
	m.state = MonitorActive
	m.restarts = 0
	return ActionNone
}

// OnDisconnected 线路断开，进入宽限期
func (m *CallMonitor) OnDisconnected(at time.Time) MonitorAction {
	switch m.state {
	case MonitorActive, MonitorRestarting:
		m.state = MonitorWaiting
		m.disconnectedAt = at
		return ActionWaitGrace
	default:
		return ActionNone
	}
}

// OnGraceElapsed 宽限期定时器到期
// 期间线路恢复过（state 已不是 Waiting）则什么都不做；
// 仍然断着就尝试 ICE 重启，次数用完则拆除通话
func (m *CallMonitor) OnGraceElapsed(at time.Time) MonitorAction {
	if m.state != MonitorWaiting {
		return ActionNone
	}
	if at.Sub(m.disconnectedAt) < m.cfg.GracePeriod {
		// 定时器提前触发，继续等
		return ActionWaitGrace
	}
	if m.restarts >= m.cfg.MaxRestarts {
		m.state = MonitorClosed
		return ActionTeardown
	}
	m.restarts++
	m.state = MonitorRestarting
	return ActionRestartIce
}

// OnRestartFailed 一次 ICE 重启失败
func (m *CallMonitor) OnRestartFailed(at time.Time) MonitorAction {
	if m.state != MonitorRestarting {
		return ActionNone
	}
	if m.restarts >= m.cfg.MaxRestarts {
		m.state = MonitorClosed
		return ActionTeardown
	}
	m.restarts++
	return ActionRestartIce
}

// OnPeerEnded 收到对端 call_end，直接关闭
func (m *CallMonitor) OnPeerEnded() MonitorAction {
	if m.state == MonitorClosed {
		return ActionNone
	}
	m.state = MonitorClosed
	return ActionTeardown
}
