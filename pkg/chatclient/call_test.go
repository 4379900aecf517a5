package chatclient

import (
	"testing"
	"time"
)

func TestMonitorHappyPathStaysActive(t *testing.T) {
	m := NewCallMonitor(DefaultMonitorConfig())
	if got := m.OnConnected(); got != ActionNone {
		t.Fatalf("connect action = %v", got)
	}
	if m.State() != MonitorActive {
		t.Fatalf("state = %v", m.State())
	}
}

func TestMonitorRecoversWithinGracePeriod(t *testing.T) {
	m := NewCallMonitor(DefaultMonitorConfig())
	base := time.Now()

	m.OnConnected()
	if got := m.OnDisconnected(base); got != ActionWaitGrace {
		t.Fatalf("disconnect action = %v", got)
	}

	// 宽限期内线路自己恢复了
	m.OnConnected()
	if got := m.OnGraceElapsed(base.Add(5 * time.Second)); got != ActionNone {
		t.Fatalf("grace after recovery should be a no-op, got %v", got)
	}
	if m.State() != MonitorActive {
		t.Fatalf("state = %v", m.State())
	}
}

func TestMonitorRestartsThenTearsDown(t *testing.T) {
	cfg := MonitorConfig{GracePeriod: 4 * time.Second, MaxRestarts: 2}
	m := NewCallMonitor(cfg)
	base := time.Now()

	m.OnConnected()
	m.OnDisconnected(base)

	// 第一次宽限期到，尝试重启
	if got := m.OnGraceElapsed(base.Add(4 * time.Second)); got != ActionRestartIce {
		t.Fatalf("first grace action = %v", got)
	}
	if m.Restarts() != 1 {
		t.Fatalf("restarts = %d", m.Restarts())
	}

	// 第二次重启失败
	if got := m.OnRestartFailed(base.Add(8 * time.Second)); got != ActionRestartIce {
		t.Fatalf("second restart action = %v", got)
	}

	// 次数用完，本地拆除通话
	if got := m.OnRestartFailed(base.Add(12 * time.Second)); got != ActionTeardown {
		t.Fatalf("exhausted restarts should tear down, got %v", got)
	}
	if m.State() != MonitorClosed {
		t.Fatalf("state = %v", m.State())
	}
}

func TestMonitorEarlyTimerKeepsWaiting(t *testing.T) {
	m := NewCallMonitor(MonitorConfig{GracePeriod: 4 * time.Second, MaxRestarts: 2})
	base := time.Now()

	m.OnConnected()
	m.OnDisconnected(base)
	if got := m.OnGraceElapsed(base.Add(time.Second)); got != ActionWaitGrace {
		t.Fatalf("early timer should keep waiting, got %v", got)
	}
	if m.State() != MonitorWaiting {
		t.Fatalf("state = %v", m.State())
	}
}

func TestMonitorPeerEndClosesImmediately(t *testing.T) {
	m := NewCallMonitor(DefaultMonitorConfig())
	m.OnConnected()
	if got := m.OnPeerEnded(); got != ActionTeardown {
		t.Fatalf("peer end action = %v", got)
	}
	// 关闭后任何观察都不再产生动作
	if got := m.OnDisconnected(time.Now()); got != ActionNone {
		t.Fatalf("closed monitor must ignore events, got %v", got)
	}
}
