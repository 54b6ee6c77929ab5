package service

import "time"

// PresenceState 副本在场状态
type PresenceState int

const (
	OutOfInstance PresenceState = iota
	InstanceActive
	InstanceGrace
)

func (s PresenceState) String() string {
	switch s {
	case InstanceActive:
		return "active"
	case InstanceGrace:
		return "grace"
	default:
		return "out_of_instance"
	}
}

// PresenceResult 一次评估的结果
type PresenceResult struct {
	State        PresenceState
	Sighted      bool // 本刻看到了首领
	Expired      bool // 本刻因超时离开副本
	NewEncounter bool // 本刻从副本外进入（新的一次遭遇）
}

// PresenceTracker 根据断续的首领可见信号判断是否仍在副本内。
// 首领消失后在 timeout 内保持在场（宽限期），超时后判定离开。
type PresenceTracker struct {
	timeout  time.Duration
	state    PresenceState
	everSeen bool
	lastSeen time.Time
}

// NewPresenceTracker 创建在场判定器，timeout <= 0 时使用 InstanceTimeout
func NewPresenceTracker(timeout time.Duration) *PresenceTracker {
	if timeout <= 0 {
		timeout = InstanceTimeout
	}
	return &PresenceTracker{timeout: timeout}
}

// Observe 每个游戏刻调用一次
func (p *PresenceTracker) Observe(now time.Time, sighted bool) PresenceResult {
	if sighted {
		result := PresenceResult{State: InstanceActive, Sighted: true, NewEncounter: !p.everSeen}
		p.everSeen = true
		p.lastSeen = now
		p.state = InstanceActive
		return result
	}

	if !p.everSeen {
		p.state = OutOfInstance
		return PresenceResult{State: OutOfInstance}
	}

	if now.Sub(p.lastSeen) < p.timeout {
		p.state = InstanceGrace
		return PresenceResult{State: InstanceGrace}
	}

	p.state = OutOfInstance
	p.everSeen = false
	return PresenceResult{State: OutOfInstance, Expired: true}
}

// State 当前状态
func (p *PresenceTracker) State() PresenceState {
	return p.state
}

// InInstance 活跃或宽限期内都算在副本内
func (p *PresenceTracker) InInstance() bool {
	return p.state != OutOfInstance
}

// LastSeen 最后一次看到首领的时间
func (p *PresenceTracker) LastSeen() time.Time {
	return p.lastSeen
}
