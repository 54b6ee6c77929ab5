package service

import "time"

// 死亡信号来源
const (
	DeathSourceActor = "actor_death"
	DeathSourceChat  = "chat_message"
)

// DefaultDeathDedupWindow 两个死亡信号相隔小于该时长时视为同一次死亡
const DefaultDeathDedupWindow = 10 * time.Second

// DeathDeduper 同一次死亡可能同时触发角色死亡事件与聊天消息，只计第一个
type DeathDeduper struct {
	window time.Duration
	last   time.Time
}

// NewDeathDeduper 创建去重器，window <= 0 时使用默认窗口
func NewDeathDeduper(window time.Duration) *DeathDeduper {
	if window <= 0 {
		window = DefaultDeathDedupWindow
	}
	return &DeathDeduper{window: window}
}

// Count 记录一个死亡信号，返回是否应当计数
func (d *DeathDeduper) Count(now time.Time) bool {
	if !d.last.IsZero() {
		diff := now.Sub(d.last)
		if diff < 0 {
			diff = -diff
		}
		if diff < d.window {
			return false
		}
	}
	d.last = now
	return true
}
