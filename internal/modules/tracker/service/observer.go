package service

import (
	"sync"
	"time"

	"doom-loot/internal/pkg/log"
)

// ChangeKind 状态变更类型
type ChangeKind string

const (
	ChangeRiskUpdated     ChangeKind = "risk_updated"     // 当前风险变化
	ChangeRiskResolved    ChangeKind = "risk_resolved"    // 领取或丢失
	ChangeDeathCount      ChangeKind = "death_count"      // 死亡次数变化
	ChangeHistoryLoaded   ChangeKind = "history_loaded"   // 历史记录重新加载
	ChangePlayerSwitched  ChangeKind = "player_switched"  // 切换玩家
	ChangePanelVisibility ChangeKind = "panel_visibility" // 侧边栏开关
)

// Change 一次状态变更通知
type Change struct {
	Kind         ChangeKind
	EncounterID  string
	PanelVisible bool
	Stats        StatsSnapshot
	At           time.Time
	// Err 结算记录写入失败时非空，内存统计仍已更新
	Err error
}

// Observer 状态变更的接收方（侧边栏等）
type Observer interface {
	StateChanged(change Change)
}

// ObserverFunc 函数适配器
type ObserverFunc func(change Change)

func (f ObserverFunc) StateChanged(change Change) {
	f(change)
}

// NopObserver 丢弃所有通知
type NopObserver struct{}

func (NopObserver) StateChanged(Change) {}

// AsyncObserver 在独立 goroutine 中投递通知，调用方永不阻塞；缓冲区满时丢弃
type AsyncObserver struct {
	next   Observer
	ch     chan Change
	logger log.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncObserver 创建异步投递器，buffer <= 0 时使用 64
func NewAsyncObserver(next Observer, buffer int, logger log.Logger) *AsyncObserver {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	a := &AsyncObserver{
		next:   next,
		ch:     make(chan Change, buffer),
		logger: logger.With("component", "async_observer"),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncObserver) run() {
	defer close(a.done)
	for change := range a.ch {
		a.deliver(change)
	}
}

func (a *AsyncObserver) deliver(change Change) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("observer panicked", log.String("kind", string(change.Kind)), log.Any("panic", r))
		}
	}()
	a.next.StateChanged(change)
}

// StateChanged 非阻塞投递，Close 之后的通知直接丢弃
func (a *AsyncObserver) StateChanged(change Change) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}

	select {
	case a.ch <- change:
	default:
		a.logger.Warn("observer queue full, dropping notification", log.String("kind", string(change.Kind)))
	}
}

// Close 停止接收并等待已排队的通知投递完成
func (a *AsyncObserver) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}
