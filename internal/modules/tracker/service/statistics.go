package service

import (
	"context"
	"slices"
	"sync"

	"doom-loot/internal/model/lootmodel"
	"doom-loot/internal/pkg/config"
)

// StatsSnapshot 统计数据快照（界面与定时快照使用）
type StatsSnapshot struct {
	DoomDeaths         int   `json:"doom_deaths"`
	LootLostToDeaths   int   `json:"loot_lost_to_deaths"`
	TotalLootValueLost int64 `json:"total_loot_value_lost"`

	ClaimedCount int   `json:"claimed_count"`
	ClaimedValue int64 `json:"claimed_value"`
	LargestLoss  int64 `json:"largest_loss"`
	AverageLoss  int64 `json:"average_loss"`

	CurrentRisk CurrentRisk                  `json:"current_risk"`
	History     []lootmodel.RiskedLootRecord `json:"history"` // 最新的在前
}

// Statistics 统计门面。
// 计数器是配置中的缓存，历史记录是唯一可信来源，Reconcile 用历史修正计数器。
// 事件线程写入，界面与定时任务并发读取。
type Statistics struct {
	mu sync.RWMutex
	// persistMu 串行化计数器写回，读取与写入在同一临界区内，旧值不会覆盖新值
	persistMu sync.Mutex

	doomDeaths int
	lootLost   int
	valueLost  int64

	history []lootmodel.RiskedLootRecord
	current CurrentRisk
}

// NewStatistics 创建空统计
func NewStatistics() *Statistics {
	return &Statistics{}
}

// LoadCounters 使用配置中缓存的计数器初始化
func (s *Statistics) LoadCounters(doomDeaths, lootLost int, valueLost int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doomDeaths = doomDeaths
	s.lootLost = lootLost
	s.valueLost = valueLost
}

// IncrementDeaths 死亡次数 +1，返回新值
func (s *Statistics) IncrementDeaths() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doomDeaths++
	return s.doomDeaths
}

// AddRecord 追加一条结算记录，丢失记录同时累加损失计数器。返回最新的损失计数器
func (s *Statistics) AddRecord(rec lootmodel.RiskedLootRecord) (lootLost int, valueLost int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, rec)
	if rec.WasLost {
		s.lootLost++
		s.valueLost += rec.TotalValue
	}
	return s.lootLost, s.valueLost
}

// SetCurrentRisk 更新当前风险
func (s *Statistics) SetCurrentRisk(current CurrentRisk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = current
}

// Reconcile 用完整历史替换内存记录并重新计算损失计数器，计数器被修正时返回 true
func (s *Statistics) Reconcile(records []lootmodel.RiskedLootRecord) bool {
	var (
		lost  int
		value int64
	)
	for _, rec := range records {
		if rec.WasLost {
			lost++
			value += rec.TotalValue
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = slices.Clone(records)
	if lost == s.lootLost && value == s.valueLost {
		return false
	}
	s.lootLost = lost
	s.valueLost = value
	return true
}

// HistoryLen 历史记录条数
func (s *Statistics) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Counters 返回三个持久化计数器
func (s *Statistics) Counters() (doomDeaths, lootLost int, valueLost int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doomDeaths, s.lootLost, s.valueLost
}

// Snapshot 返回统计快照
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		DoomDeaths:         s.doomDeaths,
		LootLostToDeaths:   s.lootLost,
		TotalLootValueLost: s.valueLost,
		CurrentRisk: CurrentRisk{
			Items: slices.Clone(s.current.Items),
			Wave:  s.current.Wave,
			Value: s.current.Value,
		},
		History: make([]lootmodel.RiskedLootRecord, 0, len(s.history)),
	}

	var lossRecords int
	var lossTotal int64
	for i := len(s.history) - 1; i >= 0; i-- {
		rec := s.history[i]
		snap.History = append(snap.History, rec)
		if rec.WasLost {
			lossRecords++
			lossTotal += rec.TotalValue
			snap.LargestLoss = max(snap.LargestLoss, rec.TotalValue)
		} else {
			snap.ClaimedCount++
			snap.ClaimedValue += rec.TotalValue
		}
	}
	if lossRecords > 0 {
		snap.AverageLoss = lossTotal / int64(lossRecords)
	}
	return snap
}

// Persist 将全部计数器写回配置存储
func (s *Statistics) Persist(ctx context.Context, settings *config.TrackerSettings) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	deaths, lost, value := s.Counters()
	if err := settings.SetDoomDeaths(ctx, deaths); err != nil {
		return err
	}
	return settings.SetLossCounters(ctx, lost, value)
}

// PersistDeaths 写回当前死亡次数
func (s *Statistics) PersistDeaths(ctx context.Context, settings *config.TrackerSettings) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	deaths, _, _ := s.Counters()
	return settings.SetDoomDeaths(ctx, deaths)
}

// PersistLossCounters 写回当前丢失次数与丢失总价值
func (s *Statistics) PersistLossCounters(ctx context.Context, settings *config.TrackerSettings) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	_, lost, value := s.Counters()
	return settings.SetLossCounters(ctx, lost, value)
}
