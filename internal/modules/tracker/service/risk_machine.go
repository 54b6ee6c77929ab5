package service

import (
	"slices"
	"time"

	"doom-loot/internal/model/lootmodel"
)

// RiskPhase 风险状态
type RiskPhase int

const (
	PhaseIdle        RiskPhase = iota // 没有未领取的战利品
	PhaseLootPending                  // 战利品界面已出现，等待选择
	PhaseRisked                       // 玩家选择继续，战利品仍处于风险中
)

func (p RiskPhase) String() string {
	switch p {
	case PhaseLootPending:
		return "loot_pending"
	case PhaseRisked:
		return "risked"
	default:
		return "idle"
	}
}

// ObserveOutcome 观察到战利品界面后的结果
type ObserveOutcome int

const (
	ObserveAccepted ObserveOutcome = iota
	// ObserveEmpty 扫描结果为空，状态不变
	ObserveEmpty
	// ObserveAlreadyClaimed 本次遭遇已领取，忽略
	ObserveAlreadyClaimed
)

// CurrentRisk 当前处于风险中的战利品
type CurrentRisk struct {
	Items []lootmodel.ItemEntry `json:"items"`
	Wave  int                   `json:"wave"`
	Value int64                 `json:"value"`
}

// RiskSnapshot 状态机快照
type RiskSnapshot struct {
	Phase                RiskPhase
	Items                []lootmodel.ItemEntry
	Wave                 int   // 当前挑战的波次
	OfferWave            int   // 手中战利品所属的波次，结算时写入记录
	Value                int64 // 手中战利品总价值
	ClaimedThisEncounter bool
}

// RiskMachine 风险战利品状态机：Idle -> LootPending -> Risked -> (LootPending | Claimed | Lost)。
// 不做 I/O，结算时返回待持久化的记录。不是并发安全的，由单一事件线程驱动。
type RiskMachine struct {
	phase     RiskPhase
	items     []lootmodel.ItemEntry
	value     int64
	wave      int
	offerWave int
	claimed   bool
}

// NewRiskMachine 创建空闲状态机
func NewRiskMachine() *RiskMachine {
	return &RiskMachine{}
}

// ObserveLoot 战利品界面出现，items 为提取结果
func (m *RiskMachine) ObserveLoot(items []lootmodel.ItemEntry) ObserveOutcome {
	if m.claimed {
		return ObserveAlreadyClaimed
	}
	if len(items) == 0 {
		return ObserveEmpty
	}

	// 本次遭遇第一份战利品从第 1 波开始；继续挑战后出现的新战利品沿用已推进的波次
	if m.phase == PhaseIdle {
		m.wave = 1
	}
	m.items = slices.Clone(items)
	m.value = lootmodel.ItemsValue(items)
	m.offerWave = m.wave
	m.phase = PhaseLootPending
	return ObserveAccepted
}

// Claim 领取战利品，返回需要写入的记录；没有未领取战利品时返回 nil
func (m *RiskMachine) Claim(at time.Time) *lootmodel.RiskedLootRecord {
	if !m.HasUnclaimedLoot() {
		return nil
	}
	m.claimed = true
	rec := lootmodel.NewRiskedLootRecord(m.items, at, m.offerWave, false)
	m.reset()
	return &rec
}

// Continue 选择继续挑战，战利品继续处于风险中。返回新的波次，无效时返回 0
func (m *RiskMachine) Continue() int {
	if !m.HasUnclaimedLoot() {
		return 0
	}
	m.wave++
	m.phase = PhaseRisked
	return m.wave
}

// Lose 死亡导致战利品丢失，返回需要写入的记录；没有未领取战利品时返回 nil
func (m *RiskMachine) Lose(at time.Time) *lootmodel.RiskedLootRecord {
	if !m.HasUnclaimedLoot() {
		return nil
	}
	rec := lootmodel.NewRiskedLootRecord(m.items, at, m.offerWave, true)
	m.reset()
	return &rec
}

// Abandon 离开副本，丢弃战利品但不记录损失。返回是否确实丢弃了战利品
func (m *RiskMachine) Abandon() bool {
	had := m.HasUnclaimedLoot()
	m.reset()
	return had
}

// Rearm 重新看到首领，允许再次追踪战利品
func (m *RiskMachine) Rearm() {
	m.claimed = false
}

// HasUnclaimedLoot 是否有未领取的战利品
func (m *RiskMachine) HasUnclaimedLoot() bool {
	return len(m.items) > 0
}

// ClaimedThisEncounter 本次遭遇是否已领取
func (m *RiskMachine) ClaimedThisEncounter() bool {
	return m.claimed
}

// Phase 当前状态
func (m *RiskMachine) Phase() RiskPhase {
	return m.phase
}

// Snapshot 返回状态副本
func (m *RiskMachine) Snapshot() RiskSnapshot {
	return RiskSnapshot{
		Phase:                m.phase,
		Items:                slices.Clone(m.items),
		Wave:                 m.wave,
		OfferWave:            m.offerWave,
		Value:                m.value,
		ClaimedThisEncounter: m.claimed,
	}
}

// Current 当前风险（界面展示用）
func (m *RiskMachine) Current() CurrentRisk {
	return CurrentRisk{Items: slices.Clone(m.items), Wave: m.wave, Value: m.value}
}

func (m *RiskMachine) reset() {
	m.phase = PhaseIdle
	m.items = nil
	m.value = 0
	m.wave = 0
	m.offerWave = 0
}
