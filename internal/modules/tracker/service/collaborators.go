package service

import "time"

// 首领与战利品界面常量
const (
	BossName = "Doom of Mokhaiotl"

	// BossRadius 视为"在首领附近"的最大距离（格）
	BossRadius = 50

	// InstanceTimeout 最后一次看到首领后仍视为在副本内的时长
	InstanceTimeout = 5 * time.Minute

	// LootWidgetGroup 战利品界面组 ID，扫描其中 0..LootWidgetSlots-1 号组件
	LootWidgetGroup = 919
	LootWidgetSlots = 50

	// PlaceholderItemID 界面中的占位物品，永远不计入战利品
	PlaceholderItemID = 6512
)

// HostClient 追踪器对宿主客户端的查询接口（在消费端定义）
type HostClient interface {
	// LocalPlayerPresent 本地玩家是否已加载
	LocalPlayerPresent() bool

	// IsNPCWithinRadius 指定名称的 NPC 是否在本地玩家 radius 格以内
	IsNPCWithinRadius(name string, radius int) bool

	// InteractingNPCName 本地玩家当前交互（战斗）目标的 NPC 名称，没有时为空
	InteractingNPCName() string

	// ScanWidget 扫描界面组的 0..slots-1 号组件，界面未加载时返回 nil
	ScanWidget(group, slots int) []WidgetSlot
}

// ItemCatalog 物品名称与价格查询
type ItemCatalog interface {
	// Lookup 返回物品显示名称与单价（已按票据关联到实际物品）
	Lookup(itemID int) (name string, price int64)
}

// ItemCatalogFunc 函数适配器
type ItemCatalogFunc func(itemID int) (string, int64)

func (f ItemCatalogFunc) Lookup(itemID int) (string, int64) {
	return f(itemID)
}
