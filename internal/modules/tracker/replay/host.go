package replay

import (
	"slices"
	"sync"

	"doom-loot/internal/modules/tracker/service"
)

// Host 由脚本驱动的宿主客户端
type Host struct {
	mu          sync.RWMutex
	present     bool
	bossNearby  bool
	interacting string
	slots       []service.WidgetSlot
}

// NewHost 创建宿主，本地玩家默认已加载
func NewHost() *Host {
	return &Host{present: true}
}

// Apply 应用步骤中的世界状态变化
func (h *Host) Apply(step Step) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if step.PlayerPresent != nil {
		h.present = *step.PlayerPresent
	}
	if step.BossNearby != nil {
		h.bossNearby = *step.BossNearby
	}
	if step.Interacting != nil {
		h.interacting = *step.Interacting
	}
	if step.Slots != nil {
		h.slots = slices.Clone(step.Slots)
	}
}

func (h *Host) LocalPlayerPresent() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.present
}

func (h *Host) IsNPCWithinRadius(name string, radius int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.present && h.bossNearby && name == service.BossName && radius >= 0
}

func (h *Host) InteractingNPCName() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.interacting
}

func (h *Host) ScanWidget(group, slots int) []service.WidgetSlot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if group != service.LootWidgetGroup || len(h.slots) == 0 {
		return nil
	}
	if len(h.slots) > slots {
		return slices.Clone(h.slots[:slots])
	}
	return slices.Clone(h.slots)
}

// Catalog 脚本中注册的物品目录
type Catalog struct {
	mu    sync.RWMutex
	items map[int]catalogEntry
}

type catalogEntry struct {
	name  string
	price int64
}

// NewCatalog 创建空目录
func NewCatalog() *Catalog {
	return &Catalog{items: make(map[int]catalogEntry)}
}

// Register 注册物品
func (c *Catalog) Register(id int, name string, price int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = catalogEntry{name: name, price: price}
}

// Lookup 未注册的物品返回空名称与零价格
func (c *Catalog) Lookup(id int) (string, int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.items[id]
	return e.name, e.price
}
