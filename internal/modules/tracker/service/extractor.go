package service

import (
	"fmt"
	"strings"

	"doom-loot/internal/model/lootmodel"
)

// WidgetSlot 界面组件的一次扫描结果，ItemID <= 0 表示空位
type WidgetSlot struct {
	ItemID   int          `json:"item_id"`
	Quantity int          `json:"quantity"`
	Children []WidgetSlot `json:"children,omitempty"`
}

// ExtractLoot 将界面扫描结果转换为去重后的物品列表
//
// 规则：
//   - 数量 <= 0 视为 1
//   - 占位物品 PlaceholderItemID 永远排除
//   - 按物品 ID 去重，先出现的保留，后出现的丢弃（不合并数量）
//   - 组件自身的物品先于其子组件
//   - 名称缺失或为占位字符串时使用 "Unknown Item (ID: <id>)"
func ExtractLoot(slots []WidgetSlot, catalog ItemCatalog) []lootmodel.ItemEntry {
	items := make([]lootmodel.ItemEntry, 0)
	seen := make(map[int]struct{})

	var visit func(slot WidgetSlot)
	visit = func(slot WidgetSlot) {
		if slot.ItemID > 0 && slot.ItemID != PlaceholderItemID {
			if _, dup := seen[slot.ItemID]; !dup {
				seen[slot.ItemID] = struct{}{}
				items = append(items, newItemEntry(slot.ItemID, slot.Quantity, catalog))
			}
		}
		for _, child := range slot.Children {
			visit(child)
		}
	}

	for _, slot := range slots {
		visit(slot)
	}
	return items
}

func newItemEntry(id, quantity int, catalog ItemCatalog) lootmodel.ItemEntry {
	if quantity <= 0 {
		quantity = 1
	}

	var (
		name  string
		price int64
	)
	if catalog != nil {
		name, price = catalog.Lookup(id)
	}
	if isPlaceholderName(name) {
		name = fmt.Sprintf("Unknown Item (ID: %d)", id)
	}
	if price < 0 {
		price = 0
	}

	return lootmodel.ItemEntry{Name: name, ID: id, Quantity: quantity, Price: price}
}

func isPlaceholderName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed == "" || trimmed == "null"
}
