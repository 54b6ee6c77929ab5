// Package lootmodel 定义风险战利品的数据模型与日志文件中的 JSON 格式
package lootmodel

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ItemEntry 一组战利品（同一物品 ID 的堆叠）
type ItemEntry struct {
	Name     string `json:"name" validate:"notblank"`
	ID       int    `json:"id" validate:"gt=0"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	Price    int64  `json:"price" validate:"gte=0"`
}

// TotalValue 单价 × 数量
func (e ItemEntry) TotalValue() int64 {
	return e.Price * int64(e.Quantity)
}

// ItemsValue 计算一组物品的总价值
func ItemsValue(items []ItemEntry) int64 {
	var total int64
	for _, item := range items {
		total += item.TotalValue()
	}
	return total
}

// RiskedLootRecord 一次风险结算（领取或死亡丢失）的记录，写入后不再修改
type RiskedLootRecord struct {
	Items      []ItemEntry `json:"items" validate:"required,min=1,dive"`
	Timestamp  time.Time   `json:"timestamp"`
	Wave       int         `json:"wave" validate:"gt=0"`
	TotalValue int64       `json:"totalValue"`
	WasLost    bool        `json:"wasLost"`
}

// NewRiskedLootRecord 复制物品列表并计算总价值
func NewRiskedLootRecord(items []ItemEntry, at time.Time, wave int, wasLost bool) RiskedLootRecord {
	return RiskedLootRecord{
		Items:      slices.Clone(items),
		Timestamp:  at,
		Wave:       wave,
		TotalValue: ItemsValue(items),
		WasLost:    wasLost,
	}
}

// Equal 比较两条记录，时间精确到秒
func (r RiskedLootRecord) Equal(o RiskedLootRecord) bool {
	return slices.Equal(r.Items, o.Items) &&
		r.Timestamp.Truncate(time.Second).Equal(o.Timestamp.Truncate(time.Second)) &&
		r.Wave == o.Wave &&
		r.TotalValue == o.TotalValue &&
		r.WasLost == o.WasLost
}

// String 日志输出使用
func (r RiskedLootRecord) String() string {
	return fmt.Sprintf("RiskedLootRecord{items=%d wave=%d totalValue=%d wasLost=%t at=%s}",
		len(r.Items), r.Wave, r.TotalValue, r.WasLost, FormatTimestamp(r.Timestamp))
}

// 日志文件中的时间格式。
// 新记录写入带时区偏移的 RFC 3339；旧文件中的本地时间格式只读，AM/PM 之前可能是普通空格或 U+202F。
const (
	TimestampLayout       = time.RFC3339
	localTimestampLayout  = "Jan 2, 2006, 3:04:05 PM"
	legacyTimestampLayout = "Jan 2, 2006 3:04:05 PM"
	narrowNoBreakSpace    = "\u202f"
	noBreakSpace          = "\u00a0"
)

// FormatTimestamp 以日志文件格式输出时间，保留时区偏移
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

// ParseTimestamp 解析日志文件中的时间。不带偏移的旧格式按本机时区解释
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, narrowNoBreakSpace, " ")
	s = strings.ReplaceAll(s, noBreakSpace, " ")
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{localTimestampLayout, legacyTimestampLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

type recordWire struct {
	Items      []ItemEntry `json:"items"`
	Timestamp  *string     `json:"timestamp"`
	Wave       int         `json:"wave"`
	TotalValue int64       `json:"totalValue"`
	WasLost    bool        `json:"wasLost"`
}

// MarshalJSON 按日志文件格式编码
func (r RiskedLootRecord) MarshalJSON() ([]byte, error) {
	w := recordWire{
		Items:      r.Items,
		Wave:       r.Wave,
		TotalValue: r.TotalValue,
		WasLost:    r.WasLost,
	}
	if !r.Timestamp.IsZero() {
		ts := FormatTimestamp(r.Timestamp)
		w.Timestamp = &ts
	}
	return json.Marshal(w)
}

// UnmarshalJSON 解码日志行；缺失或为 null 的时间保留零值，由校验拒绝
func (r *RiskedLootRecord) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var ts time.Time
	if w.Timestamp != nil {
		parsed, err := ParseTimestamp(*w.Timestamp)
		if err != nil {
			return err
		}
		ts = parsed
	}
	*r = RiskedLootRecord{
		Items:      w.Items,
		Timestamp:  ts,
		Wave:       w.Wave,
		TotalValue: w.TotalValue,
		WasLost:    w.WasLost,
	}
	return nil
}
