package interfaces

import (
	"context"

	"doom-loot/internal/model/lootmodel"
)

// SkippedLine 加载时被跳过的一行
type SkippedLine struct {
	Line   int    // 行号（从 1 开始）
	Reason string // corrupt / invalid
	Detail string // 解析或校验错误描述
}

// LoadReport 一次完整加载的结果
type LoadReport struct {
	Records  []lootmodel.RiskedLootRecord // 按文件顺序排列的有效记录
	Skipped  []SkippedLine                // 被跳过的行
	Migrated bool                         // 本次加载是否完成了旧格式迁移
}

// RiskedLootRepository 风险战利品记录仓储接口
// 每个玩家一个只追加的日志，所有操作作用于当前激活的玩家
type RiskedLootRepository interface {
	// SwitchPlayer 切换当前玩家（忽略大小写相同时为空操作），返回是否发生切换
	SwitchPlayer(ctx context.Context, player string) (bool, error)

	// Player 返回当前玩家目录名，未设置时为空
	Player() string

	// Append 追加一条记录（每次独立打开、写入、关闭）
	Append(ctx context.Context, record lootmodel.RiskedLootRecord) error

	// LoadAll 加载全部有效记录，损坏或非法的行被跳过
	LoadAll(ctx context.Context) ([]lootmodel.RiskedLootRecord, error)

	// LoadWithReport 与 LoadAll 相同，额外返回被跳过的行
	LoadWithReport(ctx context.Context) (*LoadReport, error)

	// MigrateLegacyFormat 将旧版 JSON 数组文件迁移为逐行格式，返回是否执行了迁移
	MigrateLegacyFormat(ctx context.Context) (bool, error)

	// DeleteAll 删除当前玩家的全部记录（文件不存在视为成功）
	DeleteAll(ctx context.Context) error
}
