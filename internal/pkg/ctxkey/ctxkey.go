// File: internal/pkg/ctxkey/ctxkey.go
package ctxkey

import "context"

// ContextKey 统一的 context key 类型
type ContextKey string

const (
	// Language 语言偏好（死亡消息匹配使用）
	Language ContextKey = "language"

	// PlayerID 当前玩家存储目录标识（账号哈希 + 档案类型）
	PlayerID ContextKey = "player_id"

	// EncounterID 当前 Boss 遭遇 ID，每次重新进入副本时生成
	EncounterID ContextKey = "encounter_id"

	// EventType 当前正在处理的宿主事件类型
	EventType ContextKey = "event_type"
)

// WithValue 在 context 中设置指定 key 的值
func WithValue(ctx context.Context, key ContextKey, value interface{}) context.Context {
	return context.WithValue(ctx, key, value)
}

// GetString 从 context 中获取字符串类型的值
func GetString(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(key).(string); ok {
		return value
	}
	return ""
}
