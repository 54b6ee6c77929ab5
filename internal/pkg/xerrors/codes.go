// File: internal/pkg/xerrors/codes.go
package xerrors

import "fmt"

// ErrorCode 错误码类型（类型安全）
type ErrorCode int

// String 返回错误码的字符串表示
func (c ErrorCode) String() string {
	if msg, ok := codeMessages[c]; ok {
		return fmt.Sprintf("%d (%s)", c, msg)
	}
	return fmt.Sprintf("%d (未定义的错误码)", c)
}

// -----------------------------------------------------------------------------
// 业务错误码统一定义
// 按模块或领域对错误码进行分段，便于管理。
// -----------------------------------------------------------------------------
const (
	// 1xxxxx: 通用错误码
	CodeSuccess       ErrorCode = 100000 // 操作成功
	CodeInternalError ErrorCode = 100001 // 内部错误
	CodeInvalidParams ErrorCode = 100002 // 参数错误

	// 6xxxxx: 记录数据错误码
	CodeRecordCorrupt   ErrorCode = 600001 // 记录行无法解析
	CodeRecordInvalid   ErrorCode = 600002 // 记录结构校验失败
	CodeMigrationFailed ErrorCode = 600003 // 旧格式迁移失败

	// 7xxxxx: 存储错误码
	CodeStorageIOError ErrorCode = 700001 // 文件读写失败
	CodeSettingsError  ErrorCode = 700002 // 配置存储失败

	// 8xxxxx: 追踪器错误码
	CodeNoActivePlayer ErrorCode = 800001 // 未设置当前玩家
	CodeHandlerPanic   ErrorCode = 800002 // 事件处理发生 panic
)

// -----------------------------------------------------------------------------
// 错误消息映射
// -----------------------------------------------------------------------------
var codeMessages = map[ErrorCode]string{
	CodeSuccess:       "操作成功",
	CodeInternalError: "内部错误",
	CodeInvalidParams: "参数错误",

	CodeRecordCorrupt:   "记录行无法解析",
	CodeRecordInvalid:   "记录校验失败",
	CodeMigrationFailed: "旧格式迁移失败",

	CodeStorageIOError: "文件读写失败",
	CodeSettingsError:  "配置存储失败",

	CodeNoActivePlayer: "未设置当前玩家",
	CodeHandlerPanic:   "事件处理异常",
}

// getCategoryByCode 根据错误码获取分类
func getCategoryByCode(code ErrorCode) string {
	switch {
	case code >= 100000 && code < 200000:
		return "system"
	case code >= 600000 && code < 700000:
		return "record"
	case code >= 700000 && code < 800000:
		return "storage"
	case code >= 800000 && code < 900000:
		return "tracker"
	default:
		return "unknown"
	}
}

// getLevelByCode 根据错误码获取级别
func getLevelByCode(code ErrorCode) ErrorLevel {
	switch {
	case code == CodeSuccess:
		return LevelInfo
	case code == CodeInvalidParams:
		return LevelWarn
	case code >= 600000 && code < 700000: // 单行损坏只影响该行
		return LevelWarn
	case code == CodeHandlerPanic:
		return LevelCritical
	default:
		return LevelError
	}
}

// isRetryableByCode 根据错误码判断是否可重试
// 注意：追踪器本身从不自动重试，该标记仅用于日志与调用方判断
func isRetryableByCode(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		CodeStorageIOError: true,
		CodeSettingsError:  true,
	}
	return retryableCodes[code]
}
