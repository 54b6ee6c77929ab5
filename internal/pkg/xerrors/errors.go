// File: internal/pkg/xerrors/errors.go
package xerrors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// ErrorLevel 错误级别
type ErrorLevel int

const (
	LevelInfo ErrorLevel = iota
	LevelWarn
	LevelError
	LevelCritical
)

func (l ErrorLevel) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ErrorContext 错误上下文信息
type ErrorContext struct {
	PlayerID    string                 `json:"player_id,omitempty"`
	EncounterID string                 `json:"encounter_id,omitempty"`
	Component   string                 `json:"component,omitempty"`
	Operation   string                 `json:"operation,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// AppError 领域错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`

	// 错误分类和级别
	Level    ErrorLevel `json:"level,omitempty"`
	Category string     `json:"category,omitempty"`

	// 业务上下文
	Context   *ErrorContext `json:"context,omitempty"`
	Timestamp time.Time     `json:"timestamp,omitempty"`

	// 调试信息
	Stack string `json:"stack,omitempty"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`

	Retryable bool `json:"retryable,omitempty"`
}

// Error 实现标准 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *AppError) Unwrap() error {
	return e.Err
}

// LogValue 实现 slog.LogValuer 接口，避免重复序列化逻辑
func (e *AppError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("code", int(e.Code)),
		slog.String("message", e.Message),
		slog.String("level", e.Level.String()),
		slog.String("category", e.Category),
		slog.Bool("retryable", e.Retryable),
	}

	if e.Context != nil {
		if e.Context.PlayerID != "" {
			attrs = append(attrs, slog.String("player_id", e.Context.PlayerID))
		}
		if e.Context.EncounterID != "" {
			attrs = append(attrs, slog.String("encounter_id", e.Context.EncounterID))
		}
		if e.Context.Component != "" {
			attrs = append(attrs, slog.String("component", e.Context.Component))
		}
		if e.Context.Operation != "" {
			attrs = append(attrs, slog.String("operation", e.Context.Operation))
		}
		for k, v := range e.Context.Metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
	}

	if e.Err != nil {
		attrs = append(attrs, slog.Any("underlying_error", e.Err))
	}

	return slog.GroupValue(attrs...)
}

// WithOperation 添加组件和操作信息
func (e *AppError) WithOperation(component, operation string) *AppError {
	if e.Context == nil {
		e.Context = &ErrorContext{}
	}
	e.Context.Component = component
	e.Context.Operation = operation
	return e
}

// WithPlayer 添加玩家与遭遇信息
func (e *AppError) WithPlayer(playerID, encounterID string) *AppError {
	if e.Context == nil {
		e.Context = &ErrorContext{}
	}
	e.Context.PlayerID = playerID
	e.Context.EncounterID = encounterID
	return e
}

// WithMetadata 添加自定义元数据（支持任意类型）
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = &ErrorContext{}
	}
	if e.Context.Metadata == nil {
		e.Context.Metadata = make(map[string]interface{})
	}
	e.Context.Metadata[key] = value
	return e
}

// IsRetryable 判断是否为可重试错误
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// IsCritical 判断是否为严重错误
func (e *AppError) IsCritical() bool {
	return e.Level == LevelCritical
}

// New 创建新的AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Level:     getLevelByCode(code),
		Category:  getCategoryByCode(code),
		Timestamp: time.Now(),
		Retryable: isRetryableByCode(code),
	}
}

// NewWithError 创建包含原始错误的 AppError
func NewWithError(code ErrorCode, message string, err error) *AppError {
	appErr := New(code, message)
	appErr.Err = err

	// 添加调试信息
	if pc, file, line, ok := runtime.Caller(1); ok {
		appErr.File = file
		appErr.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			appErr.Stack = fn.Name()
		}
	}

	return appErr
}

// FromCode 根据错误码创建 AppError
func FromCode(code ErrorCode) *AppError {
	msg, ok := codeMessages[code]
	if !ok {
		msg = codeMessages[CodeInternalError]
	}
	return New(code, msg)
}

// 快捷构造函数

func NewValidationError(field, message string) *AppError {
	return FromCode(CodeInvalidParams).
		WithMetadata("field", field).
		WithMetadata("validation_message", message)
}

func NewStorageError(operation, path string, err error) *AppError {
	appErr := FromCode(CodeStorageIOError).
		WithMetadata("storage_operation", operation).
		WithMetadata("path", path)
	appErr.Err = err
	return appErr
}

func NewNoActivePlayerError(operation string) *AppError {
	return FromCode(CodeNoActivePlayer).
		WithMetadata("storage_operation", operation)
}

func NewRecordCorruptError(path string, line int, err error) *AppError {
	appErr := FromCode(CodeRecordCorrupt).
		WithMetadata("path", path).
		WithMetadata("line", line)
	appErr.Err = err
	return appErr
}

func NewRecordInvalidError(path string, line int, err error) *AppError {
	appErr := FromCode(CodeRecordInvalid).
		WithMetadata("path", path).
		WithMetadata("line", line)
	appErr.Err = err
	return appErr
}

func NewMigrationError(path string, err error) *AppError {
	appErr := FromCode(CodeMigrationFailed).
		WithMetadata("path", path)
	appErr.Err = err
	return appErr
}

func NewSettingsError(operation, key string, err error) *AppError {
	appErr := FromCode(CodeSettingsError).
		WithMetadata("settings_operation", operation).
		WithMetadata("key", key)
	appErr.Err = err
	return appErr
}

// NewHandlerPanicError 将事件处理中 recover 到的值包装为错误
func NewHandlerPanicError(eventType string, recovered interface{}) *AppError {
	appErr := FromCode(CodeHandlerPanic).
		WithMetadata("event_type", eventType)
	if err, ok := recovered.(error); ok {
		appErr.Err = err
	} else {
		appErr.Err = fmt.Errorf("%v", recovered)
	}
	return appErr
}

// Wrap 包装标准错误为 AppError(保留堆栈)
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是 AppError,直接返回
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return NewWithError(code, message, err)
}

// HasCode 判断错误链中是否包含指定错误码
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
