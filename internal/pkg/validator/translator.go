package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError 验证错误详情
type ValidationError struct {
	Field   string `json:"field"`   // 字段名（含路径）
	Message string `json:"message"` // 错误消息
	Tag     string `json:"tag"`     // 验证标签（如：required, gt）
}

// TranslateValidationErrors 翻译所有验证错误（返回详细列表）
func TranslateValidationErrors(err error) []ValidationError {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		// 非 validator 错误，返回通用错误
		return []ValidationError{
			{
				Field:   "record",
				Message: err.Error(),
				Tag:     "unknown",
			},
		}
	}

	result := make([]ValidationError, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		result = append(result, ValidationError{
			Field:   fieldPath(fieldErr),
			Message: translateFieldError(fieldErr),
			Tag:     fieldErr.Tag(),
		})
	}

	return result
}

// Summary 将验证错误合并为一行，便于写入日志
func Summary(err error) string {
	errs := TranslateValidationErrors(err)
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}

// fieldPath 去掉最外层结构体名，例如 RiskedLootRecord.items[0].id -> items[0].id
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func translateFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "notblank":
		return "不能为空白"
	case "min":
		return fmt.Sprintf("至少需要 %s 项", fe.Param())
	case "gt":
		return fmt.Sprintf("必须大于 %s", fe.Param())
	case "gte":
		return fmt.Sprintf("必须大于等于 %s", fe.Param())
	case "eqitems":
		return "必须等于各物品价值之和"
	default:
		return fmt.Sprintf("校验失败 (%s)", fe.Tag())
	}
}
