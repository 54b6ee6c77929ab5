package validator

import (
	"reflect"
	"strings"

	"doom-loot/internal/model/lootmodel"

	"github.com/go-playground/validator/v10"
)

// RecordValidator 校验从日志加载的风险战利品记录。
// 写入方生成的记录默认合法，这里只防御外部修改与旧版本数据。
type RecordValidator struct {
	validator *validator.Validate
}

// New 创建记录校验器
func New() *RecordValidator {
	v := validator.New()

	// 使用 json 名称作为字段名，日志中与文件内容一致
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("notblank", validateNotBlank)
	v.RegisterStructValidation(validateRecord, lootmodel.RiskedLootRecord{})

	return &RecordValidator{validator: v}
}

// ValidateRecord 校验单条记录
func (rv *RecordValidator) ValidateRecord(rec lootmodel.RiskedLootRecord) error {
	return rv.validator.Struct(rec)
}

// validateNotBlank 去除空白后不能为空
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// validateRecord 时间必须存在，总价值必须等于各物品价值之和
func validateRecord(sl validator.StructLevel) {
	rec := sl.Current().Interface().(lootmodel.RiskedLootRecord)
	if rec.Timestamp.IsZero() {
		sl.ReportError(rec.Timestamp, "timestamp", "Timestamp", "required", "")
	}
	if rec.TotalValue != lootmodel.ItemsValue(rec.Items) {
		sl.ReportError(rec.TotalValue, "totalValue", "TotalValue", "eqitems", "")
	}
}
