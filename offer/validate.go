package offer

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Code 标识一类校验失败，调用方可据此映射为接口错误码。
type Code string

const (
	CodeInvalidDiscount      Code = "INVALID_DISCOUNT"
	CodeInvalidQuantity      Code = "INVALID_QUANTITY"
	CodeInvalidVATRate       Code = "INVALID_VAT_RATE"
	CodeMissingClient        Code = "MISSING_CLIENT"
	CodeInvalidPrice         Code = "INVALID_PRICE"
	CodeInvalidDimension     Code = "INVALID_DIMENSION"
	CodeInvalidCurrency      Code = "INVALID_CURRENCY"
	CodeInvalidVATRegulation Code = "INVALID_VAT_REGULATION"
)

// ErrValidation 是所有 ValidationError 的哨兵错误，可用 errors.Is 判断。
var ErrValidation = errors.New("offer: validation failed")

// ValidationError 描述一个结构性违规，Field 为 JSON 路径（如 lineItems[2].quantity）。
type ValidationError struct {
	Code    Code
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// codeByField 将结构体字段名映射为错误码。
var codeByField = map[string]Code{
	"ClientName":      CodeMissingClient,
	"Currency":        CodeInvalidCurrency,
	"DiscountPercent": CodeInvalidDiscount,
	"VATRegulation":   CodeInvalidVATRegulation,
	"Quantity":        CodeInvalidQuantity,
	"BasePrice":       CodeInvalidPrice,
	"VATRate":         CodeInvalidVATRate,
	"WidthMm":         CodeInvalidDimension,
	"HeightMm":        CodeInvalidDimension,
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("vatregulation", func(fl validator.FieldLevel) bool {
			_, ok := ParseVATRegulation(fl.Field().String())
			return ok
		})
		// decimal 以 float64 参与区间比较，金额本身仍保持精确值。
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		validate = v
	})
	return validate
}

// Validate 在任何栅格化或排版之前检查文档，返回第一个违规项。
func Validate(doc *Document) error {
	if doc == nil {
		return &ValidationError{Code: CodeMissingClient, Message: "文档为空"}
	}
	if strings.TrimSpace(doc.ClientName) == "" {
		return &ValidationError{Code: CodeMissingClient, Field: "clientName", Message: "缺少客户名称"}
	}
	err := engine().Struct(doc)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("offer: validate: %w", err)
	}
	return fromFieldError(fieldErrs[0])
}

func fromFieldError(fe validator.FieldError) *ValidationError {
	code, ok := codeByField[fe.StructField()]
	if !ok {
		code = Code("INVALID_" + strings.ToUpper(fe.Field()))
	}
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	msg := fmt.Sprintf("字段 %s 不满足约束 %s", fe.Field(), fe.Tag())
	if fe.Param() != "" {
		msg += "=" + fe.Param()
	}
	return &ValidationError{Code: code, Field: field, Message: msg}
}
