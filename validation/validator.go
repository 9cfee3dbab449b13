package validation

import (
	"fmt"
	"strings"

	"crudflow/errors"
)

// IValidator 定义通用验证器接口
type IValidator interface {
	Validate(value any) error
}

// IValidatable 由 DTO 自行实现的业务校验
type IValidatable interface {
	Validate() error
}

// NoopValidator 默认验证器，实现为空操作
type NoopValidator struct{}

func (NoopValidator) Validate(value any) error { return nil }

// Func 函数式验证器
type Func func(value any) error

func (f Func) Validate(value any) error { return f(value) }

// Chain 依次执行多个验证器，遇到第一个错误即返回
type Chain []IValidator

func (c Chain) Validate(value any) error {
	for _, v := range c {
		if v == nil {
			continue
		}
		if err := v.Validate(value); err != nil {
			return err
		}
	}
	return nil
}

// Run 执行验证器与值自身的 Validate，并将裸错误统一为 VALIDATION_ERROR
func Run(v IValidator, value any) error {
	if v != nil {
		if err := v.Validate(value); err != nil {
			return asValidation(err)
		}
	}
	if self, ok := value.(IValidatable); ok {
		if err := self.Validate(); err != nil {
			return asValidation(err)
		}
	}
	return nil
}

func asValidation(err error) error {
	if errors.HasCode(err) {
		return err
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return errors.WrapError(err, errors.ErrCodeValidation, "数据验证失败").
			WithContext("fields", ve.Errors)
	}
	return errors.WrapError(err, errors.ErrCodeValidation, "数据验证失败")
}

// ValidateStringLength 验证字符串长度
func ValidateStringLength(value, fieldName string, min, max int) error {
	length := len([]rune(value))
	if length < min {
		return errors.NewValidation("%s长度不能少于%d个字符（当前%d）", fieldName, min, length)
	}
	if max > 0 && length > max {
		return errors.NewValidation("%s长度不能超过%d个字符（当前%d）", fieldName, max, length)
	}
	return nil
}

// ValidateRequired 验证必填字段
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidation("%s不能为空", fieldName)
	}
	return nil
}

// ValidateEnum 验证枚举值
func ValidateEnum(value, fieldName string, validValues []string) error {
	for _, valid := range validValues {
		if value == valid {
			return nil
		}
	}
	return errors.NewValidation("%s的值无效，必须是以下之一: %v", fieldName, validValues)
}

// ValidatePageParams 验证分页参数；违反时返回 INVALID_INPUT
func ValidatePageParams(page, pageSize, maxSize int) error {
	if page <= 0 {
		return errors.NewBadRequest("页码必须大于0（当前%d）", page)
	}
	if pageSize <= 0 {
		return errors.NewBadRequest("每页大小必须大于0（当前%d）", pageSize)
	}
	if maxSize > 0 && pageSize > maxSize {
		return errors.NewBadRequest("每页大小不能超过%d", maxSize)
	}
	return nil
}

// ValidateID 验证整型ID有效性
func ValidateID(id int64, fieldName string) error {
	if id <= 0 {
		return errors.NewBadRequest("%s必须为正整数", fieldName)
	}
	return nil
}

// Describe 返回错误的字段明细文本，便于日志输出
func Describe(err error) string {
	var ve ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return strings.Join(parts, "; ")
}
