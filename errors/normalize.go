package errors

import (
	"context"
	stdErrors "errors"
)

// 仓储实现可直接返回的哨兵错误，Normalize 会将其映射到错误码
var (
	ErrEntityNotFound = stdErrors.New("entity not found")
	ErrDuplicateKey   = stdErrors.New("duplicate key")
	ErrInvalidQuery   = stdErrors.New("invalid query")
)

// Normalize 将仓储/基础设施层的错误规范化为 AppError。
//
// 注意：
//   - 已经是 IError 或 PostCommitError 的错误原样返回；
//   - 未识别的错误保持原样，由调用方决定是否 Wrap。
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(IError); ok {
		return err
	}
	if IsPostCommit(err) {
		return err
	}

	switch {
	case stdErrors.Is(err, ErrEntityNotFound):
		return WrapError(err, ErrCodeNotFound, "实体未找到")
	case stdErrors.Is(err, ErrDuplicateKey):
		return WrapError(err, ErrCodeDuplicate, "数据重复")
	case stdErrors.Is(err, ErrInvalidQuery):
		return WrapError(err, ErrCodeInvalidInput, "无效的查询")
	case stdErrors.Is(err, context.DeadlineExceeded):
		return WrapError(err, ErrCodeTimeout, "操作超时")
	}
	return err
}
