package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
)

// PostCommitError 表示仓储变更已经生效，但 after 钩子执行失败。
//
// 调用方应把结果视为已提交：服务方法会同时返回结果值与该错误。
type PostCommitError struct {
	Entity   string
	Category string
	Err      error
}

func (e *PostCommitError) Error() string {
	return fmt.Sprintf("[%s] %s.%s after hook failed (changes committed): %v",
		ErrCodePostCommit, e.Entity, e.Category, e.Err)
}

func (e *PostCommitError) Unwrap() error { return e.Err }

// NewPostCommit 包装 after 钩子错误；err 为 nil 时返回 nil
func NewPostCommit(entity, category string, err error) error {
	if err == nil {
		return nil
	}
	var pc *PostCommitError
	if stdErrors.As(err, &pc) {
		return err
	}
	return &PostCommitError{Entity: entity, Category: category, Err: err}
}

// IsPostCommit 检查是否为提交后钩子失败
func IsPostCommit(err error) bool {
	var pc *PostCommitError
	return stdErrors.As(err, &pc)
}

// WrapBeforeHook 规范化 before 钩子错误。
//
// 已带错误码的错误（例如扩展主动返回的 FORBIDDEN）与 context 取消原样透传；
// 裸错误包装为 BEFORE_HOOK_FAILED。
func WrapBeforeHook(entity, category string, err error) error {
	if err == nil {
		return nil
	}
	if HasCode(err) || stdErrors.Is(err, context.Canceled) || stdErrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return WrapError(err, ErrCodeBeforeHook, fmt.Sprintf("%s.%s before hook failed", entity, category))
}
