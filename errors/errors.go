// Package errors 提供 crudflow 统一的错误码体系。
//
// 所有 CRUD 生命周期内产生的错误最终都会落到 ErrorCode 上：
// 传输层（如 REST 适配器）只需根据错误码映射协议状态，无需认识具体错误类型。
package errors

import (
	stdErrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCode 错误代码类型
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"

	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeDuplicate  ErrorCode = "DUPLICATE_ERROR"

	// 钩子阶段
	ErrCodeBeforeHook ErrorCode = "BEFORE_HOOK_FAILED"
	ErrCodePostCommit ErrorCode = "POST_COMMIT_HOOK_FAILED"

	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeCache    ErrorCode = "CACHE_ERROR"
	ErrCodeQueue    ErrorCode = "QUEUE_ERROR"
)

// IError 错误接口
type IError interface {
	error

	Code() ErrorCode
	Message() string
	Cause() error
	Details() map[string]any
	Stack() string

	// 添加详情，返回新错误
	WithDetails(details map[string]any) IError
	WithContext(key string, value any) IError
}

// AppError 应用错误实现
type AppError struct {
	code    ErrorCode
	message string
	cause   error
	details map[string]any
	stack   string
}

// NewError 创建新错误
func NewError(code ErrorCode, message string) IError {
	return &AppError{
		code:    code,
		message: message,
		details: make(map[string]any),
		stack:   captureStack(),
	}
}

// WrapError 包装错误，err 为 nil 时返回 nil
func WrapError(err error, code ErrorCode, message string) IError {
	if err == nil {
		return nil
	}
	return &AppError{
		code:    code,
		message: message,
		cause:   err,
		details: make(map[string]any),
		stack:   captureStack(),
	}
}

// Errorf 创建带格式化消息的错误
func Errorf(code ErrorCode, format string, args ...any) IError {
	return &AppError{
		code:    code,
		message: fmt.Sprintf(format, args...),
		details: make(map[string]any),
		stack:   captureStack(),
	}
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *AppError) Code() ErrorCode { return e.code }
func (e *AppError) Message() string { return e.message }
func (e *AppError) Cause() error    { return e.cause }
func (e *AppError) Stack() string   { return e.stack }

func (e *AppError) Details() map[string]any {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	return e.details
}

// Is 同错误码的 AppError 视为相等，其余委托给 cause
func (e *AppError) Is(target error) bool {
	if target == nil {
		return false
	}
	if appErr, ok := target.(*AppError); ok {
		return e.code == appErr.code
	}
	if e.cause != nil {
		return stdErrors.Is(e.cause, target)
	}
	return false
}

func (e *AppError) Unwrap() error { return e.cause }

func (e *AppError) WithDetails(details map[string]any) IError {
	merged := copyMap(e.details)
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{code: e.code, message: e.message, cause: e.cause, details: merged, stack: e.stack}
}

func (e *AppError) WithContext(key string, value any) IError {
	return e.WithDetails(map[string]any{key: value})
}

// 便捷构造函数，对应 CRUD 生命周期中的几类标准失败

// NewBadRequest 输入参数（id、criteria、分页、补丁）不合法
func NewBadRequest(format string, args ...any) IError {
	return Errorf(ErrCodeInvalidInput, format, args...)
}

// NewNotFound 单结果操作未命中
func NewNotFound(entity string, id any) IError {
	return Errorf(ErrCodeNotFound, "%s 未找到: %v", entity, id).WithContext("id", id)
}

// NewValidation 载荷校验失败
func NewValidation(format string, args ...any) IError {
	return Errorf(ErrCodeValidation, format, args...)
}

func NewUnauthorized(message string) IError { return NewError(ErrCodeUnauthorized, message) }
func NewForbidden(message string) IError    { return NewError(ErrCodeForbidden, message) }

// IsNotFound 检查是否为未找到错误
func IsNotFound(err error) bool { return IsErrorCode(err, ErrCodeNotFound) }

// IsValidation 检查是否为验证错误
func IsValidation(err error) bool { return IsErrorCode(err, ErrCodeValidation) }

// IsBadRequest 检查是否为输入错误
func IsBadRequest(err error) bool { return IsErrorCode(err, ErrCodeInvalidInput) }

// IsErrorCode 检查错误链上第一个 AppError 是否为指定错误代码
func IsErrorCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		return appErr.code == code
	}
	return false
}

// GetErrorCode 获取错误代码；PostCommitError 优先于其内部原因
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if IsPostCommit(err) {
		return ErrCodePostCommit
	}
	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		return appErr.code
	}
	return ErrCodeInternal
}

// HasCode 错误链上是否存在 AppError
func HasCode(err error) bool {
	var appErr *AppError
	return stdErrors.As(err, &appErr)
}

// 标准库转发，调用方无需同时导入两个 errors 包
var (
	Is     = stdErrors.Is
	As     = stdErrors.As
	Unwrap = stdErrors.Unwrap
	Join   = stdErrors.Join
)

func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var builder strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&builder, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return builder.String()
}

func copyMap(original map[string]any) map[string]any {
	copied := make(map[string]any, len(original)+1)
	for k, v := range original {
		copied[k] = v
	}
	return copied
}
