package errors

import (
	"context"
	"fmt"
	"runtime"

	"crudflow/logging"
)

// caller 返回 skip 层之上的调用位置
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// Wrap 包装错误并在 Debug 级别记录调用位置
func Wrap(ctx context.Context, err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	logging.GetLogger().Debug(ctx, "wrap error",
		logging.String("message", msg),
		logging.String("error_code", string(code)),
		logging.String("location", caller(1)),
	)
	return WrapError(err, code, msg)
}

// WrapDbError 包装仓储层错误。
//
// 已带错误码的错误（NOT_FOUND、DUPLICATE_ERROR 等）与 context 取消/超时原样返回，
// 其余统一为 DATABASE_ERROR 并记录警告。
func WrapDbError(ctx context.Context, err error, operation string) error {
	if err == nil || HasCode(err) {
		return err
	}
	if Is(err, context.Canceled) || Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := "数据库操作失败: " + operation
	logging.GetLogger().Warn(ctx, msg,
		logging.Error(err),
		logging.String("error_code", string(ErrCodeDatabase)),
		logging.String("operation", operation),
		logging.String("location", caller(1)),
	)
	return WrapError(err, ErrCodeDatabase, msg)
}
