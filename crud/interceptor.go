package crud

import (
	"context"
	"time"

	"crudflow/domain"
	"crudflow/errors"
	"crudflow/hook"
	"crudflow/logging"
)

// Call 描述一次服务调用
type Call struct {
	Entity    string
	Operation string
	Category  hook.Category
	User      *domain.User
}

// Handler 被拦截的调用体
type Handler func(ctx context.Context) error

// Interceptor 包裹每个服务操作，可在调用前拒绝、在调用后观察结果。
//
// 拦截器先于校验与 before 钩子执行；返回错误而不调用 next 即拒绝调用。
type Interceptor func(ctx context.Context, call Call, next Handler) error

func chain(interceptors []Interceptor, call Call, final Handler) Handler {
	h := final
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic := interceptors[i]
		next := h
		h = func(ctx context.Context) error {
			return ic(ctx, call, next)
		}
	}
	return h
}

// StatsInterceptor 记录每个操作的耗时与结果
func StatsInterceptor(logger logging.Logger) Interceptor {
	logger = logging.ComponentLogger(logger, "crud.stats")
	return func(ctx context.Context, call Call, next Handler) error {
		start := time.Now()
		err := next(ctx)
		fields := []logging.Field{
			logging.String("entity", call.Entity),
			logging.String("operation", call.Operation),
			logging.String("user", call.User.UserID()),
			logging.Duration("elapsed", time.Since(start)),
		}
		switch {
		case err == nil:
			logger.Debug(ctx, "crud operation", fields...)
		case errors.IsPostCommit(err):
			logger.Error(ctx, "crud operation committed with hook failure", append(fields, logging.Error(err))...)
		default:
			logger.Info(ctx, "crud operation failed", append(fields,
				logging.String("code", string(errors.GetErrorCode(err))),
				logging.Error(err))...)
		}
		return err
	}
}
