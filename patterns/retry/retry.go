// Package retry 提供带指数退避的重试，用于 after 钩子向外部投递事件。
package retry

import (
	"context"
	"time"

	"crudflow/errors"
)

// Operation 可重试的操作，attempt 从 1 开始
type Operation func(ctx context.Context, attempt int) error

// Config 重试配置
type Config struct {
	MaxAttempts   int           // 包括首次
	InitialDelay  time.Duration // 首次退避
	BackoffFactor float64
	MaxDelay      time.Duration
	// Retryable 判断错误是否值得重试，默认 IsTransient
	Retryable func(error) bool
}

// DefaultConfig 3 次尝试，10ms 起步，指数 2，上限 1s
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  10 * time.Millisecond,
		BackoffFactor: 2,
		MaxDelay:      time.Second,
	}
}

// IsTransient 默认分类：上下文错误与输入类错误不重试
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch errors.GetErrorCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeValidation, errors.ErrCodeNotFound,
		errors.ErrCodeUnauthorized, errors.ErrCodeForbidden, errors.ErrCodeConflict, errors.ErrCodeDuplicate:
		return false
	}
	return true
}

// Do 执行 op 直到成功、遇到不可重试错误、用尽次数或 ctx 结束，返回最后一次错误
func Do(ctx context.Context, cfg Config, op Operation) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts || !retryable(lastErr) {
			break
		}

		timer := time.NewTimer(cfg.delay(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}

// delay 第 attempt 次失败后的等待时长
func (cfg Config) delay(attempt int) time.Duration {
	d := float64(cfg.InitialDelay)
	factor := cfg.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	for i := 1; i < attempt; i++ {
		d *= factor
	}
	if cfg.MaxDelay > 0 && time.Duration(d) > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return time.Duration(d)
}
