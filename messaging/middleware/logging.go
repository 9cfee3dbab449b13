package middleware

import (
	"context"
	"time"

	"crudflow/logging"
	"crudflow/messaging"
)

// LoggingMiddleware 记录每条发布的消息与耗时
type LoggingMiddleware struct {
	logger logging.Logger
}

// NewLoggingMiddleware logger 为 nil 时使用全局 Logger
func NewLoggingMiddleware(logger logging.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logging.ComponentLogger(logger, "messaging")}
}

func (m *LoggingMiddleware) Name() string { return "Logging" }

func (m *LoggingMiddleware) Handle(ctx context.Context, message messaging.IMessage, next messaging.HandlerFunc) error {
	start := time.Now()
	err := next(ctx, message)
	fields := []logging.Field{
		logging.String("message_type", message.GetType()),
		logging.String("message_id", message.GetID()),
		logging.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		m.logger.Warn(ctx, "message publish failed", append(fields, logging.Error(err))...)
		return err
	}
	m.logger.Debug(ctx, "message published", fields...)
	return nil
}
