// Package middleware 提供消息总线中间件
package middleware

import (
	"context"

	"crudflow/messaging"
)

// 链路字段在 Metadata 中的键名
const (
	KeyCorrelationID = "correlation_id"
	KeyCausationID   = "causation_id"
)

type ctxKey struct{ name string }

var (
	correlationKey = ctxKey{"correlation"}
	causationKey   = ctxKey{"causation"}
)

// WithCorrelationID 把关联 ID（通常为请求 ID）放入 Context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationID 从 Context 读取关联 ID
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}

// WithCausationID 标记触发后续消息的源消息
func WithCausationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, causationKey, id)
}

// TracingMiddleware 注入并传播 correlation_id/causation_id
//
// 已存在的字段不覆盖；缺失时优先从 Context 继承，仍缺失则使用消息ID兜底。
type TracingMiddleware struct{}

func NewTracingMiddleware() *TracingMiddleware { return &TracingMiddleware{} }

func (m *TracingMiddleware) Name() string { return "Tracing" }

func (m *TracingMiddleware) Handle(ctx context.Context, message messaging.IMessage, next messaging.HandlerFunc) error {
	if message == nil {
		return next(ctx, message)
	}
	md := message.GetMetadata()
	msgID := message.GetID()

	correlation := CorrelationID(ctx)
	causation, _ := ctx.Value(causationKey).(string)

	setIfEmpty(md, KeyCorrelationID, correlation, msgID)
	setIfEmpty(md, KeyCausationID, causation, msgID)

	if m, ok := message.(*messaging.Message); ok && m.RequestID == "" {
		m.RequestID = correlation
	}
	return next(ctx, message)
}

func setIfEmpty(md map[string]any, key string, values ...string) {
	if v, ok := md[key].(string); ok && v != "" {
		return
	}
	for _, v := range values {
		if v != "" {
			md[key] = v
			return
		}
	}
}
