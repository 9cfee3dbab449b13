package messaging

import (
	"context"
)

// IMessageHandler 消息处理器接口
type IMessageHandler interface {
	// Handle 处理消息
	Handle(ctx context.Context, message IMessage) error

	// Type 返回处理器类型（用于日志和调试）
	Type() string
}

// NewHandler 以函数构造处理器；返回指针，便于 Unsubscribe 按身份比较
func NewHandler(name string, fn HandlerFunc) IMessageHandler {
	return &funcHandler{name: name, fn: fn}
}

type funcHandler struct {
	name string
	fn   HandlerFunc
}

func (h *funcHandler) Handle(ctx context.Context, message IMessage) error { return h.fn(ctx, message) }
func (h *funcHandler) Type() string                                       { return h.name }

// Dispatch 依次调用精确匹配与通配符处理器，返回失败的处理器数量。
//
// 各传输实现共享此逻辑；处理器错误只记录不中断。
func Dispatch(ctx context.Context, handlers []IMessageHandler, message IMessage, onError func(IMessageHandler, error)) int {
	failed := 0
	for _, h := range handlers {
		if err := h.Handle(ctx, message); err != nil {
			failed++
			if onError != nil {
				onError(h, err)
			}
		}
	}
	return failed
}
