package messaging

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// HandlerFunc 是一个函数类型，用于处理消息。它是中间件链中的基本执行单元
type HandlerFunc func(ctx context.Context, message IMessage) error

// IMiddleware 定义了消息总线中间件的接口
type IMiddleware interface {
	Handle(ctx context.Context, message IMessage, next HandlerFunc) error
	Name() string
}

// IPublisher 只发布的视图，扩展依赖它而非完整总线
type IPublisher interface {
	Publish(ctx context.Context, message IMessage) error
	PublishAll(ctx context.Context, messages []IMessage) error
}

// IMessageBus 消息总线接口
type IMessageBus interface {
	IPublisher
	Subscribe(ctx context.Context, messageType string, handler IMessageHandler) error
	Unsubscribe(ctx context.Context, messageType string, handler IMessageHandler) error
	Use(middleware IMiddleware)
}

// MessageBus 在 Transport 之上执行发布中间件。
//
// 中间件只作用于发布路径；订阅与取消订阅直接交给 Transport。
type MessageBus struct {
	transport Transport
	mu        sync.Mutex
	chain     atomic.Pointer[[]IMiddleware]
}

var _ IMessageBus = (*MessageBus)(nil)

// NewMessageBus 创建消息总线
func NewMessageBus(transport Transport) *MessageBus {
	bus := &MessageBus{transport: transport}
	bus.chain.Store(&[]IMiddleware{})
	return bus
}

// Transport 返回底层传输
func (bus *MessageBus) Transport() Transport { return bus.transport }

// Use 追加中间件，按注册顺序由外向内执行；进行中的发布不受影响
func (bus *MessageBus) Use(middleware IMiddleware) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	current := *bus.chain.Load()
	next := make([]IMiddleware, len(current), len(current)+1)
	copy(next, current)
	next = append(next, middleware)
	bus.chain.Store(&next)
}

func (bus *MessageBus) Subscribe(_ context.Context, messageType string, handler IMessageHandler) error {
	return bus.transport.Subscribe(messageType, handler)
}

func (bus *MessageBus) Unsubscribe(_ context.Context, messageType string, handler IMessageHandler) error {
	return bus.transport.Unsubscribe(messageType, handler)
}

// Publish 经过中间件后交给 Transport
func (bus *MessageBus) Publish(ctx context.Context, message IMessage) error {
	return bus.wrap(bus.transport.Publish)(ctx, message)
}

// PublishAll 每条消息各自经过中间件，全部通过后整批交给 Transport。
// 任一中间件拒绝时整批不发送。
func (bus *MessageBus) PublishAll(ctx context.Context, messages []IMessage) error {
	if len(messages) == 0 {
		return nil
	}

	accepted := make([]IMessage, 0, len(messages))
	collect := bus.wrap(func(_ context.Context, msg IMessage) error {
		accepted = append(accepted, msg)
		return nil
	})
	for _, message := range messages {
		if err := collect(ctx, message); err != nil {
			return fmt.Errorf("failed to publish message %s: %w", message.GetID(), err)
		}
	}
	if len(accepted) == 0 {
		return nil
	}
	if err := bus.transport.PublishAll(ctx, accepted); err != nil {
		return fmt.Errorf("failed to publish batch (%d messages): %w", len(accepted), err)
	}
	return nil
}

// wrap 用当前中间件快照包裹 final
func (bus *MessageBus) wrap(final HandlerFunc) HandlerFunc {
	middlewares := *bus.chain.Load()
	next := final
	for i := len(middlewares) - 1; i >= 0; i-- {
		mw, inner := middlewares[i], next
		next = func(ctx context.Context, msg IMessage) error {
			return mw.Handle(ctx, msg, inner)
		}
	}
	return next
}
