// Package sync 提供同步的消息传输实现：Publish 在调用方 goroutine 中依次执行处理器，
// 处理器错误返回给发布者。适用于测试以及需要事件处理失败即让 after 钩子失败的场景。
package sync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"crudflow/errors"
	"crudflow/messaging"
)

// SyncTransport 同步传输
type SyncTransport struct {
	handlers *messaging.HandlerSet
	mutex    sync.RWMutex
	running  bool

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

var _ messaging.Transport = (*SyncTransport)(nil)

// NewSyncTransport 创建同步传输实例
func NewSyncTransport() *SyncTransport {
	return &SyncTransport{handlers: messaging.NewHandlerSet()}
}

// Publish 立即、同步地发布消息；没有处理器不是错误
func (t *SyncTransport) Publish(ctx context.Context, message messaging.IMessage) error {
	t.mutex.RLock()
	running := t.running
	t.mutex.RUnlock()
	if !running {
		return errors.NewError(errors.ErrCodeQueue, "sync transport is not running")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.published.Add(1)

	handlers := t.handlers.Match(message.GetType())
	var errs []error
	messaging.Dispatch(ctx, handlers, message, func(h messaging.IMessageHandler, err error) {
		errs = append(errs, fmt.Errorf("%s: %w", h.Type(), err))
	})
	t.delivered.Add(int64(len(handlers) - len(errs)))
	t.failed.Add(int64(len(errs)))

	if len(errs) > 0 {
		return fmt.Errorf("message handling completed with %d errors: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// PublishAll 批量发布消息（同步执行），首个失败即停止
func (t *SyncTransport) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	for _, message := range messages {
		if err := t.Publish(ctx, message); err != nil {
			return fmt.Errorf("failed to publish message %s: %w", message.GetID(), err)
		}
	}
	return nil
}

// Subscribe 订阅消息处理器
func (t *SyncTransport) Subscribe(messageType string, handler messaging.IMessageHandler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for message type %s", messageType)
	}
	t.handlers.Add(messageType, handler)
	return nil
}

// Unsubscribe 取消订阅消息处理器
func (t *SyncTransport) Unsubscribe(messageType string, handler messaging.IMessageHandler) error {
	if found, _ := t.handlers.Remove(messageType, handler); !found {
		return fmt.Errorf("handler not found for message type %s", messageType)
	}
	return nil
}

// Start 启动传输层
func (t *SyncTransport) Start(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.running {
		return fmt.Errorf("sync transport is already running")
	}
	t.running = true
	return nil
}

// Close 关闭传输层
func (t *SyncTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.running {
		return fmt.Errorf("sync transport is not running")
	}
	t.running = false
	return nil
}

// Stats 返回统计信息
func (t *SyncTransport) Stats() messaging.TransportStats {
	t.mutex.RLock()
	running := t.running
	t.mutex.RUnlock()
	return messaging.TransportStats{
		Running:      running,
		HandlerCount: t.handlers.Count(),
		MessageTypes: t.handlers.Types(),
		Published:    t.published.Load(),
		Delivered:    t.delivered.Load(),
		Failed:       t.failed.Load(),
	}
}
