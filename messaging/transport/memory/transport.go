// Package memory 提供基于内存队列的消息传输实现
// 适用于单机部署、开发环境和测试场景
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"crudflow/errors"
	"crudflow/logging"
	"crudflow/messaging"
)

// Config 内存传输配置
type Config struct {
	QueueSize   int // <=0 时使用默认 1000
	WorkerCount int // <=0 时使用默认 4
	Logger      logging.Logger
}

// MemoryTransport 内存消息传输实现
//
// 特性:
//   - 基于内存队列的异步消息传输
//   - Worker 池模式处理消息
//   - 关闭时先处理完队列中的消息
//   - 并发安全
type MemoryTransport struct {
	handlers    *messaging.HandlerSet
	queue       chan messaging.IMessage
	queueSize   int
	workerCount int
	running     bool
	mutex       sync.RWMutex
	wg          sync.WaitGroup
	logger      logging.Logger

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

var _ messaging.Transport = (*MemoryTransport)(nil)

// NewMemoryTransport 创建内存传输实例
func NewMemoryTransport(cfg Config) *MemoryTransport {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	return newMemoryTransport(cfg.QueueSize, cfg.WorkerCount, cfg.Logger)
}

// NewMemoryTransportForTest 创建 0 worker 的传输，消息只入队不消费，用于验证 drain 行为
func NewMemoryTransportForTest(queueSize int) *MemoryTransport {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return newMemoryTransport(queueSize, 0, nil)
}

func newMemoryTransport(queueSize, workerCount int, logger logging.Logger) *MemoryTransport {
	return &MemoryTransport{
		handlers:    messaging.NewHandlerSet(),
		queueSize:   queueSize,
		workerCount: workerCount,
		logger:      logging.ComponentLogger(logger, "transport.memory"),
	}
}

var (
	errNotRunning = errors.NewError(errors.ErrCodeQueue, "memory transport is not running")
	errQueueFull  = errors.NewError(errors.ErrCodeQueue, "message queue is full")
)

// Publish 发布消息到队列，由 Worker 池异步处理
//
// 队列满或传输未启动时返回 QUEUE_ERROR
func (t *MemoryTransport) Publish(ctx context.Context, message messaging.IMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// 持读锁入队，Close 持写锁关闭队列，二者互斥
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	if !t.running {
		return errNotRunning
	}
	select {
	case t.queue <- message:
		t.published.Add(1)
		return nil
	default:
		return errQueueFull
	}
}

// PublishAll 批量发布消息到队列；遇到首个失败即返回，已入队的消息不回滚
func (t *MemoryTransport) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	for _, message := range messages {
		if err := t.Publish(ctx, message); err != nil {
			return err
		}
	}
	return nil
}

// Stats 获取统计信息
func (t *MemoryTransport) Stats() messaging.TransportStats {
	t.mutex.RLock()
	running := t.running
	depth := len(t.queue)
	t.mutex.RUnlock()

	return messaging.TransportStats{
		Running:      running,
		HandlerCount: t.handlers.Count(),
		MessageTypes: t.handlers.Types(),
		QueueSize:    t.queueSize,
		QueueDepth:   depth,
		WorkerCount:  t.workerCount,
		Published:    t.published.Load(),
		Delivered:    t.delivered.Load(),
		Failed:       t.failed.Load(),
	}
}
