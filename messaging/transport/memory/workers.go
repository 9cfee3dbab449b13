package memory

import (
	"context"
	"fmt"
	"time"

	"crudflow/messaging"
)

// Start 启动 Worker 池；ctx 取消时 Worker 退出
func (t *MemoryTransport) Start(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.running {
		return fmt.Errorf("memory transport is already running")
	}

	t.queue = make(chan messaging.IMessage, t.queueSize)
	t.running = true

	for i := 0; i < t.workerCount; i++ {
		t.wg.Add(1)
		go t.worker(ctx, t.queue)
	}
	return nil
}

// Close 关闭传输层并等待队列中的消息处理完成
func (t *MemoryTransport) Close() error {
	_, err := t.CloseWithContext(context.Background())
	return err
}

// CloseWithTimeout 带超时关闭
func (t *MemoryTransport) CloseWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err := t.CloseWithContext(ctx)
	return err
}

// CloseWithContext 停止接收新消息并等待 Worker 排空队列。
//
// 没有 Worker 时直接取出队列中未处理的消息返回；
// ctx 先结束时返回 ctx 错误，Worker 在后台继续排空。
func (t *MemoryTransport) CloseWithContext(ctx context.Context) ([]messaging.IMessage, error) {
	t.mutex.Lock()
	if !t.running {
		t.mutex.Unlock()
		return nil, errNotRunning
	}
	t.running = false
	queue := t.queue
	close(queue)
	t.mutex.Unlock()

	if t.workerCount == 0 {
		var pending []messaging.IMessage
		for message := range queue {
			pending = append(pending, message)
		}
		return pending, nil
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// worker 从队列中取出消息并分发，队列关闭且读空后退出
func (t *MemoryTransport) worker(ctx context.Context, queue <-chan messaging.IMessage) {
	defer t.wg.Done()

	for {
		select {
		case message, ok := <-queue:
			if !ok {
				return
			}
			t.dispatch(ctx, message)

		case <-ctx.Done():
			return
		}
	}
}
