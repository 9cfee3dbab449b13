package messaging_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudflow/messaging"
	"crudflow/messaging/transport/memory"
)

// 多 goroutine 并发 Publish，结合 -race 验证订阅/分发路径的并发安全
func TestMessageBus_WithMemoryTransport_ConcurrentPublish(t *testing.T) {
	tpt := memory.NewMemoryTransport(memory.Config{QueueSize: 4096, WorkerCount: 4})
	ctx := context.Background()
	require.NoError(t, tpt.Start(ctx))
	t.Cleanup(func() { _ = tpt.Close() })

	bus := messaging.NewMessageBus(tpt)

	var handled atomic.Int32
	const msgType = "note.save"
	require.NoError(t, bus.Subscribe(ctx, msgType, messaging.NewHandler("counter", func(context.Context, messaging.IMessage) error {
		handled.Add(1)
		return nil
	})))

	const (
		goroutines = 8
		perGor     = 200
		total      = goroutines * perGor
	)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perGor; i++ {
				_ = bus.Publish(ctx, messaging.NewMessage(fmt.Sprintf("m-%d-%d", id, i), msgType, "payload"))
			}
		}(g)
	}
	wg.Wait()

	assert.Eventually(t, func() bool { return handled.Load() == total }, 2*time.Second, 5*time.Millisecond)
}
