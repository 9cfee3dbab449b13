package memory

import (
	"context"
	stdErrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudflow/errors"
	"crudflow/logging"
	"crudflow/messaging"
)

func counter(n *atomic.Int32) messaging.IMessageHandler {
	return messaging.NewHandler("counter", func(context.Context, messaging.IMessage) error {
		n.Add(1)
		return nil
	})
}

func TestMemoryTransport_PublishFlow(t *testing.T) {
	tpt := NewMemoryTransport(Config{QueueSize: 16, WorkerCount: 2})
	ctx := context.Background()
	require.NoError(t, tpt.Start(ctx))

	var exact, all atomic.Int32
	require.NoError(t, tpt.Subscribe("note.save", counter(&exact)))
	require.NoError(t, tpt.Subscribe(messaging.Wildcard, counter(&all)))

	require.NoError(t, tpt.Publish(ctx, &messaging.Message{ID: "m1", Type: "note.save"}))
	require.NoError(t, tpt.Publish(ctx, &messaging.Message{ID: "m2", Type: "note.delete"}))

	assert.Eventually(t, func() bool { return exact.Load() == 1 && all.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, tpt.Close())

	stats := tpt.Stats()
	assert.False(t, stats.Running)
	assert.Equal(t, int64(2), stats.Published)
	assert.Equal(t, int64(3), stats.Delivered)
	assert.Equal(t, []string{"*", "note.save"}, stats.MessageTypes)
}

func TestMemoryTransport_NotRunning(t *testing.T) {
	tpt := NewMemoryTransport(Config{})
	err := tpt.Publish(context.Background(), &messaging.Message{ID: "m1", Type: "x"})
	assert.Equal(t, errors.ErrCodeQueue, errors.GetErrorCode(err))
	assert.Error(t, tpt.Close())
}

func TestMemoryTransport_QueueFull(t *testing.T) {
	tpt := NewMemoryTransportForTest(1)
	ctx := context.Background()
	require.NoError(t, tpt.Start(ctx))
	t.Cleanup(func() { _ = tpt.Close() })

	require.NoError(t, tpt.Publish(ctx, &messaging.Message{ID: "m1", Type: "x"}))
	err := tpt.PublishAll(ctx, []messaging.IMessage{&messaging.Message{ID: "m2", Type: "x"}})
	assert.Equal(t, errors.ErrCodeQueue, errors.GetErrorCode(err))
}

func TestMemoryTransport_CancelledContext(t *testing.T) {
	tpt := NewMemoryTransport(Config{})
	require.NoError(t, tpt.Start(context.Background()))
	t.Cleanup(func() { _ = tpt.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tpt.Publish(ctx, &messaging.Message{ID: "m1", Type: "x"}), context.Canceled)
}

func TestMemoryTransport_CloseDrainsQueue(t *testing.T) {
	tpt := NewMemoryTransport(Config{QueueSize: 16, WorkerCount: 1})
	ctx := context.Background()
	require.NoError(t, tpt.Start(ctx))

	var cnt atomic.Int32
	require.NoError(t, tpt.Subscribe("test", counter(&cnt)))
	require.NoError(t, tpt.Publish(ctx, &messaging.Message{ID: "m1", Type: "test"}))
	require.NoError(t, tpt.Publish(ctx, &messaging.Message{ID: "m2", Type: "test"}))

	require.NoError(t, tpt.Close())
	assert.Equal(t, int32(2), cnt.Load())
}

func TestMemoryTransport_RestartAfterClose(t *testing.T) {
	tpt := NewMemoryTransport(Config{WorkerCount: 1})
	ctx := context.Background()
	var cnt atomic.Int32
	require.NoError(t, tpt.Subscribe("test", counter(&cnt)))

	require.NoError(t, tpt.Start(ctx))
	require.NoError(t, tpt.Close())
	require.NoError(t, tpt.Start(ctx))
	require.NoError(t, tpt.Publish(ctx, &messaging.Message{ID: "m1", Type: "test"}))
	require.NoError(t, tpt.Close())
	assert.Equal(t, int32(1), cnt.Load())
}

func TestMemoryTransport_HandlerFailureIsLogged(t *testing.T) {
	rec := logging.NewRecorder()
	tpt := NewMemoryTransport(Config{WorkerCount: 1, Logger: rec})
	ctx := context.Background()
	require.NoError(t, tpt.Start(ctx))

	require.NoError(t, tpt.Subscribe("test", messaging.NewHandler("broken", func(context.Context, messaging.IMessage) error {
		return stdErrors.New("boom")
	})))
	require.NoError(t, tpt.Publish(ctx, &messaging.Message{ID: "m1", Type: "test"}))
	require.NoError(t, tpt.Close())

	assert.Equal(t, int64(1), tpt.Stats().Failed)
	entries := rec.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, logging.WarnLevel, entries[len(entries)-1].Level)
}

func TestMemoryTransport_Unsubscribe(t *testing.T) {
	tpt := NewMemoryTransport(Config{})
	h := messaging.NewHandler("h", func(context.Context, messaging.IMessage) error { return nil })
	require.NoError(t, tpt.Subscribe("x", h))
	require.NoError(t, tpt.Unsubscribe("x", h))
	assert.Error(t, tpt.Unsubscribe("x", h))
	assert.Error(t, tpt.Subscribe("x", nil))
}

func TestMemoryTransport_CloseWithContextTimeout(t *testing.T) {
	tpt := NewMemoryTransport(Config{QueueSize: 4, WorkerCount: 1})
	ctx := context.Background()
	require.NoError(t, tpt.Start(ctx))

	blockCh := make(chan struct{})
	t.Cleanup(func() { close(blockCh) })
	require.NoError(t, tpt.Subscribe("block", messaging.NewHandler("blocking", func(context.Context, messaging.IMessage) error {
		<-blockCh
		return nil
	})))
	require.NoError(t, tpt.Publish(ctx, &messaging.Message{ID: "m1", Type: "block"}))

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err := tpt.CloseWithContext(timeoutCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 已关闭
	assert.Error(t, tpt.CloseWithTimeout(10*time.Millisecond))
}

func TestMemoryTransport_CloseWithPendingMessages(t *testing.T) {
	tpt := NewMemoryTransportForTest(4)
	ctx := context.Background()
	require.NoError(t, tpt.Start(ctx))

	require.NoError(t, tpt.Publish(ctx, &messaging.Message{ID: "m1", Type: "none"}))
	require.NoError(t, tpt.Publish(ctx, &messaging.Message{ID: "m2", Type: "none"}))

	pending, err := tpt.CloseWithContext(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "m1", pending[0].GetID())
}
