package events

import (
	"context"
	stdErrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudflow/criteria"
	"crudflow/crud"
	"crudflow/domain"
	"crudflow/errors"
	"crudflow/hook"
	"crudflow/messaging"
	memtransport "crudflow/messaging/transport/memory"
	syncTransport "crudflow/messaging/transport/sync"
	"crudflow/patterns/retry"
	"crudflow/store/memory"
)

type task struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func (t *task) GetID() int64   { return t.ID }
func (t *task) SetID(id int64) { t.ID = id }

func newTaskService(ext hook.IExtension) *crud.Service[int64, *task, *task, memory.Query] {
	repo := memory.New(memory.Options[int64, *task]{
		NextID:   memory.Sequence(),
		AssignID: func(t *task, id int64) *task { t.ID = id; return t },
	})
	return crud.New[int64, *task, *task, memory.Query]("task", repo, crud.Identity[*task](), crud.Options[int64, *task]{
		Registry: hook.NewRegistry(ext),
	})
}

func newSyncBus(t *testing.T) *messaging.MessageBus {
	t.Helper()
	tpt := syncTransport.NewSyncTransport()
	require.NoError(t, tpt.Start(context.Background()))
	t.Cleanup(func() { _ = tpt.Close() })
	return messaging.NewMessageBus(tpt)
}

func TestPublisher_WriteEvents(t *testing.T) {
	ctx := context.Background()
	bus := newSyncBus(t)
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	var got []messaging.IMessage
	var payloads []Payload
	_, err := Subscribe(ctx, bus, messaging.Wildcard, "", func(_ context.Context, msg messaging.IMessage, p Payload) error {
		got = append(got, msg)
		payloads = append(payloads, p)
		return nil
	})
	require.NoError(t, err)

	ids := 0
	svc := newTaskService(New(bus, Config{
		NewID: func() string { ids++; return "evt-" + string(rune('0'+ids)) },
		Now:   func() time.Time { return at },
	}))
	user := &domain.User{ID: "u1", Tenant: "acme"}

	saved, err := svc.SaveMany(ctx, []*task{{Title: "a"}, {Title: "b"}}, user)
	require.NoError(t, err)
	_, err = svc.GetMany(ctx, []int64{saved[0].ID}, user)
	require.NoError(t, err)
	_, err = svc.Update(ctx, saved[0].ID, &task{Title: "a2"}, user)
	require.NoError(t, err)
	_, err = svc.DeleteMany(ctx, criteria.ByIDs([]int64{404}), user)
	require.NoError(t, err)
	_, err = svc.DeleteAll(ctx, nil)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"task.save", "task.update", "task.delete"},
		[]string{got[0].GetType(), got[1].GetType(), got[2].GetType()})
	assert.Equal(t, "evt-1", got[0].GetID())
	assert.Equal(t, at, got[0].GetTimestamp())
	assert.Equal(t, "u1", got[0].(*messaging.Message).UserID)
	assert.Equal(t, "acme", got[0].GetMetadata()[messaging.MetaTenant])
	assert.Equal(t, "saveMany", got[0].GetMetadata()[messaging.MetaOperation])
	_, hasTenant := got[2].GetMetadata()[messaging.MetaTenant]
	assert.False(t, hasTenant)

	assert.Equal(t, []any{saved[0].ID, saved[1].ID}, payloads[0].IDs)
	assert.Nil(t, payloads[0].Result)
	assert.ElementsMatch(t, []any{saved[0].ID, saved[1].ID}, payloads[2].IDs)
	assert.Equal(t, "deleteAll", payloads[2].Operation)
}

func TestPublisher_IncludeResultAndCategories(t *testing.T) {
	ctx := context.Background()
	bus := newSyncBus(t)

	var payload Payload
	_, err := Subscribe(ctx, bus, "task", hook.CategoryUpdate, func(_ context.Context, _ messaging.IMessage, p Payload) error {
		payload = p
		return nil
	})
	require.NoError(t, err)

	svc := newTaskService(New(bus, Config{Categories: []hook.Category{hook.CategoryUpdate}, IncludeResult: true}))
	saved, err := svc.Save(ctx, &task{Title: "a"}, nil)
	require.NoError(t, err)
	edited, err := svc.Edit(ctx, saved.ID, crud.MergePatch([]byte(`{"title":"b"}`)), nil)
	require.NoError(t, err)

	assert.Equal(t, hook.CategoryUpdate, payload.Category)
	assert.Equal(t, "edit", payload.Operation)
	require.Len(t, payload.Result, 1)
	assert.Equal(t, edited, payload.Result[0])
	assert.Len(t, payload.Previous, 1)
	assert.Equal(t, int64(1), bus.Transport().Stats().Published)
}

// flakyPublisher 前 failures 次返回 err
type flakyPublisher struct {
	failures int32
	err      error
	calls    atomic.Int32
}

func (f *flakyPublisher) Publish(ctx context.Context, message messaging.IMessage) error {
	if f.calls.Add(1) <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyPublisher) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	for _, m := range messages {
		if err := f.Publish(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func fastRetry(attempts int) retry.Config {
	return retry.Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, BackoffFactor: 2}
}

func TestPublisher_RetriesTransientFailures(t *testing.T) {
	pub := &flakyPublisher{failures: 2, err: errors.NewError(errors.ErrCodeQueue, "queue full")}
	svc := newTaskService(New(pub, Config{Retry: fastRetry(3)}))

	_, err := svc.Save(context.Background(), &task{Title: "a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), pub.calls.Load())
}

func TestPublisher_ExhaustedRetriesArePostCommit(t *testing.T) {
	boom := stdErrors.New("broker down")
	pub := &flakyPublisher{failures: 10, err: boom}
	svc := newTaskService(New(pub, Config{Retry: fastRetry(2)}))

	saved, err := svc.Save(context.Background(), &task{Title: "a"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsPostCommit(err))
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, saved)
	assert.Equal(t, int64(1), saved.ID)
	assert.Equal(t, int32(2), pub.calls.Load())
}

func TestPublisher_NonRetryableAndBestEffort(t *testing.T) {
	pub := &flakyPublisher{failures: 10, err: errors.NewBadRequest("bad payload")}
	svc := newTaskService(New(pub, Config{Retry: fastRetry(5), BestEffort: true}))

	_, err := svc.Save(context.Background(), &task{Title: "a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), pub.calls.Load())
}

func TestPublisher_AsyncMemoryTransport(t *testing.T) {
	ctx := context.Background()
	tpt := memtransport.NewMemoryTransport(memtransport.Config{WorkerCount: 2})
	require.NoError(t, tpt.Start(ctx))
	t.Cleanup(func() { _ = tpt.Close() })
	bus := messaging.NewMessageBus(tpt)

	var deleted atomic.Int32
	_, err := Subscribe(ctx, bus, "task", hook.CategoryDelete, func(_ context.Context, _ messaging.IMessage, p Payload) error {
		deleted.Add(int32(len(p.IDs)))
		return nil
	})
	require.NoError(t, err)

	svc := newTaskService(New(bus, Config{}))
	saved, err := svc.Save(ctx, &task{Title: "a"}, nil)
	require.NoError(t, err)
	_, err = svc.Delete(ctx, saved.ID, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return deleted.Load() == 1 }, time.Second, 5*time.Millisecond)
}
