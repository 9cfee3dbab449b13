package redisstreams

import (
	"context"
	stdErrors "errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudflow/errors"
	"crudflow/logging"
	"crudflow/messaging"
)

// fakeClient 以内存切片模拟单个消费组
type fakeClient struct {
	mu      sync.Mutex
	added   []*redis.XAddArgs
	pending map[string][]redis.XMessage
	acked   []string
	groups  []string
	addErr  error
	closed  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{pending: make(map[string][]redis.XMessage)}
}

func (f *fakeClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return redis.NewStringResult("", f.addErr)
	}
	f.added = append(f.added, a)
	values := make(map[string]any)
	for k, v := range a.Values.(map[string]any) {
		// Redis 返回的字段值都是字符串
		switch x := v.(type) {
		case int64:
			values[k] = formatInt(x)
		default:
			values[k] = v
		}
	}
	id := formatInt(int64(len(f.added))) + "-0"
	f.pending[a.Stream] = append(f.pending[a.Stream], redis.XMessage{ID: id, Values: values})
	return redis.NewStringResult(id, nil)
}

func (f *fakeClient) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	stream := a.Streams[0]
	f.mu.Lock()
	entries := f.pending[stream]
	delete(f.pending, stream)
	f.mu.Unlock()
	if len(entries) == 0 {
		select {
		case <-ctx.Done():
			return redis.NewXStreamSliceCmdResult(nil, ctx.Err())
		case <-time.After(5 * time.Millisecond):
			return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
		}
	}
	return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: stream, Messages: entries}}, nil)
}

func (f *fakeClient) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeClient) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g == stream+"/"+group {
			return redis.NewStatusResult("", stdErrors.New("BUSYGROUP Consumer Group name already exists"))
		}
	}
	f.groups = append(f.groups, stream+"/"+group)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func (f *fakeClient) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ts := time.Unix(0, 1700000000000000000)
	msg := &messaging.Message{
		ID:        "msg-1",
		Type:      "note.save",
		Timestamp: ts,
		Payload:   map[string]any{"ids": []int64{42}},
		Metadata:  map[string]any{"correlation_id": "cor-123"},
		UserID:    "u1",
	}

	values, err := encodeMessage(msg)
	require.NoError(t, err)

	decoded, err := decodeMessage(redis.XMessage{ID: "1-0", Values: values})
	require.NoError(t, err)

	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, msg.Type, decoded.Type)
	assert.Equal(t, ts.UnixNano(), decoded.Timestamp.UnixNano())
	assert.Equal(t, "u1", decoded.UserID)
	assert.Equal(t, "cor-123", decoded.Metadata["correlation_id"])
	payload := decoded.Payload.(map[string]any)
	assert.Equal(t, []any{float64(42)}, payload["ids"])
}

func TestDecodeFallbacks(t *testing.T) {
	decoded, err := decodeMessage(redis.XMessage{ID: "2-0", Values: map[string]any{
		"type":      "note.delete",
		"timestamp": "1700000000000000000",
		"payload":   "{}",
		"metadata":  "{}",
	}})
	require.NoError(t, err)
	assert.Equal(t, "2-0", decoded.ID)
	assert.Equal(t, int64(1700000000000000000), decoded.Timestamp.UnixNano())

	_, err = decodeMessage(redis.XMessage{ID: "3-0", Values: map[string]any{"metadata": "{"}})
	assert.Error(t, err)
}

func TestNewTransport_RequiresClient(t *testing.T) {
	_, err := NewTransport(Config{})
	assert.True(t, errors.IsBadRequest(err))
}

func TestPublish_WritesStreamPerType(t *testing.T) {
	fc := newFakeClient()
	tr := newTransport(Config{StreamPrefix: "events", MaxLen: 100}, fc, false)

	require.NoError(t, tr.PublishAll(context.Background(), []messaging.IMessage{
		messaging.NewMessage("m1", "note.save", map[string]any{"ids": []int{1}}),
		messaging.NewMessage("m2", "note.delete", nil),
	}))
	require.Len(t, fc.added, 2)
	assert.Equal(t, "events:note.save", fc.added[0].Stream)
	assert.Equal(t, "events:note.delete", fc.added[1].Stream)
	assert.Equal(t, int64(100), fc.added[0].MaxLen)
	assert.True(t, fc.added[0].Approx)
	assert.Equal(t, int64(2), tr.Stats().Published)

	fc.addErr = stdErrors.New("READONLY")
	err := tr.Publish(context.Background(), messaging.NewMessage("m3", "note.save", nil))
	assert.Equal(t, errors.ErrCodeQueue, errors.GetErrorCode(err))
}

func TestConsume_DispatchesAndAcks(t *testing.T) {
	fc := newFakeClient()
	tr := newTransport(Config{Logger: logging.NewNoopLogger(), MinReadBackoff: time.Millisecond}, fc, true)

	var mu sync.Mutex
	var got, all []string
	require.NoError(t, tr.Subscribe("note.save", messaging.NewHandler("h", func(_ context.Context, m messaging.IMessage) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m.GetID())
		return nil
	})))
	require.NoError(t, tr.Subscribe(messaging.Wildcard, messaging.NewHandler("all", func(_ context.Context, m messaging.IMessage) error {
		mu.Lock()
		defer mu.Unlock()
		all = append(all, m.GetID())
		return stdErrors.New("wildcard failure is only logged")
	})))

	ctx := context.Background()
	require.NoError(t, tr.Start(ctx))
	require.NoError(t, tr.Publish(ctx, messaging.NewMessage("m1", "note.save", nil)))
	require.NoError(t, tr.Publish(ctx, messaging.NewMessage("m2", "note.save", nil)))

	assert.Eventually(t, func() bool { return len(fc.ackedIDs()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, tr.Close())
	assert.True(t, fc.closed)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m1", "m2"}, got)
	assert.Equal(t, []string{"m1", "m2"}, all)
	stats := tr.Stats()
	assert.Equal(t, int64(2), stats.Delivered)
	assert.Equal(t, int64(2), stats.Failed)
	assert.False(t, stats.Running)
}
