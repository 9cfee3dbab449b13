// Package redisstreams 基于 Redis Streams 消费组的消息传输；每个消息类型对应一个 Stream
package redisstreams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "crudflow/errors"
	"crudflow/logging"
	"crudflow/messaging"
)

// client captures the subset of go-redis commands we rely on (for easier testing).
type client interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	Close() error
}

// Config describes how the Redis Streams transport should connect/behave.
type Config struct {
	Client       redis.UniversalClient
	Addr         string
	Username     string
	Password     string
	DB           int
	StreamPrefix string
	GroupName    string
	ConsumerName string
	BlockTimeout time.Duration
	ReadCount    int64
	// MaxLen 每个 Stream 的近似最大长度，0 表示不裁剪
	MaxLen int64
	Logger logging.Logger

	// 并发与背压配置
	MaxPublishConcurrency int           // 限制同时进行的 XADD 数，0 表示不限制
	MinReadBackoff        time.Duration // 订阅错误最小退避，默认 100ms
	MaxReadBackoff        time.Duration // 订阅错误最大退避，默认 5s
}

// Transport is a messaging.Transport backed by Redis Streams consumer groups.
type Transport struct {
	cfg       Config
	client    client
	ownClient bool
	logger    logging.Logger

	handlers      *messaging.HandlerSet
	subscriptions map[string]bool

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	pubSem chan struct{}

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

var _ messaging.Transport = (*Transport)(nil)

// NewTransport constructs a Redis Streams transport.
func NewTransport(cfg Config) (*Transport, error) {
	var cl client
	var own bool
	if cfg.Client != nil {
		cl = cfg.Client
	} else {
		if cfg.Addr == "" {
			return nil, apperrors.NewError(apperrors.ErrCodeInvalidInput, "redis client not configured")
		}
		cl = redis.NewClient(&redis.Options{Addr: cfg.Addr, Username: cfg.Username, Password: cfg.Password, DB: cfg.DB})
		own = true
	}
	return newTransport(cfg, cl, own), nil
}

func newTransport(cfg Config, cl client, own bool) *Transport {
	if cfg.StreamPrefix == "" {
		cfg.StreamPrefix = "crudflow:"
	}
	if !strings.HasSuffix(cfg.StreamPrefix, ":") {
		cfg.StreamPrefix += ":"
	}
	if cfg.GroupName == "" {
		cfg.GroupName = "crudflow"
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = "consumer-" + uuid.NewString()
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ReadCount <= 0 {
		cfg.ReadCount = 10
	}
	if cfg.MinReadBackoff <= 0 {
		cfg.MinReadBackoff = 100 * time.Millisecond
	}
	if cfg.MaxReadBackoff <= 0 {
		cfg.MaxReadBackoff = 5 * time.Second
	}

	t := &Transport{
		cfg:           cfg,
		client:        cl,
		ownClient:     own,
		logger:        logging.ComponentLogger(cfg.Logger, "transport.redisstreams"),
		handlers:      messaging.NewHandlerSet(),
		subscriptions: make(map[string]bool),
	}
	if cfg.MaxPublishConcurrency > 0 {
		t.pubSem = make(chan struct{}, cfg.MaxPublishConcurrency)
	}
	return t
}

// Publish writes a single message into the appropriate Stream.
func (t *Transport) Publish(ctx context.Context, message messaging.IMessage) error {
	return t.publish(ctx, message)
}

// PublishAll writes messages sequentially. Redis Streams does not support multi append.
func (t *Transport) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	for _, msg := range messages {
		if err := t.publish(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) publish(ctx context.Context, message messaging.IMessage) error {
	if t.pubSem != nil {
		select {
		case t.pubSem <- struct{}{}:
			defer func() { <-t.pubSem }()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	values, err := encodeMessage(message)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{Stream: t.streamName(message.GetType()), Values: values}
	if t.cfg.MaxLen > 0 {
		args.MaxLen = t.cfg.MaxLen
		args.Approx = true
	}
	if err := t.client.XAdd(ctx, args).Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperrors.WrapError(err, apperrors.ErrCodeQueue, "redis xadd failed")
	}
	t.published.Add(1)
	return nil
}

// Subscribe registers a handler for a given message type.
//
// Redis Streams 没有主题通配，"*" 订阅收到所有已订阅类型的消息。
func (t *Transport) Subscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers.Add(messageType, handler)
	if t.running && messageType != messaging.Wildcard {
		t.startReaderLocked(messageType)
	}
	return nil
}

// Unsubscribe removes the handler for a message type (no-op if not found).
func (t *Transport) Unsubscribe(messageType string, handler messaging.IMessageHandler) error {
	t.handlers.Remove(messageType, handler)
	return nil
}

// Start begins background consumers per message type.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("redis streams transport already running")
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	for _, mt := range t.handlers.Types() {
		if mt != messaging.Wildcard {
			t.startReaderLocked(mt)
		}
	}
	t.running = true
	return nil
}

// Close stops consumers and closes the redis client if owned.
func (t *Transport) Close() error {
	t.mu.Lock()
	running := t.running
	t.running = false
	cancel := t.cancel
	t.subscriptions = make(map[string]bool)
	t.mu.Unlock()

	if running && cancel != nil {
		cancel()
		t.wg.Wait()
	}
	if t.ownClient {
		return t.client.Close()
	}
	return nil
}

// Stats returns basic handler/stream information.
func (t *Transport) Stats() messaging.TransportStats {
	t.mu.RLock()
	running := t.running
	t.mu.RUnlock()
	return messaging.TransportStats{
		Running:      running,
		HandlerCount: t.handlers.Count(),
		MessageTypes: t.handlers.Types(),
		Published:    t.published.Load(),
		Delivered:    t.delivered.Load(),
		Failed:       t.failed.Load(),
	}
}

func (t *Transport) startReaderLocked(messageType string) {
	if t.subscriptions[messageType] {
		return
	}
	t.subscriptions[messageType] = true
	t.wg.Add(1)
	go t.readLoop(t.ctx, messageType)
}

func (t *Transport) readLoop(ctx context.Context, messageType string) {
	defer t.wg.Done()
	stream := t.streamName(messageType)
	if err := t.ensureGroup(ctx, stream); err != nil {
		t.logger.Warn(ctx, "ensure group failed", logging.String("stream", stream), logging.Error(err))
	}
	args := &redis.XReadGroupArgs{
		Group:    t.cfg.GroupName,
		Consumer: t.cfg.ConsumerName,
		Streams:  []string{stream, ">"},
		Count:    t.cfg.ReadCount,
		Block:    t.cfg.BlockTimeout,
	}
	backoff := t.cfg.MinReadBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := t.client.XReadGroup(ctx, args).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			t.logger.Warn(ctx, "xreadgroup failed", logging.Duration("backoff", backoff), logging.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, t.cfg.MaxReadBackoff)
			continue
		}
		backoff = t.cfg.MinReadBackoff
		for _, streamRes := range res {
			for _, entry := range streamRes.Messages {
				t.handleEntry(ctx, streamRes.Stream, entry)
			}
		}
	}
}

// handleEntry 解码失败的条目直接确认丢弃
func (t *Transport) handleEntry(ctx context.Context, stream string, entry redis.XMessage) {
	msg, err := decodeMessage(entry)
	if err != nil {
		t.logger.Warn(ctx, "decode redis stream entry failed", logging.String("entry", entry.ID), logging.Error(err))
	} else {
		handlers := t.handlers.Match(msg.Type)
		failed := messaging.Dispatch(ctx, handlers, msg, func(h messaging.IMessageHandler, err error) {
			t.logger.Warn(ctx, "message handler failed",
				logging.String("message_type", msg.Type),
				logging.String("handler", h.Type()),
				logging.Error(err))
		})
		t.delivered.Add(int64(len(handlers) - failed))
		t.failed.Add(int64(failed))
	}
	if ackErr := t.client.XAck(ctx, stream, t.cfg.GroupName, entry.ID).Err(); ackErr != nil {
		t.logger.Warn(ctx, "xack failed", logging.Error(ackErr))
	}
}

func (t *Transport) ensureGroup(ctx context.Context, stream string) error {
	err := t.client.XGroupCreateMkStream(ctx, stream, t.cfg.GroupName, "0").Err()
	if err == nil || strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP") {
		return nil
	}
	return err
}

func (t *Transport) streamName(messageType string) string {
	return t.cfg.StreamPrefix + messageType
}

func encodeMessage(msg messaging.IMessage) (map[string]any, error) {
	env, err := messaging.ToEnvelope(msg)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(env.Metadata)
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeQueue, "消息元数据序列化失败")
	}
	return map[string]any{
		"id":         env.ID,
		"type":       env.Type,
		"timestamp":  env.Timestamp,
		"payload":    string(env.Payload),
		"metadata":   string(metadata),
		"user_id":    env.UserID,
		"request_id": env.RequestID,
	}, nil
}

func decodeMessage(entry redis.XMessage) (*messaging.Message, error) {
	str := func(key string) string {
		v, _ := entry.Values[key].(string)
		return v
	}
	env := messaging.Envelope{
		ID:        str("id"),
		Type:      str("type"),
		UserID:    str("user_id"),
		RequestID: str("request_id"),
		Timestamp: time.Now().UnixNano(),
	}
	if raw := str("payload"); raw != "" {
		env.Payload = json.RawMessage(raw)
	}
	if raw := str("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &env.Metadata); err != nil {
			return nil, err
		}
	}
	switch v := entry.Values["timestamp"].(type) {
	case int64:
		env.Timestamp = v
	case string:
		if ns, err := strconv.ParseInt(v, 10, 64); err == nil {
			env.Timestamp = ns
		}
	}
	if env.ID == "" {
		env.ID = entry.ID
	}
	return env.Message()
}
