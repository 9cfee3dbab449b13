// Package natsjetstream 基于 NATS JetStream 的消息传输；每个消息类型对应一个主题与持久消费者
package natsjetstream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	apperrors "crudflow/errors"
	"crudflow/logging"
	"crudflow/messaging"
)

// Config configures the JetStream transport.
type Config struct {
	URL           string
	Stream        string
	SubjectPrefix string
	DurablePrefix string
	AckWait       time.Duration
	MaxAckPending int
	Logger        logging.Logger
	Conn          *nats.Conn

	// 可选：流参数
	Retention         string // workqueue|limits|interest（默认 limits，多个服务可各自消费）
	MaxBytes          int64  // 0 表示不设置
	Replicas          int    // 0 表示默认
	MaxMsgsPerSubject int64  // 每主题最大消息数，默认 -1
}

// Transport implements messaging.Transport on top of NATS JetStream.
type Transport struct {
	cfg      Config
	logger   logging.Logger
	conn     *nats.Conn
	js       nats.JetStreamContext
	ownsConn bool

	handlers *messaging.HandlerSet
	subs     map[string]*nats.Subscription

	mu      sync.RWMutex
	running bool

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

var _ messaging.Transport = (*Transport)(nil)

// NewTransport builds a JetStream transport.
func NewTransport(cfg Config) *Transport {
	if cfg.Stream == "" {
		cfg.Stream = "CRUDFLOW"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "crudflow.events."
	}
	if !strings.HasSuffix(cfg.SubjectPrefix, ".") {
		cfg.SubjectPrefix += "."
	}
	if cfg.DurablePrefix == "" {
		cfg.DurablePrefix = "crudflow-"
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 30 * time.Second
	}
	if cfg.MaxAckPending <= 0 {
		cfg.MaxAckPending = 1024
	}
	return &Transport{
		cfg:      cfg,
		logger:   logging.ComponentLogger(cfg.Logger, "transport.nats"),
		handlers: messaging.NewHandlerSet(),
		subs:     make(map[string]*nats.Subscription),
	}
}

func (t *Transport) Publish(ctx context.Context, message messaging.IMessage) error {
	t.mu.RLock()
	js := t.js
	running := t.running
	t.mu.RUnlock()
	if !running || js == nil {
		return apperrors.NewError(apperrors.ErrCodeQueue, "nats transport not running")
	}
	data, err := messaging.Marshal(message)
	if err != nil {
		return err
	}
	if _, err = js.Publish(t.subjectName(message.GetType()), data, nats.Context(ctx), nats.MsgId(message.GetID())); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperrors.WrapError(err, apperrors.ErrCodeQueue, "jetstream publish failed")
	}
	t.published.Add(1)
	return nil
}

func (t *Transport) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	for _, msg := range messages {
		if err := t.Publish(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) Subscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers.Add(messageType, handler)
	if t.running {
		return t.subscribeLocked(messageType)
	}
	return nil
}

func (t *Transport) Unsubscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, empty := t.handlers.Remove(messageType, handler); empty {
		if sub, ok := t.subs[messageType]; ok {
			_ = sub.Drain()
			delete(t.subs, messageType)
		}
	}
	return nil
}

func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return errors.New("nats transport already running")
	}
	if err := t.ensureConnection(); err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeQueue, "nats connect failed")
	}
	if err := t.ensureStream(); err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeQueue, "jetstream stream setup failed")
	}
	for _, mt := range t.handlers.Types() {
		if err := t.subscribeLocked(mt); err != nil {
			return err
		}
	}
	t.running = true
	t.logger.Info(ctx, "nats transport started",
		logging.String("stream", t.cfg.Stream),
		logging.String("subjects", t.cfg.SubjectPrefix+">"))
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	for mt, sub := range t.subs {
		_ = sub.Drain()
		delete(t.subs, mt)
	}
	if t.ownsConn && t.conn != nil {
		t.conn.Close()
	}
	t.conn = nil
	t.js = nil
	return nil
}

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

func (t *Transport) ensureConnection() error {
	if t.conn != nil && t.js != nil {
		return nil
	}
	if t.cfg.Conn != nil {
		t.conn = t.cfg.Conn
	} else {
		if t.cfg.URL == "" {
			t.cfg.URL = nats.DefaultURL
		}
		conn, err := nats.Connect(t.cfg.URL, nats.Name("crudflow"))
		if err != nil {
			return err
		}
		t.conn = conn
		t.ownsConn = true
	}
	js, err := t.conn.JetStream()
	if err != nil {
		return err
	}
	t.js = js
	return nil
}

func (t *Transport) ensureStream() error {
	_, err := t.js.StreamInfo(t.cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = t.js.AddStream(t.streamConfig())
	return err
}

func (t *Transport) streamConfig() *nats.StreamConfig {
	retention := nats.LimitsPolicy
	switch strings.ToLower(t.cfg.Retention) {
	case "workqueue":
		retention = nats.WorkQueuePolicy
	case "interest":
		retention = nats.InterestPolicy
	}
	sc := &nats.StreamConfig{
		Name:              t.cfg.Stream,
		Subjects:          []string{t.cfg.SubjectPrefix + ">"},
		Retention:         retention,
		MaxMsgsPerSubject: -1,
	}
	if t.cfg.MaxMsgsPerSubject != 0 {
		sc.MaxMsgsPerSubject = t.cfg.MaxMsgsPerSubject
	}
	if t.cfg.MaxBytes > 0 {
		sc.MaxBytes = t.cfg.MaxBytes
	}
	if t.cfg.Replicas > 0 {
		sc.Replicas = t.cfg.Replicas
	}
	return sc
}

func (t *Transport) subscribeLocked(messageType string) error {
	if _, exists := t.subs[messageType]; exists {
		return nil
	}
	durable := t.durableName(messageType)
	sub, err := t.js.QueueSubscribe(t.subjectName(messageType), durable, t.handleMessage(messageType),
		nats.ManualAck(),
		nats.Durable(durable),
		nats.AckWait(t.cfg.AckWait),
		nats.MaxAckPending(t.cfg.MaxAckPending))
	if err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeQueue, "jetstream subscribe failed")
	}
	t.subs[messageType] = sub
	return nil
}

// handleMessage 解码并只分发给该订阅类型的处理器；解码失败的消息直接确认丢弃
func (t *Transport) handleMessage(subscribed string) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ctx := context.Background()
		decoded, err := messaging.Unmarshal(msg.Data)
		if err != nil {
			t.logger.Warn(ctx, "decode nats message failed", logging.String("subject", msg.Subject), logging.Error(err))
			_ = msg.Ack()
			return
		}
		if decoded.Type == "" {
			decoded.Type = strings.TrimPrefix(msg.Subject, t.cfg.SubjectPrefix)
		}

		// 通配符处理器由独立的 ">" 订阅送达，这里只取精确匹配
		handlers := t.handlers.Exact(subscribed)

		failed := messaging.Dispatch(ctx, handlers, decoded, func(h messaging.IMessageHandler, err error) {
			t.logger.Warn(ctx, "message handler failed",
				logging.String("message_type", decoded.Type),
				logging.String("handler", h.Type()),
				logging.Error(err))
		})
		t.delivered.Add(int64(len(handlers) - failed))
		t.failed.Add(int64(failed))

		if err := msg.Ack(); err != nil {
			t.logger.Warn(ctx, "nats ack failed", logging.Error(err))
		}
	}
}

func (t *Transport) subjectName(messageType string) string {
	if messageType == messaging.Wildcard {
		return t.cfg.SubjectPrefix + ">"
	}
	return t.cfg.SubjectPrefix + messageType
}

// durableName 持久消费者名不能包含 . * >
func (t *Transport) durableName(messageType string) string {
	if messageType == messaging.Wildcard {
		return t.cfg.DurablePrefix + "all"
	}
	return t.cfg.DurablePrefix + strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(messageType)
}
