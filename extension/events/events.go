// Package events 把 CRUD after 钩子转换为 <entity>.<category> 消息发布到消息总线。
package events

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"crudflow/hook"
	"crudflow/logging"
	"crudflow/messaging"
	"crudflow/patterns/retry"
)

// Payload 事件载荷
type Payload struct {
	Entity    string        `json:"entity"`
	Category  hook.Category `json:"category"`
	Operation string        `json:"operation"`
	IDs       []any         `json:"ids,omitempty"`
	Count     int64         `json:"count,omitempty"`
	Result    []any         `json:"result,omitempty"`
	Previous  []any         `json:"previous,omitempty"`
}

// Config 发布配置
type Config struct {
	// Categories 发布的类别，默认 save/update/delete
	Categories []hook.Category
	// IncludeResult 载荷携带结果 DTO（update 还携带旧值）
	IncludeResult bool
	// BestEffort 为 true 时发布失败只记日志，不让 after 钩子失败
	BestEffort bool
	// Retry 零值时使用 retry.DefaultConfig
	Retry  retry.Config
	Logger logging.Logger
	// NewID 生成消息 ID，默认 UUID
	NewID func() string
	Now   func() time.Time
}

// Publisher after 钩子事件发布扩展
type Publisher struct {
	pub    messaging.IPublisher
	cfg    Config
	logger logging.Logger
}

var _ hook.IExtension = (*Publisher)(nil)

// New 创建发布扩展
func New(pub messaging.IPublisher, cfg Config) *Publisher {
	if len(cfg.Categories) == 0 {
		cfg.Categories = []hook.Category{hook.CategorySave, hook.CategoryUpdate, hook.CategoryDelete}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Publisher{
		pub:    pub,
		cfg:    cfg,
		logger: logging.ComponentLogger(cfg.Logger, "events"),
	}
}

func (p *Publisher) Name() string { return "events" }

func (p *Publisher) Before(context.Context, *hook.Event) error { return nil }

func (p *Publisher) After(ctx context.Context, ev *hook.Event) error {
	if !slices.Contains(p.cfg.Categories, ev.Category) {
		return nil
	}
	switch ev.Category {
	case hook.CategorySave, hook.CategoryUpdate, hook.CategoryDelete:
		if len(ev.IDs) == 0 {
			return nil
		}
	}

	msg := p.message(ev)
	err := retry.Do(ctx, p.cfg.Retry, func(ctx context.Context, attempt int) error {
		err := p.pub.Publish(ctx, msg)
		if err != nil && attempt < p.cfg.Retry.MaxAttempts {
			p.logger.Debug(ctx, "事件发布失败，准备重试",
				logging.String("type", msg.Type),
				logging.Int("attempt", attempt),
				logging.Error(err))
		}
		return err
	})
	if err == nil {
		return nil
	}
	p.logger.Warn(ctx, "事件发布失败",
		logging.String("type", msg.Type),
		logging.String("message_id", msg.ID),
		logging.Error(err))
	if p.cfg.BestEffort {
		return nil
	}
	return err
}

func (p *Publisher) message(ev *hook.Event) *messaging.Message {
	payload := Payload{
		Entity:    ev.Entity,
		Category:  ev.Category,
		Operation: ev.Operation,
		IDs:       ev.IDs,
		Count:     ev.Count,
	}
	if p.cfg.IncludeResult {
		payload.Result = ev.Result
		payload.Previous = ev.Previous
	}
	msg := messaging.NewMessage(p.cfg.NewID(), ev.Type(), payload)
	msg.Timestamp = p.cfg.Now()
	msg.UserID = ev.User.UserID()
	msg.SetMetadata(messaging.MetaEntity, ev.Entity)
	msg.SetMetadata(messaging.MetaCategory, string(ev.Category))
	msg.SetMetadata(messaging.MetaOperation, ev.Operation)
	if tenant := ev.User.TenantID(); tenant != "" {
		msg.SetMetadata(messaging.MetaTenant, tenant)
	}
	return msg
}

// Type 事件消息类型，与 hook.Event.Type 一致
func Type(entity string, category hook.Category) string {
	return entity + "." + string(category)
}

// Handler 处理解码后的事件
type Handler func(ctx context.Context, msg messaging.IMessage, payload Payload) error

// Subscribe 订阅某实体某类别的事件；entity 为 "*" 时订阅全部
func Subscribe(ctx context.Context, bus messaging.IMessageBus, entity string, category hook.Category, fn Handler) (messaging.IMessageHandler, error) {
	messageType := messaging.Wildcard
	if entity != messaging.Wildcard {
		messageType = Type(entity, category)
	}
	h := messaging.NewHandler("events:"+messageType, func(ctx context.Context, msg messaging.IMessage) error {
		var payload Payload
		if p, ok := msg.GetPayload().(Payload); ok {
			payload = p
		} else if err := messaging.DecodePayload(msg, &payload); err != nil {
			return err
		}
		return fn(ctx, msg, payload)
	})
	if err := bus.Subscribe(ctx, messageType, h); err != nil {
		return nil, err
	}
	return h, nil
}
