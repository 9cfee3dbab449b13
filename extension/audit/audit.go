// Package audit 提供审计扩展：before 阶段为 DTO 盖创建/修改戳，after 阶段把写操作记入审计日志。
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crudflow/hook"
	"crudflow/logging"
)

// IAuditable DTO 可选实现，Save 时写入创建与修改信息，Update 时写入修改信息
type IAuditable interface {
	SetCreatedInfo(by string, at time.Time)
	SetUpdatedInfo(by string, at time.Time)
}

// Record 一条审计记录
type Record struct {
	ID        string        `json:"id"`
	Entity    string        `json:"entity"`
	Category  hook.Category `json:"category"`
	Operation string        `json:"operation"`
	UserID    string        `json:"user_id,omitempty"`
	Tenant    string        `json:"tenant,omitempty"`
	IDs       []string      `json:"ids"`
	At        time.Time     `json:"at"`
}

// IStore 审计记录存储
type IStore interface {
	Append(ctx context.Context, records ...Record) error
}

// Option 扩展选项
type Option func(*Extension)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(e *Extension) { e.now = now }
}

// WithoutStamping 关闭 before 阶段的审计戳
func WithoutStamping() Option {
	return func(e *Extension) { e.stamp = false }
}

// WithReads 同时记录读操作
func WithReads() Option {
	return func(e *Extension) { e.reads = true }
}

// WithLogger 设置日志
func WithLogger(logger logging.Logger) Option {
	return func(e *Extension) { e.logger = logging.ComponentLogger(logger, "audit") }
}

// Extension 审计扩展，作为通用扩展注册即对所有实体生效
type Extension struct {
	store  IStore
	now    func() time.Time
	stamp  bool
	reads  bool
	logger logging.Logger
}

var _ hook.IExtension = (*Extension)(nil)

// New 创建审计扩展；store 为 nil 时只盖戳不记录
func New(store IStore, opts ...Option) *Extension {
	e := &Extension{
		store:  store,
		now:    time.Now,
		stamp:  true,
		logger: logging.ComponentLogger(nil, "audit"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extension) Name() string { return "audit" }

func (e *Extension) Before(ctx context.Context, ev *hook.Event) error {
	if !e.stamp {
		return nil
	}
	var stamp func(IAuditable, string, time.Time)
	switch ev.Category {
	case hook.CategorySave:
		stamp = func(a IAuditable, by string, at time.Time) {
			a.SetCreatedInfo(by, at)
			a.SetUpdatedInfo(by, at)
		}
	case hook.CategoryUpdate:
		stamp = IAuditable.SetUpdatedInfo
	default:
		return nil
	}
	at := e.now().UTC()
	by := ev.User.UserID()
	for _, in := range ev.Input {
		if a, ok := in.(IAuditable); ok {
			stamp(a, by, at)
		}
	}
	return nil
}

func (e *Extension) After(ctx context.Context, ev *hook.Event) error {
	if e.store == nil || !e.records(ev.Category) {
		return nil
	}
	// 没有命中任何实体的写操作不记录
	if ev.Category != hook.CategoryCount && ev.Category != hook.CategoryGet && len(ev.IDs) == 0 {
		return nil
	}
	rec := Record{
		ID:        uuid.NewString(),
		Entity:    ev.Entity,
		Category:  ev.Category,
		Operation: ev.Operation,
		UserID:    ev.User.UserID(),
		Tenant:    ev.User.TenantID(),
		IDs:       stringIDs(ev.IDs),
		At:        e.now().UTC(),
	}
	if err := e.store.Append(ctx, rec); err != nil {
		e.logger.Warn(ctx, "审计记录写入失败",
			logging.String("entity", ev.Entity),
			logging.String("operation", ev.Operation),
			logging.Error(err))
		return err
	}
	return nil
}

func (e *Extension) records(cat hook.Category) bool {
	switch cat {
	case hook.CategorySave, hook.CategoryUpdate, hook.CategoryDelete:
		return true
	}
	return e.reads
}

func stringIDs(ids []any) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprint(id)
	}
	return out
}
