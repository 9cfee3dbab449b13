package hook

import (
	"context"
	"fmt"
	"slices"

	"crudflow/logging"
)

// Registry 通用扩展注册表。
//
// 注册表构造后只读，可被多个 Component 并发共享；
// 需要追加扩展时使用 With 得到新的注册表。
type Registry struct {
	extensions []IExtension
}

// NewRegistry 以注册顺序创建注册表，nil 扩展被忽略
func NewRegistry(exts ...IExtension) *Registry {
	r := &Registry{}
	for _, ext := range exts {
		if ext != nil {
			r.extensions = append(r.extensions, ext)
		}
	}
	return r
}

// With 返回追加了扩展的新注册表
func (r *Registry) With(exts ...IExtension) *Registry {
	return NewRegistry(append(r.Extensions(), exts...)...)
}

// Extensions 返回扩展副本
func (r *Registry) Extensions() []IExtension {
	if r == nil {
		return nil
	}
	return slices.Clone(r.extensions)
}

// Len 扩展数量
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.extensions)
}

// Component 单个实体的钩子分发器（BeforeAfterComponent）。
type Component[ID comparable, DTO any] struct {
	entity   string
	registry *Registry
	logger   logging.Logger
}

// NewComponent 创建实体钩子分发器；registry 可为 nil
func NewComponent[ID comparable, DTO any](entity string, registry *Registry, logger logging.Logger) *Component[ID, DTO] {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Component[ID, DTO]{
		entity:   entity,
		registry: registry,
		logger:   logging.ComponentLogger(logger, "hook").WithFields(logging.String("entity", entity)),
	}
}

// Entity 实体名
func (c *Component[ID, DTO]) Entity() string { return c.entity }

func (c *Component[ID, DTO]) BeforeCount(ctx context.Context, ev *TypedEvent[ID, DTO], exts []IDomainExtension[ID, DTO]) error {
	return c.dispatch(ctx, CategoryCount, PhaseBefore, ev, exts)
}

func (c *Component[ID, DTO]) AfterCount(ctx context.Context, ev *TypedEvent[ID, DTO], exts []IDomainExtension[ID, DTO]) error {
	return c.dispatch(ctx, CategoryCount, PhaseAfter, ev, exts)
}

func (c *Component[ID, DTO]) BeforeGet(ctx context.Context, ev *TypedEvent[ID, DTO], exts []IDomainExtension[ID, DTO]) error {
	return c.dispatch(ctx, CategoryGet, PhaseBefore, ev, exts)
}

func (c *Component[ID, DTO]) AfterGet(ctx context.Context, ev *TypedEvent[ID, DTO], exts []IDomainExtension[ID, DTO]) error {
	return c.dispatch(ctx, CategoryGet, PhaseAfter, ev, exts)
}

func (c *Component[ID, DTO]) BeforeSave(ctx context.Context, ev *TypedEvent[ID, DTO], exts []IDomainExtension[ID, DTO]) error {
	return c.dispatch(ctx, CategorySave, PhaseBefore, ev, exts)
}

func (c *Component[ID, DTO]) AfterSave(ctx context.Context, ev *TypedEvent[ID, DTO], exts []IDomainExtension[ID, DTO]) error {
	return c.dispatch(ctx, CategorySave, PhaseAfter, ev, exts)
}

func (c *Component[ID, DTO]) BeforeUpdate(ctx context.Context, ev *TypedEvent[ID, DTO], exts []IDomainExtension[ID, DTO]) error {
	return c.dispatch(ctx, CategoryUpdate, PhaseBefore, ev, exts)
}

func (c *Component[ID, DTO]) AfterUpdate(ctx context.Context, ev *TypedEvent[ID, DTO], exts []IDomainExtension[ID, DTO]) error {
	return c.dispatch(ctx, CategoryUpdate, PhaseAfter, ev, exts)
}

func (c *Component[ID, DTO]) BeforeDelete(ctx context.Context, ev *TypedEvent[ID, DTO], exts []IDomainExtension[ID, DTO]) error {
	return c.dispatch(ctx, CategoryDelete, PhaseBefore, ev, exts)
}

func (c *Component[ID, DTO]) AfterDelete(ctx context.Context, ev *TypedEvent[ID, DTO], exts []IDomainExtension[ID, DTO]) error {
	return c.dispatch(ctx, CategoryDelete, PhaseAfter, ev, exts)
}

// dispatch 先通用扩展，后领域扩展；首个错误中止
func (c *Component[ID, DTO]) dispatch(ctx context.Context, cat Category, phase Phase, ev *TypedEvent[ID, DTO], exts []IDomainExtension[ID, DTO]) error {
	if ev == nil {
		ev = &TypedEvent[ID, DTO]{}
	}
	ev.Entity = c.entity
	ev.Category = cat
	ev.Phase = phase

	if err := ctx.Err(); err != nil {
		return err
	}

	if c.registry.Len() > 0 {
		generic := ev.Generic()
		for _, ext := range c.registry.extensions {
			if err := invoke(ctx, phase, generic, ext); err != nil {
				c.logFailure(ctx, cat, phase, ext.Name(), err)
				return fmt.Errorf("extension %s: %w", ext.Name(), err)
			}
		}
	}

	for _, ext := range exts {
		if ext == nil {
			continue
		}
		var err error
		if phase == PhaseBefore {
			err = ext.Before(ctx, ev)
		} else {
			err = ext.After(ctx, ev)
		}
		if err != nil {
			c.logFailure(ctx, cat, phase, ext.Name(), err)
			return fmt.Errorf("extension %s: %w", ext.Name(), err)
		}
	}
	return nil
}

func invoke(ctx context.Context, phase Phase, ev *Event, ext IExtension) error {
	if phase == PhaseBefore {
		return ext.Before(ctx, ev)
	}
	return ext.After(ctx, ev)
}

func (c *Component[ID, DTO]) logFailure(ctx context.Context, cat Category, phase Phase, ext string, err error) {
	c.logger.Warn(ctx, "钩子执行失败",
		logging.String("category", string(cat)),
		logging.String("phase", string(phase)),
		logging.String("extension", ext),
		logging.Error(err),
	)
}
