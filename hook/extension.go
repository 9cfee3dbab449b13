package hook

import (
	"context"
	"slices"
)

// IExtension 通用扩展
type IExtension interface {
	Name() string
	Before(ctx context.Context, ev *Event) error
	After(ctx context.Context, ev *Event) error
}

// IDomainExtension 领域扩展
type IDomainExtension[ID comparable, DTO any] interface {
	Name() string
	Before(ctx context.Context, ev *TypedEvent[ID, DTO]) error
	After(ctx context.Context, ev *TypedEvent[ID, DTO]) error
}

// Funcs 函数式通用扩展；未设置的阶段为空操作
type Funcs struct {
	ExtName  string
	BeforeFn func(ctx context.Context, ev *Event) error
	AfterFn  func(ctx context.Context, ev *Event) error
}

func (f Funcs) Name() string { return f.ExtName }

func (f Funcs) Before(ctx context.Context, ev *Event) error {
	if f.BeforeFn == nil {
		return nil
	}
	return f.BeforeFn(ctx, ev)
}

func (f Funcs) After(ctx context.Context, ev *Event) error {
	if f.AfterFn == nil {
		return nil
	}
	return f.AfterFn(ctx, ev)
}

// TypedFuncs 函数式领域扩展
type TypedFuncs[ID comparable, DTO any] struct {
	ExtName  string
	BeforeFn func(ctx context.Context, ev *TypedEvent[ID, DTO]) error
	AfterFn  func(ctx context.Context, ev *TypedEvent[ID, DTO]) error
}

func (f TypedFuncs[ID, DTO]) Name() string { return f.ExtName }

func (f TypedFuncs[ID, DTO]) Before(ctx context.Context, ev *TypedEvent[ID, DTO]) error {
	if f.BeforeFn == nil {
		return nil
	}
	return f.BeforeFn(ctx, ev)
}

func (f TypedFuncs[ID, DTO]) After(ctx context.Context, ev *TypedEvent[ID, DTO]) error {
	if f.AfterFn == nil {
		return nil
	}
	return f.AfterFn(ctx, ev)
}

// Only 仅在指定类别上触发 ext
func Only(ext IExtension, categories ...Category) IExtension {
	return &filtered{IExtension: ext, categories: slices.Clone(categories)}
}

type filtered struct {
	IExtension
	categories []Category
}

func (f *filtered) Before(ctx context.Context, ev *Event) error {
	if !slices.Contains(f.categories, ev.Category) {
		return nil
	}
	return f.IExtension.Before(ctx, ev)
}

func (f *filtered) After(ctx context.Context, ev *Event) error {
	if !slices.Contains(f.categories, ev.Category) {
		return nil
	}
	return f.IExtension.After(ctx, ev)
}
