package crud

import (
	"context"
)

// Stream 惰性、有限、只能消费一次的序列。
//
// 用法与 database/sql.Rows 一致：
//
//	for s.Next(ctx) {
//		v := s.Value()
//	}
//	if err := s.Err(); err != nil { ... }
//
// Next 返回 false 之后（耗尽、出错或 Close）永远返回 false。
// Stream 不是并发安全的。
type Stream[T any] interface {
	Next(ctx context.Context) bool
	Value() T
	Err() error
	Close() error
}

// FromSlice 以切片构造 Stream
func FromSlice[T any](items []T) Stream[T] {
	return &sliceStream[T]{items: items, pos: -1}
}

type sliceStream[T any] struct {
	items  []T
	pos    int
	err    error
	closed bool
}

func (s *sliceStream[T]) Next(ctx context.Context) bool {
	if s.closed || s.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.pos+1 >= len(s.items) {
		s.closed = true
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream[T]) Value() T {
	var zero T
	if s.pos < 0 || s.pos >= len(s.items) || s.closed {
		return zero
	}
	return s.items[s.pos]
}

func (s *sliceStream[T]) Err() error { return s.err }

func (s *sliceStream[T]) Close() error {
	s.closed = true
	return nil
}

// MapStream 对 Stream 的每个元素做转换；转换失败终止序列并通过 Err 返回
func MapStream[A any, B any](src Stream[A], fn func(ctx context.Context, a A) (B, error)) Stream[B] {
	return &mapStream[A, B]{src: src, fn: fn}
}

type mapStream[A any, B any] struct {
	src  Stream[A]
	fn   func(ctx context.Context, a A) (B, error)
	cur  B
	err  error
	done bool
}

func (m *mapStream[A, B]) Next(ctx context.Context) bool {
	if m.done {
		return false
	}
	if !m.src.Next(ctx) {
		m.done = true
		return false
	}
	v, err := m.fn(ctx, m.src.Value())
	if err != nil {
		m.err = err
		m.done = true
		_ = m.src.Close()
		return false
	}
	m.cur = v
	return true
}

func (m *mapStream[A, B]) Value() B { return m.cur }

func (m *mapStream[A, B]) Err() error {
	if m.err != nil {
		return m.err
	}
	return m.src.Err()
}

func (m *mapStream[A, B]) Close() error {
	m.done = true
	return m.src.Close()
}

// Collect 读尽 Stream 并关闭
func Collect[T any](ctx context.Context, s Stream[T]) ([]T, error) {
	defer s.Close()
	var out []T
	for s.Next(ctx) {
		out = append(out, s.Value())
	}
	if err := s.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// completionStream 在序列正常耗尽时回调一次 onComplete；回调错误经 Err 返回
type completionStream[T any] struct {
	Stream[T]
	onComplete func(ctx context.Context) error
	fired      bool
	err        error
}

func (c *completionStream[T]) Next(ctx context.Context) bool {
	if c.fired {
		return false
	}
	if c.Stream.Next(ctx) {
		return true
	}
	c.fired = true
	if c.Stream.Err() == nil && c.onComplete != nil {
		c.err = c.onComplete(ctx)
	}
	return false
}

func (c *completionStream[T]) Err() error {
	if err := c.Stream.Err(); err != nil {
		return err
	}
	return c.err
}

func (c *completionStream[T]) Close() error {
	c.fired = true
	return c.Stream.Close()
}
