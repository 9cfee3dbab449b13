// Package memory 提供基于内存的 crud.IRepository 实现（测试/示例用）。
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"crudflow/criteria"
	"crudflow/crud"
	"crudflow/domain"
	"crudflow/errors"
	"crudflow/store"
)

// Query 内存仓储的查询对象
type Query = store.Query

// Options 内存仓储配置
type Options[ID comparable, D domain.IObject[ID]] struct {
	// NextID 生成新标识；Save 时对象标识为零值才调用
	NextID func() ID
	// AssignID 将标识写入对象并返回新对象
	AssignID func(d D, id ID) D
	// Fields 返回用于条件求值的字段，默认取对象的 JSON 表示
	Fields func(d D) criteria.FieldSource
	// Scope 按调用者追加约束（例如租户隔离），在 ApplyCriteria 中合并
	Scope func(user *domain.User) criteria.Criteria
}

// Repository 线程安全的内存仓储，结果按插入顺序返回
type Repository[ID comparable, D domain.IObject[ID]] struct {
	mu    sync.RWMutex
	items map[ID]D
	order []ID
	opts  Options[ID, D]
}

var _ crud.IRepository[int64, domain.IObject[int64], Query] = (*Repository[int64, domain.IObject[int64]])(nil)

// New 创建内存仓储
func New[ID comparable, D domain.IObject[ID]](opts Options[ID, D]) *Repository[ID, D] {
	if opts.Fields == nil {
		opts.Fields = func(d D) criteria.FieldSource { return criteria.JSONSource(d) }
	}
	return &Repository[ID, D]{items: make(map[ID]D), opts: opts}
}

func (r *Repository[ID, D]) GenerateQuery(ctx context.Context, user *domain.User) (Query, error) {
	return Query{}, ctx.Err()
}

func (r *Repository[ID, D]) GeneratePageQuery(ctx context.Context, page domain.PageRequest, user *domain.User) (Query, error) {
	return Query{Page: &page}, ctx.Err()
}

func (r *Repository[ID, D]) ApplyCriteria(ctx context.Context, q Query, c criteria.Criteria, user *domain.User) (Query, error) {
	q.Criteria = q.Criteria.Merge(c)
	if r.opts.Scope != nil {
		q.Criteria = q.Criteria.Merge(r.opts.Scope(user))
	}
	return q, nil
}

// match 返回满足条件的对象，按插入顺序
func (r *Repository[ID, D]) match(q Query) []D {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]D, 0)
	for _, id := range r.order {
		item := r.items[id]
		if criteria.Match(r.opts.Fields(item), q.Criteria) {
			out = append(out, item)
		}
	}
	return out
}

func (r *Repository[ID, D]) Count(ctx context.Context, q Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(r.match(q))), nil
}

func (r *Repository[ID, D]) GetOne(ctx context.Context, q Query) (D, bool, error) {
	var zero D
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	items := r.match(q)
	if len(items) == 0 {
		return zero, false, nil
	}
	return items[0], true, nil
}

func (r *Repository[ID, D]) GetMany(ctx context.Context, q Query) ([]D, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.match(q), nil
}

func (r *Repository[ID, D]) GetPage(ctx context.Context, q Query) ([]D, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	items := r.match(q)
	total := int64(len(items))
	if q.Page == nil {
		return items, total, nil
	}
	r.sort(items, q.Page.Sort)

	start := q.Page.Offset()
	if start >= len(items) {
		return []D{}, total, nil
	}
	end := min(start+q.Page.Size, len(items))
	return items[start:end], total, nil
}

func (r *Repository[ID, D]) sort(items []D, sorts []domain.Sort) {
	if len(sorts) == 0 {
		return
	}
	slices.SortStableFunc(items, func(a, b D) int {
		fa, fb := r.opts.Fields(a), r.opts.Fields(b)
		for _, s := range sorts {
			va, _ := fa.Field(s.Field)
			vb, _ := fb.Field(s.Field)
			c := criteria.Compare(va, vb)
			if s.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func (r *Repository[ID, D]) GetStream(ctx context.Context, q Query) (crud.Stream[D], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return crud.FromSlice(r.match(q)), nil
}

func (r *Repository[ID, D]) Save(ctx context.Context, d D, user *domain.User) (D, error) {
	saved, err := r.SaveMany(ctx, []D{d}, user)
	if err != nil {
		var zero D
		return zero, err
	}
	return saved[0], nil
}

// SaveMany 全部成功或全部不写入
func (r *Repository[ID, D]) SaveMany(ctx context.Context, ds []D, user *domain.User) ([]D, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]D, len(ds))
	seen := make(map[ID]struct{}, len(ds))
	for i, d := range ds {
		if domain.IsZeroID(d.GetID()) {
			if r.opts.NextID == nil || r.opts.AssignID == nil {
				return nil, errors.NewBadRequest("对象缺少标识且未配置标识生成器")
			}
			d = r.opts.AssignID(d, r.opts.NextID())
		}
		id := d.GetID()
		if _, exists := r.items[id]; exists {
			return nil, errors.Errorf(errors.ErrCodeDuplicate, "标识已存在: %v", id)
		}
		if _, dup := seen[id]; dup {
			return nil, errors.Errorf(errors.ErrCodeDuplicate, "批量中标识重复: %v", id)
		}
		seen[id] = struct{}{}
		out[i] = d
	}
	for _, d := range out {
		r.items[d.GetID()] = d
		r.order = append(r.order, d.GetID())
	}
	return out, nil
}

func (r *Repository[ID, D]) Update(ctx context.Context, d D, user *domain.User) (D, error) {
	updated, err := r.UpdateMany(ctx, []D{d}, user)
	if err != nil {
		var zero D
		return zero, err
	}
	return updated[0], nil
}

// UpdateMany 先确认全部目标存在再写入
func (r *Repository[ID, D]) UpdateMany(ctx context.Context, ds []D, user *domain.User) ([]D, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range ds {
		if _, ok := r.items[d.GetID()]; !ok {
			return nil, errors.WrapError(errors.ErrEntityNotFound, errors.ErrCodeNotFound,
				fmt.Sprintf("更新目标不存在: %v", d.GetID()))
		}
	}
	for _, d := range ds {
		r.items[d.GetID()] = d
	}
	return append([]D(nil), ds...), nil
}

func (r *Repository[ID, D]) Delete(ctx context.Context, q Query) ([]ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matched := r.match(q)

	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]ID, 0, len(matched))
	for _, item := range matched {
		id := item.GetID()
		if _, ok := r.items[id]; !ok {
			continue
		}
		delete(r.items, id)
		ids = append(ids, id)
	}
	r.order = slices.DeleteFunc(r.order, func(id ID) bool {
		_, ok := r.items[id]
		return !ok
	})
	return ids, nil
}

// Len 当前对象数量
func (r *Repository[ID, D]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
