package crud

import (
	"context"

	"crudflow/criteria"
	"crudflow/domain"
	"crudflow/hook"
)

// IDeleteService 删除操作
type IDeleteService[ID comparable] interface {
	// Delete 未命中返回 NOT_FOUND
	Delete(ctx context.Context, id ID, user *domain.User) (ID, error)
	// DeleteMany 返回被删除的标识；未命中返回空切片
	DeleteMany(ctx context.Context, c criteria.Criteria, user *domain.User) ([]ID, error)
	// DeleteAll 等价于 DeleteMany(ctx, criteria.Empty(), user)
	DeleteAll(ctx context.Context, user *domain.User) ([]ID, error)
}

func (s *Service[ID, D, DTO, Q]) Delete(ctx context.Context, id ID, user *domain.User) (ID, error) {
	var removed ID
	err := s.invoke(ctx, "delete", hook.CategoryDelete, user, func(ctx context.Context) error {
		ids, err := s.delete(ctx, "delete", byIDs(id), user, func(ids []ID) error {
			if len(ids) == 0 {
				return s.notFound(id)
			}
			return nil
		})
		if len(ids) > 0 {
			removed = ids[0]
		}
		return err
	})
	return removed, err
}

func (s *Service[ID, D, DTO, Q]) DeleteMany(ctx context.Context, c criteria.Criteria, user *domain.User) ([]ID, error) {
	var removed []ID
	err := s.invoke(ctx, "deleteMany", hook.CategoryDelete, user, func(ctx context.Context) error {
		ids, err := s.delete(ctx, "deleteMany", c, user, nil)
		removed = ids
		return err
	})
	return removed, err
}

func (s *Service[ID, D, DTO, Q]) DeleteAll(ctx context.Context, user *domain.User) ([]ID, error) {
	var removed []ID
	err := s.invoke(ctx, "deleteAll", hook.CategoryDelete, user, func(ctx context.Context) error {
		ids, err := s.delete(ctx, "deleteAll", criteria.Empty(), user, nil)
		removed = ids
		return err
	})
	return removed, err
}

// delete check 在 after 钩子之前检查删除结果，返回错误时不触发 after 钩子
func (s *Service[ID, D, DTO, Q]) delete(ctx context.Context, op string, c criteria.Criteria, user *domain.User, check func([]ID) error) ([]ID, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	ev := &hook.TypedEvent[ID, DTO]{Operation: op, User: user, Criteria: c}
	if err := s.before(ctx, hook.CategoryDelete, s.hooks.BeforeDelete, ev); err != nil {
		return nil, err
	}

	q, err := s.query(ctx, c, user)
	if err != nil {
		return nil, err
	}
	ids, err := s.repo.Delete(ctx, q)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []ID{}
	}
	if check != nil {
		if err := check(ids); err != nil {
			return nil, err
		}
	}

	ev.IDs = ids
	return ids, s.after(ctx, hook.CategoryDelete, s.hooks.AfterDelete, ev)
}
