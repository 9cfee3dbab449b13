package crud

import (
	"context"

	"crudflow/criteria"
	"crudflow/domain"
	"crudflow/hook"
)

// ICountService 计数操作
type ICountService interface {
	Count(ctx context.Context, c criteria.Criteria, user *domain.User) (int64, error)
	// CountAll 等价于 Count(ctx, criteria.Empty(), user)
	CountAll(ctx context.Context, user *domain.User) (int64, error)
}

func (s *Service[ID, D, DTO, Q]) Count(ctx context.Context, c criteria.Criteria, user *domain.User) (int64, error) {
	return s.count(ctx, "count", c, user)
}

func (s *Service[ID, D, DTO, Q]) CountAll(ctx context.Context, user *domain.User) (int64, error) {
	return s.count(ctx, "countAll", criteria.Empty(), user)
}

func (s *Service[ID, D, DTO, Q]) count(ctx context.Context, op string, c criteria.Criteria, user *domain.User) (int64, error) {
	var n int64
	err := s.invoke(ctx, op, hook.CategoryCount, user, func(ctx context.Context) error {
		if err := c.Validate(); err != nil {
			return err
		}
		ev := &hook.TypedEvent[ID, DTO]{Operation: op, User: user, Criteria: c}
		if err := s.before(ctx, hook.CategoryCount, s.hooks.BeforeCount, ev); err != nil {
			return err
		}

		q, err := s.query(ctx, c, user)
		if err != nil {
			return err
		}
		n, err = s.repo.Count(ctx, q)
		if err != nil {
			return err
		}

		ev.Count = n
		return s.after(ctx, hook.CategoryCount, s.hooks.AfterCount, ev)
	})
	return n, err
}
