package crud

import (
	"context"

	"crudflow/criteria"
	"crudflow/domain"
	"crudflow/hook"
)

// IGetService 读取操作
type IGetService[ID comparable, DTO any] interface {
	// GetOne 未命中返回 NOT_FOUND
	GetOne(ctx context.Context, id ID, user *domain.User) (DTO, error)
	GetOneBy(ctx context.Context, c criteria.Criteria, user *domain.User) (DTO, error)
	// GetMany 结果保持仓储顺序；不存在的 id 被忽略
	GetMany(ctx context.Context, ids []ID, user *domain.User) ([]DTO, error)
	GetManyBy(ctx context.Context, c criteria.Criteria, user *domain.User) ([]DTO, error)
	// GetStream after 钩子在序列正常耗尽时触发一次，事件只携带已读取的 ID
	GetStream(ctx context.Context, ids []ID, user *domain.User) (Stream[DTO], error)
	GetStreamBy(ctx context.Context, c criteria.Criteria, user *domain.User) (Stream[DTO], error)
	GetPage(ctx context.Context, c criteria.Criteria, page domain.PageRequest, user *domain.User) (domain.Page[DTO], error)
}

func (s *Service[ID, D, DTO, Q]) GetOne(ctx context.Context, id ID, user *domain.User) (DTO, error) {
	return s.getOne(ctx, "getOne", byIDs(id), id, user)
}

func (s *Service[ID, D, DTO, Q]) GetOneBy(ctx context.Context, c criteria.Criteria, user *domain.User) (DTO, error) {
	return s.getOne(ctx, "getOneBy", c, c.String(), user)
}

func (s *Service[ID, D, DTO, Q]) getOne(ctx context.Context, op string, c criteria.Criteria, ref any, user *domain.User) (DTO, error) {
	var result DTO
	err := s.invoke(ctx, op, hook.CategoryGet, user, func(ctx context.Context) error {
		if err := c.Validate(); err != nil {
			return err
		}
		ev := &hook.TypedEvent[ID, DTO]{Operation: op, User: user, Criteria: c}
		if err := s.before(ctx, hook.CategoryGet, s.hooks.BeforeGet, ev); err != nil {
			return err
		}

		q, err := s.query(ctx, c, user)
		if err != nil {
			return err
		}
		d, found, err := s.repo.GetOne(ctx, q)
		if err != nil {
			return err
		}
		if !found {
			return s.notFound(ref)
		}
		dto, err := s.conv.ToDTO(ctx, d, user)
		if err != nil {
			return convertErr(err, "toDTO")
		}
		result = dto

		ev.Result = []DTO{dto}
		return s.after(ctx, hook.CategoryGet, s.hooks.AfterGet, ev)
	})
	return result, err
}

func (s *Service[ID, D, DTO, Q]) GetMany(ctx context.Context, ids []ID, user *domain.User) ([]DTO, error) {
	return s.getMany(ctx, "getMany", criteria.ByIDs(ids), user)
}

func (s *Service[ID, D, DTO, Q]) GetManyBy(ctx context.Context, c criteria.Criteria, user *domain.User) ([]DTO, error) {
	return s.getMany(ctx, "getManyBy", c, user)
}

func (s *Service[ID, D, DTO, Q]) getMany(ctx context.Context, op string, c criteria.Criteria, user *domain.User) ([]DTO, error) {
	var result []DTO
	err := s.invoke(ctx, op, hook.CategoryGet, user, func(ctx context.Context) error {
		if err := c.Validate(); err != nil {
			return err
		}
		ev := &hook.TypedEvent[ID, DTO]{Operation: op, User: user, Criteria: c}
		if err := s.before(ctx, hook.CategoryGet, s.hooks.BeforeGet, ev); err != nil {
			return err
		}

		q, err := s.query(ctx, c, user)
		if err != nil {
			return err
		}
		items, err := s.repo.GetMany(ctx, q)
		if err != nil {
			return err
		}
		dtos, err := convertAll(ctx, s.conv, items, user)
		if err != nil {
			return convertErr(err, "toDTO")
		}
		result = dtos

		ev.Result = dtos
		return s.after(ctx, hook.CategoryGet, s.hooks.AfterGet, ev)
	})
	return result, err
}

func (s *Service[ID, D, DTO, Q]) GetPage(ctx context.Context, c criteria.Criteria, page domain.PageRequest, user *domain.User) (domain.Page[DTO], error) {
	result := domain.NewPage[DTO](nil, 0, page)
	err := s.invoke(ctx, "getPage", hook.CategoryGet, user, func(ctx context.Context) error {
		if err := page.Validate(); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		ev := &hook.TypedEvent[ID, DTO]{Operation: "getPage", User: user, Criteria: c, Page: &page}
		if err := s.before(ctx, hook.CategoryGet, s.hooks.BeforeGet, ev); err != nil {
			return err
		}

		q, err := s.pageQuery(ctx, c, page, user)
		if err != nil {
			return err
		}
		items, total, err := s.repo.GetPage(ctx, q)
		if err != nil {
			return err
		}
		dtos, err := convertAll(ctx, s.conv, items, user)
		if err != nil {
			return convertErr(err, "toDTO")
		}
		result = domain.NewPage(dtos, total, page)

		ev.Result = dtos
		ev.Count = total
		return s.after(ctx, hook.CategoryGet, s.hooks.AfterGet, ev)
	})
	return result, err
}

func (s *Service[ID, D, DTO, Q]) GetStream(ctx context.Context, ids []ID, user *domain.User) (Stream[DTO], error) {
	return s.getStream(ctx, "getStream", criteria.ByIDs(ids), user)
}

func (s *Service[ID, D, DTO, Q]) GetStreamBy(ctx context.Context, c criteria.Criteria, user *domain.User) (Stream[DTO], error) {
	return s.getStream(ctx, "getStreamBy", c, user)
}

func (s *Service[ID, D, DTO, Q]) getStream(ctx context.Context, op string, c criteria.Criteria, user *domain.User) (Stream[DTO], error) {
	var result Stream[DTO]
	err := s.invoke(ctx, op, hook.CategoryGet, user, func(ctx context.Context) error {
		if err := c.Validate(); err != nil {
			return err
		}
		ev := &hook.TypedEvent[ID, DTO]{Operation: op, User: user, Criteria: c}
		if err := s.before(ctx, hook.CategoryGet, s.hooks.BeforeGet, ev); err != nil {
			return err
		}

		q, err := s.query(ctx, c, user)
		if err != nil {
			return err
		}
		src, err := s.repo.GetStream(ctx, q)
		if err != nil {
			return err
		}

		var seen []ID
		mapped := MapStream(src, func(ctx context.Context, d D) (DTO, error) {
			dto, err := s.conv.ToDTO(ctx, d, user)
			if err != nil {
				return dto, convertErr(err, "toDTO")
			}
			seen = append(seen, d.GetID())
			return dto, nil
		})
		result = &completionStream[DTO]{
			Stream: mapped,
			onComplete: func(ctx context.Context) error {
				ev.IDs = seen
				return s.after(ctx, hook.CategoryGet, s.hooks.AfterGet, ev)
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
