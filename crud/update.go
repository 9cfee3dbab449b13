package crud

import (
	"context"

	"crudflow/criteria"
	"crudflow/domain"
	"crudflow/errors"
	"crudflow/hook"
)

// IUpdateService 全量更新操作
type IUpdateService[ID comparable, DTO any] interface {
	// Update 以 id 为目标，载荷中的 ID 被覆盖为 id
	Update(ctx context.Context, id ID, dto DTO, user *domain.User) (DTO, error)
	// UpdateDTO 以 dto.GetID() 为目标
	UpdateDTO(ctx context.Context, dto DTO, user *domain.User) (DTO, error)
	// UpdatePair 以 old.GetID() 为目标，newDTO 的 ID 被覆盖
	UpdatePair(ctx context.Context, old, newDTO DTO, user *domain.User) (DTO, error)
	UpdateMany(ctx context.Context, dtos []DTO, user *domain.User) ([]DTO, error)
}

func (s *Service[ID, D, DTO, Q]) Update(ctx context.Context, id ID, dto DTO, user *domain.User) (DTO, error) {
	return s.updateOne(ctx, "update", dto, user, func() error {
		dto.SetID(id)
		return nil
	})
}

func (s *Service[ID, D, DTO, Q]) UpdateDTO(ctx context.Context, dto DTO, user *domain.User) (DTO, error) {
	return s.updateOne(ctx, "updateDTO", dto, user, nil)
}

func (s *Service[ID, D, DTO, Q]) UpdatePair(ctx context.Context, old, newDTO DTO, user *domain.User) (DTO, error) {
	return s.updateOne(ctx, "updatePair", newDTO, user, func() error {
		if err := s.requireDTOs(old); err != nil {
			return err
		}
		newDTO.SetID(old.GetID())
		return nil
	})
}

func (s *Service[ID, D, DTO, Q]) UpdateMany(ctx context.Context, dtos []DTO, user *domain.User) ([]DTO, error) {
	if len(dtos) == 0 {
		return []DTO{}, nil
	}
	var result []DTO
	err := s.invoke(ctx, "updateMany", hook.CategoryUpdate, user, func(ctx context.Context) error {
		if err := s.requireDTOs(dtos...); err != nil {
			return err
		}
		if err := s.validateTargets(dtos); err != nil {
			return err
		}
		out, err := s.update(ctx, "updateMany", dtos, nil, user)
		result = out
		return err
	})
	return result, err
}

// updateOne target 在载荷非空后执行，用于改写目标标识
func (s *Service[ID, D, DTO, Q]) updateOne(ctx context.Context, op string, dto DTO, user *domain.User, target func() error) (DTO, error) {
	var result DTO
	err := s.invoke(ctx, op, hook.CategoryUpdate, user, func(ctx context.Context) error {
		if err := s.requireDTOs(dto); err != nil {
			return err
		}
		if target != nil {
			if err := target(); err != nil {
				return err
			}
		}
		if err := s.validateTargets([]DTO{dto}); err != nil {
			return err
		}
		out, err := s.update(ctx, op, []DTO{dto}, nil, user)
		if len(out) == 1 {
			result = out[0]
		}
		return err
	})
	return result, err
}

func (s *Service[ID, D, DTO, Q]) validateTargets(dtos []DTO) error {
	for _, dto := range dtos {
		if domain.IsZeroID(dto.GetID()) {
			return errors.NewBadRequest("%s 更新缺少标识", s.entity)
		}
	}
	return s.validate(dtos...)
}

// update 执行 before 钩子 → 读取旧值 → 批量更新 → after 钩子。
//
// previous 非空时（edit 已读取过当前状态）跳过读取。
// 批量更新由仓储保证全部成功或全部不写入；任一目标不存在时返回 NOT_FOUND。
func (s *Service[ID, D, DTO, Q]) update(ctx context.Context, op string, dtos []DTO, previous []DTO, user *domain.User) ([]DTO, error) {
	ev := &hook.TypedEvent[ID, DTO]{Operation: op, User: user, Input: dtos}
	if previous != nil {
		ev.Previous = previous
	}
	if err := s.before(ctx, hook.CategoryUpdate, s.hooks.BeforeUpdate, ev); err != nil {
		return nil, err
	}

	if previous == nil {
		prev, err := s.loadExisting(ctx, dtos, user)
		if err != nil {
			return nil, err
		}
		ev.Previous = prev
	}

	items, err := toDomainAll(ctx, s.conv, dtos, user)
	if err != nil {
		return nil, convertErr(err, "toDomain")
	}
	var updated []D
	if len(items) == 1 {
		var one D
		one, err = s.repo.Update(ctx, items[0], user)
		updated = []D{one}
	} else {
		updated, err = s.repo.UpdateMany(ctx, items, user)
	}
	if err != nil {
		return nil, err
	}
	out, err := convertAll(ctx, s.conv, updated, user)
	if err != nil {
		return nil, convertErr(err, "toDTO")
	}

	ev.Result = out
	return out, s.after(ctx, hook.CategoryUpdate, s.hooks.AfterUpdate, ev)
}

// loadExisting 读取目标的当前状态，按 dtos 顺序返回
func (s *Service[ID, D, DTO, Q]) loadExisting(ctx context.Context, dtos []DTO, user *domain.User) ([]DTO, error) {
	ids := make([]ID, len(dtos))
	for i, dto := range dtos {
		ids[i] = dto.GetID()
	}
	q, err := s.query(ctx, criteria.ByIDs(ids), user)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetMany(ctx, q)
	if err != nil {
		return nil, err
	}
	byID := make(map[ID]D, len(items))
	for _, item := range items {
		byID[item.GetID()] = item
	}

	prev := make([]DTO, len(ids))
	for i, id := range ids {
		item, ok := byID[id]
		if !ok {
			return nil, s.notFound(id)
		}
		dto, err := s.conv.ToDTO(ctx, item, user)
		if err != nil {
			return nil, convertErr(err, "toDTO")
		}
		prev[i] = dto
	}
	return prev, nil
}
