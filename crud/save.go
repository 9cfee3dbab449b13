package crud

import (
	"context"

	"crudflow/domain"
	"crudflow/hook"
)

// ISaveService 创建操作
type ISaveService[ID comparable, DTO any] interface {
	// Save 返回带服务端生成标识的 DTO
	Save(ctx context.Context, dto DTO, user *domain.User) (DTO, error)
	SaveMany(ctx context.Context, dtos []DTO, user *domain.User) ([]DTO, error)
}

func (s *Service[ID, D, DTO, Q]) Save(ctx context.Context, dto DTO, user *domain.User) (DTO, error) {
	var result DTO
	err := s.invoke(ctx, "save", hook.CategorySave, user, func(ctx context.Context) error {
		if err := s.requireDTOs(dto); err != nil {
			return err
		}
		if err := s.validate(dto); err != nil {
			return err
		}
		ev := &hook.TypedEvent[ID, DTO]{Operation: "save", User: user, Input: []DTO{dto}}
		if err := s.before(ctx, hook.CategorySave, s.hooks.BeforeSave, ev); err != nil {
			return err
		}

		d, err := s.conv.ToDomain(ctx, dto, user)
		if err != nil {
			return convertErr(err, "toDomain")
		}
		saved, err := s.repo.Save(ctx, d, user)
		if err != nil {
			return err
		}
		out, err := s.conv.ToDTO(ctx, saved, user)
		if err != nil {
			return convertErr(err, "toDTO")
		}
		result = out

		ev.Result = []DTO{out}
		return s.after(ctx, hook.CategorySave, s.hooks.AfterSave, ev)
	})
	return result, err
}

func (s *Service[ID, D, DTO, Q]) SaveMany(ctx context.Context, dtos []DTO, user *domain.User) ([]DTO, error) {
	if len(dtos) == 0 {
		return []DTO{}, nil
	}
	var result []DTO
	err := s.invoke(ctx, "saveMany", hook.CategorySave, user, func(ctx context.Context) error {
		if err := s.requireDTOs(dtos...); err != nil {
			return err
		}
		if err := s.validate(dtos...); err != nil {
			return err
		}
		ev := &hook.TypedEvent[ID, DTO]{Operation: "saveMany", User: user, Input: dtos}
		if err := s.before(ctx, hook.CategorySave, s.hooks.BeforeSave, ev); err != nil {
			return err
		}

		items, err := toDomainAll(ctx, s.conv, dtos, user)
		if err != nil {
			return convertErr(err, "toDomain")
		}
		saved, err := s.repo.SaveMany(ctx, items, user)
		if err != nil {
			return err
		}
		out, err := convertAll(ctx, s.conv, saved, user)
		if err != nil {
			return convertErr(err, "toDTO")
		}
		result = out

		ev.Result = out
		return s.after(ctx, hook.CategorySave, s.hooks.AfterSave, ev)
	})
	return result, err
}
