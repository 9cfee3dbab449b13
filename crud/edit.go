package crud

import (
	"context"
	"encoding/json"

	"crudflow/criteria"
	"crudflow/domain"
	"crudflow/errors"
	"crudflow/hook"
)

// IEditService 补丁更新操作。
//
// 流程：读取当前状态 → 应用补丁 → 恢复标识 → 校验 → before 钩子 → 更新 → after 钩子。
// 补丁文档非法返回 INVALID_INPUT；补丁结果不满足校验返回 VALIDATION_ERROR。
type IEditService[ID comparable, DTO any] interface {
	Edit(ctx context.Context, id ID, patch Patch, user *domain.User) (DTO, error)
	// EditBy 对条件匹配到的第一个对象应用补丁
	EditBy(ctx context.Context, c criteria.Criteria, patch Patch, user *domain.User) (DTO, error)
	// EditMany 对条件匹配到的全部对象应用同一补丁
	EditMany(ctx context.Context, c criteria.Criteria, patch Patch, user *domain.User) ([]DTO, error)
}

func (s *Service[ID, D, DTO, Q]) Edit(ctx context.Context, id ID, patch Patch, user *domain.User) (DTO, error) {
	return s.editOne(ctx, "edit", byIDs(id), id, patch, user)
}

func (s *Service[ID, D, DTO, Q]) EditBy(ctx context.Context, c criteria.Criteria, patch Patch, user *domain.User) (DTO, error) {
	return s.editOne(ctx, "editBy", c, c.String(), patch, user)
}

func (s *Service[ID, D, DTO, Q]) editOne(ctx context.Context, op string, c criteria.Criteria, ref any, patch Patch, user *domain.User) (DTO, error) {
	var result DTO
	err := s.invoke(ctx, op, hook.CategoryUpdate, user, func(ctx context.Context) error {
		if err := patch.Validate(); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
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
		current, err := s.conv.ToDTO(ctx, d, user)
		if err != nil {
			return convertErr(err, "toDTO")
		}

		patched, err := s.applyPatch(current, patch)
		if err != nil {
			return err
		}
		if err := s.validate(patched); err != nil {
			return err
		}

		out, err := s.update(ctx, op, []DTO{patched}, []DTO{current}, user)
		if len(out) == 1 {
			result = out[0]
		}
		return err
	})
	return result, err
}

func (s *Service[ID, D, DTO, Q]) EditMany(ctx context.Context, c criteria.Criteria, patch Patch, user *domain.User) ([]DTO, error) {
	var result []DTO
	err := s.invoke(ctx, "editMany", hook.CategoryUpdate, user, func(ctx context.Context) error {
		if err := patch.Validate(); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
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
		if len(items) == 0 {
			result = []DTO{}
			return nil
		}
		current, err := convertAll(ctx, s.conv, items, user)
		if err != nil {
			return convertErr(err, "toDTO")
		}

		patched := make([]DTO, len(current))
		for i, dto := range current {
			if patched[i], err = s.applyPatch(dto, patch); err != nil {
				return err
			}
		}
		if err := s.validate(patched...); err != nil {
			return err
		}

		out, err := s.update(ctx, "editMany", patched, current, user)
		result = out
		return err
	})
	return result, err
}

// applyPatch 基于 current 的 JSON 表示应用补丁，结果解码为新的 DTO 并保留原标识
func (s *Service[ID, D, DTO, Q]) applyPatch(current DTO, patch Patch) (DTO, error) {
	var zero DTO
	original, err := json.Marshal(current)
	if err != nil {
		return zero, errors.WrapError(err, errors.ErrCodeInternal, "编码当前对象失败")
	}
	doc, err := patch.Apply(original)
	if err != nil {
		return zero, err
	}

	next := s.newDTO()
	if err := json.Unmarshal(doc, &next); err != nil {
		return zero, errors.WrapError(err, errors.ErrCodeValidation, "补丁结果与对象结构不符")
	}
	next.SetID(current.GetID())
	return next, nil
}
