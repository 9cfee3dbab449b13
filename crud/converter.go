package crud

import (
	"context"

	"crudflow/domain"
)

// IConverter 领域对象与 DTO 之间的转换
type IConverter[D any, DTO any] interface {
	ToDTO(ctx context.Context, d D, user *domain.User) (DTO, error)
	ToDomain(ctx context.Context, dto DTO, user *domain.User) (D, error)
}

// ConverterFuncs 函数式转换器
type ConverterFuncs[D any, DTO any] struct {
	ToDTOFn    func(ctx context.Context, d D, user *domain.User) (DTO, error)
	ToDomainFn func(ctx context.Context, dto DTO, user *domain.User) (D, error)
}

func (c ConverterFuncs[D, DTO]) ToDTO(ctx context.Context, d D, user *domain.User) (DTO, error) {
	return c.ToDTOFn(ctx, d, user)
}

func (c ConverterFuncs[D, DTO]) ToDomain(ctx context.Context, dto DTO, user *domain.User) (D, error) {
	return c.ToDomainFn(ctx, dto, user)
}

// SimpleConverter 由不依赖上下文的两个函数构造转换器
func SimpleConverter[D any, DTO any](toDTO func(D) DTO, toDomain func(DTO) D) IConverter[D, DTO] {
	return ConverterFuncs[D, DTO]{
		ToDTOFn: func(_ context.Context, d D, _ *domain.User) (DTO, error) {
			return toDTO(d), nil
		},
		ToDomainFn: func(_ context.Context, dto DTO, _ *domain.User) (D, error) {
			return toDomain(dto), nil
		},
	}
}

// Identity 领域对象即 DTO 时使用
func Identity[T any]() IConverter[T, T] {
	id := func(v T) T { return v }
	return SimpleConverter(id, id)
}

func convertAll[D any, DTO any](ctx context.Context, conv IConverter[D, DTO], items []D, user *domain.User) ([]DTO, error) {
	out := make([]DTO, 0, len(items))
	for _, item := range items {
		dto, err := conv.ToDTO(ctx, item, user)
		if err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, nil
}

func toDomainAll[D any, DTO any](ctx context.Context, conv IConverter[D, DTO], dtos []DTO, user *domain.User) ([]D, error) {
	out := make([]D, 0, len(dtos))
	for _, dto := range dtos {
		d, err := conv.ToDomain(ctx, dto, user)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
