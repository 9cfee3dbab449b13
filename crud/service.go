package crud

import (
	"context"
	"reflect"

	"crudflow/criteria"
	"crudflow/domain"
	"crudflow/errors"
	"crudflow/hook"
	"crudflow/logging"
	"crudflow/validation"
)

// Options 服务可选依赖
type Options[ID comparable, DTO any] struct {
	// Registry 通用扩展注册表，可在多个实体服务之间共享
	Registry *hook.Registry
	// Extensions 本实体的领域扩展，在通用扩展之后执行
	Extensions []hook.IDomainExtension[ID, DTO]
	// Validator 载荷校验器；DTO 实现 domain.IValidatable 时还会调用其 Validate
	Validator validation.IValidator
	// Interceptors 按顺序包裹每个操作
	Interceptors []Interceptor
	Logger       logging.Logger
	// NewDTO 创建空 DTO，edit 解码补丁结果时使用；默认按 DTO 类型反射创建
	NewDTO func() DTO
}

// Service 单个实体的 CRUD 编排服务，实现 IService。
//
// Service 构造后不可变，可被并发调用。
type Service[ID comparable, D domain.IObject[ID], DTO domain.IEntityDTO[ID], Q any] struct {
	entity       string
	repo         IRepository[ID, D, Q]
	conv         IConverter[D, DTO]
	hooks        *hook.Component[ID, DTO]
	exts         []hook.IDomainExtension[ID, DTO]
	validator    validation.IValidator
	interceptors []Interceptor
	logger       logging.Logger
	newDTO       func() DTO
}

var _ IService[int64, domain.IEntityDTO[int64]] = (*Service[int64, domain.IObject[int64], domain.IEntityDTO[int64], any])(nil)

// New 创建实体服务
func New[ID comparable, D domain.IObject[ID], DTO domain.IEntityDTO[ID], Q any](
	entity string,
	repo IRepository[ID, D, Q],
	conv IConverter[D, DTO],
	opts Options[ID, DTO],
) *Service[ID, D, DTO, Q] {
	logger := logging.ComponentLogger(opts.Logger, "crud").WithFields(logging.String("entity", entity))
	validator := opts.Validator
	if validator == nil {
		validator = validation.NoopValidator{}
	}
	newDTO := opts.NewDTO
	if newDTO == nil {
		newDTO = reflectDTOFactory[DTO]()
	}
	exts := make([]hook.IDomainExtension[ID, DTO], 0, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		if ext != nil {
			exts = append(exts, ext)
		}
	}
	return &Service[ID, D, DTO, Q]{
		entity:       entity,
		repo:         repo,
		conv:         conv,
		hooks:        hook.NewComponent[ID, DTO](entity, opts.Registry, opts.Logger),
		exts:         exts,
		validator:    validator,
		interceptors: append([]Interceptor(nil), opts.Interceptors...),
		logger:       logger,
		newDTO:       newDTO,
	}
}

// Entity 实体名
func (s *Service[ID, D, DTO, Q]) Entity() string { return s.entity }

// Repository 返回底层仓储
func (s *Service[ID, D, DTO, Q]) Repository() IRepository[ID, D, Q] { return s.repo }

// reflectDTOFactory DTO 为指针类型时分配新值，否则返回零值
func reflectDTOFactory[DTO any]() func() DTO {
	t := reflect.TypeOf((*DTO)(nil)).Elem()
	if t.Kind() == reflect.Pointer {
		elem := t.Elem()
		return func() DTO {
			return reflect.New(elem).Interface().(DTO)
		}
	}
	return func() DTO {
		var zero DTO
		return zero
	}
}

// requireDTOs 拒绝 nil 载荷
func (s *Service[ID, D, DTO, Q]) requireDTOs(dtos ...DTO) error {
	for i, dto := range dtos {
		if isNil(dto) {
			return errors.NewBadRequest("%s 载荷为空 (index %d)", s.entity, i)
		}
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

type hookFn[ID comparable, DTO any] func(context.Context, *hook.TypedEvent[ID, DTO], []hook.IDomainExtension[ID, DTO]) error

// invoke 经拦截器链执行操作体
func (s *Service[ID, D, DTO, Q]) invoke(ctx context.Context, op string, cat hook.Category, user *domain.User, body Handler) error {
	if len(s.interceptors) == 0 {
		return body(ctx)
	}
	call := Call{Entity: s.entity, Operation: op, Category: cat, User: user}
	return chain(s.interceptors, call, body)(ctx)
}

func (s *Service[ID, D, DTO, Q]) before(ctx context.Context, cat hook.Category, fn hookFn[ID, DTO], ev *hook.TypedEvent[ID, DTO]) error {
	return errors.WrapBeforeHook(s.entity, string(cat), fn(ctx, ev, s.exts))
}

// after 钩子失败时记录日志并返回 PostCommitError，调用方仍返回已计算的结果
func (s *Service[ID, D, DTO, Q]) after(ctx context.Context, cat hook.Category, fn hookFn[ID, DTO], ev *hook.TypedEvent[ID, DTO]) error {
	if ev.IDs == nil && len(ev.Result) > 0 {
		ev.IDs = domain.IDs[ID](ev.Result)
	}
	err := fn(ctx, ev, s.exts)
	if err == nil {
		return nil
	}
	s.logger.Error(ctx, "after 钩子失败，变更已提交",
		logging.String("category", string(cat)),
		logging.String("operation", ev.Operation),
		logging.Error(err),
	)
	return errors.NewPostCommit(s.entity, string(cat), err)
}

// query 生成查询并应用筛选条件
func (s *Service[ID, D, DTO, Q]) query(ctx context.Context, c criteria.Criteria, user *domain.User) (Q, error) {
	q, err := s.repo.GenerateQuery(ctx, user)
	if err != nil {
		var zero Q
		return zero, err
	}
	return s.repo.ApplyCriteria(ctx, q, c, user)
}

func (s *Service[ID, D, DTO, Q]) pageQuery(ctx context.Context, c criteria.Criteria, page domain.PageRequest, user *domain.User) (Q, error) {
	q, err := s.repo.GeneratePageQuery(ctx, page, user)
	if err != nil {
		var zero Q
		return zero, err
	}
	return s.repo.ApplyCriteria(ctx, q, c, user)
}

// byIDs id/ids → 规范的按标识筛选条件
func byIDs[ID comparable](ids ...ID) criteria.Criteria {
	if len(ids) == 1 {
		return criteria.ByID(ids[0])
	}
	return criteria.ByIDs(ids)
}

func (s *Service[ID, D, DTO, Q]) validate(dtos ...DTO) error {
	for _, dto := range dtos {
		if err := validation.Run(s.validator, dto); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service[ID, D, DTO, Q]) notFound(id any) error {
	return errors.NewNotFound(s.entity, id)
}

// convertErr 转换失败统一为 INTERNAL_ERROR，已带码的错误原样返回
func convertErr(err error, direction string) error {
	if err == nil || errors.HasCode(err) {
		return err
	}
	return errors.WrapError(err, errors.ErrCodeInternal, "对象转换失败: "+direction)
}
