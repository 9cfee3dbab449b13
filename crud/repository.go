// Package crud 实现通用 CRUD 编排服务。
//
// 每个操作都遵循同一生命周期：
//
//	规范化输入 → 校验 → before 钩子 → 仓储执行 → 转换 → after 钩子
//
// 服务只负责编排，持久化由 IRepository 实现，DTO/领域对象转换由 IConverter 实现，
// 横切逻辑通过 hook 扩展与 Interceptor 注入。
package crud

import (
	"context"

	"crudflow/criteria"
	"crudflow/domain"
)

// IRepository 仓储契约。
//
// Q 是仓储私有的查询类型，服务只负责在 GenerateQuery/GeneratePageQuery
// 与 ApplyCriteria 之间传递它。ApplyCriteria 也是仓储追加安全约束（例如租户隔离）的位置。
type IRepository[ID comparable, D domain.IObject[ID], Q any] interface {
	// GenerateQuery 生成基础查询
	GenerateQuery(ctx context.Context, user *domain.User) (Q, error)

	// GeneratePageQuery 生成带分页/排序的查询
	GeneratePageQuery(ctx context.Context, page domain.PageRequest, user *domain.User) (Q, error)

	// ApplyCriteria 将筛选条件与调用者约束合并进查询
	ApplyCriteria(ctx context.Context, q Q, c criteria.Criteria, user *domain.User) (Q, error)

	Count(ctx context.Context, q Q) (int64, error)

	// GetOne 未命中时返回 found=false，不返回错误
	GetOne(ctx context.Context, q Q) (D, bool, error)

	GetMany(ctx context.Context, q Q) ([]D, error)

	// GetPage 返回当前页数据与满足条件的总数
	GetPage(ctx context.Context, q Q) ([]D, int64, error)

	GetStream(ctx context.Context, q Q) (Stream[D], error)

	// Save 持久化新对象并返回带服务端标识的结果
	Save(ctx context.Context, d D, user *domain.User) (D, error)

	SaveMany(ctx context.Context, ds []D, user *domain.User) ([]D, error)

	Update(ctx context.Context, d D, user *domain.User) (D, error)

	// UpdateMany 全部成功或全部不写入，任一目标不存在时返回 NOT_FOUND
	UpdateMany(ctx context.Context, ds []D, user *domain.User) ([]D, error)

	// Delete 删除匹配的对象并返回被删除的标识
	Delete(ctx context.Context, q Q) ([]ID, error)
}
