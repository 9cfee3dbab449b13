// Package sqlstore 基于 data/db 抽象的 crud.IRepository 实现，支持 sqlite、postgres、mysql。
package sqlstore

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"crudflow/criteria"
	"crudflow/crud"
	core "crudflow/data/db"
	"crudflow/data/db/dialect"
	dbsql "crudflow/data/db/sql"
	"crudflow/domain"
	"crudflow/errors"
	"crudflow/logging"
	"crudflow/store"
)

// Query SQL 仓储的查询对象
type Query = store.Query

// Mapping 描述对象与表的映射
type Mapping[ID comparable, D domain.IObject[ID]] struct {
	Table string
	// IDColumn 主键列，默认 id
	IDColumn string
	// Columns 除主键外的列，Values 与 Scan 按此顺序
	Columns []string
	// Values 返回 Columns 对应的取值
	Values func(d D) []any
	// Scan 按 IDColumn、Columns 的顺序读取一行
	Scan func(row core.IRow) (D, error)
	// Fields 条件字段到列名的映射；未列出的字段若与列同名则直接使用
	Fields map[string]string
}

// Options 仓储可选项
type Options[ID comparable, D domain.IObject[ID]] struct {
	// NextID 为零值标识分配新标识，通常接 snowflake
	NextID   func() (ID, error)
	AssignID func(d D, id ID) D
	// Scope 按调用者追加约束
	Scope  func(user *domain.User) criteria.Criteria
	Logger logging.Logger
	// DeleteBatchSize 每条 DELETE 携带的标识数，默认 DefaultDeleteBatchSize
	DeleteBatchSize int
}

// Repository SQL 仓储
type Repository[ID comparable, D domain.IObject[ID]] struct {
	db      core.IDatabase
	sql     dbsql.ISql
	dialect dialect.Dialect
	m       Mapping[ID, D]
	opts    Options[ID, D]
	columns map[string]string
	logger  logging.Logger
}

var _ crud.IRepository[int64, domain.IObject[int64], Query] = (*Repository[int64, domain.IObject[int64]])(nil)

// New 创建仓储；映射不合法时 panic
func New[ID comparable, D domain.IObject[ID]](database core.IDatabase, m Mapping[ID, D], opts Options[ID, D]) *Repository[ID, D] {
	if m.IDColumn == "" {
		m.IDColumn = criteria.IDField
	}
	if !dbsql.IsSafeIdentifier(m.Table) {
		panic("sqlstore: unsafe table name " + m.Table)
	}
	if m.Values == nil || m.Scan == nil {
		panic("sqlstore: Mapping.Values and Mapping.Scan are required")
	}

	columns := map[string]string{criteria.IDField: m.IDColumn, m.IDColumn: m.IDColumn}
	for _, c := range m.Columns {
		if !dbsql.IsSafeIdentifier(c) {
			panic("sqlstore: unsafe column name " + c)
		}
		columns[c] = c
	}
	for field, col := range m.Fields {
		columns[field] = col
	}

	return &Repository[ID, D]{
		db:      database,
		sql:     dbsql.New(database),
		dialect: dialect.FromDatabase(database),
		m:       m,
		opts:    opts,
		columns: columns,
		logger:  logging.ComponentLogger(opts.Logger, "sqlstore").WithFields(logging.String("table", m.Table)),
	}
}

func (r *Repository[ID, D]) resolve(field string) (string, bool) {
	col, ok := r.columns[field]
	return col, ok
}

func (r *Repository[ID, D]) allColumns() []string {
	return append([]string{r.m.IDColumn}, r.m.Columns...)
}

func (r *Repository[ID, D]) GenerateQuery(ctx context.Context, user *domain.User) (Query, error) {
	return Query{}, ctx.Err()
}

func (r *Repository[ID, D]) GeneratePageQuery(ctx context.Context, page domain.PageRequest, user *domain.User) (Query, error) {
	for _, s := range page.Sort {
		if _, ok := r.resolve(s.Field); !ok {
			return Query{}, errors.NewBadRequest("不支持的排序字段: %s", s.Field)
		}
	}
	return Query{Page: &page}, ctx.Err()
}

func (r *Repository[ID, D]) ApplyCriteria(ctx context.Context, q Query, c criteria.Criteria, user *domain.User) (Query, error) {
	q.Criteria = q.Criteria.Merge(c)
	if r.opts.Scope != nil {
		q.Criteria = q.Criteria.Merge(r.opts.Scope(user))
	}
	return q, nil
}

// where 将条件编译进 SELECT 构建器
func (r *Repository[ID, D]) where(c criteria.Criteria) (string, []any, error) {
	return dbsql.Compile(r.dialect, c, r.resolve)
}

func (r *Repository[ID, D]) selectBy(q Query) (dbsql.ISelectBuilder, error) {
	where, args, err := r.where(q.Criteria)
	if err != nil {
		return nil, err
	}
	b := r.sql.Select(r.allColumns()...).From(r.m.Table).Where(where, args...)
	if q.Page != nil {
		for _, s := range q.Page.Sort {
			col, _ := r.resolve(s.Field)
			b.OrderBy(col, s.Desc)
		}
	}
	return b.OrderBy(r.m.IDColumn, false), nil
}

func (r *Repository[ID, D]) Count(ctx context.Context, q Query) (int64, error) {
	where, args, err := r.where(q.Criteria)
	if err != nil {
		return 0, err
	}
	query, args := r.sql.Select("COUNT(*)").From(r.m.Table).Where(where, args...).Build()
	r.trace(ctx, query)

	var n int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.WrapDbError(ctx, err, "统计失败")
	}
	return n, nil
}

func (r *Repository[ID, D]) GetOne(ctx context.Context, q Query) (D, bool, error) {
	var zero D
	q.Page = nil
	b, err := r.selectBy(q)
	if err != nil {
		return zero, false, err
	}
	items, err := r.collect(ctx, b.Limit(1))
	if err != nil {
		return zero, false, err
	}
	if len(items) == 0 {
		return zero, false, nil
	}
	return items[0], true, nil
}

func (r *Repository[ID, D]) GetMany(ctx context.Context, q Query) ([]D, error) {
	q.Page = nil
	b, err := r.selectBy(q)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, b)
}

func (r *Repository[ID, D]) GetPage(ctx context.Context, q Query) ([]D, int64, error) {
	total, err := r.Count(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	b, err := r.selectBy(q)
	if err != nil {
		return nil, 0, err
	}
	if q.Page != nil {
		b.Limit(q.Page.Size).Offset(q.Page.Offset())
	}
	items, err := r.collect(ctx, b)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Repository[ID, D]) GetStream(ctx context.Context, q Query) (crud.Stream[D], error) {
	q.Page = nil
	b, err := r.selectBy(q)
	if err != nil {
		return nil, err
	}
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, err
	}
	return &rowStream[D]{rows: rows, scan: r.m.Scan}, nil
}

func (r *Repository[ID, D]) query(ctx context.Context, b dbsql.ISelectBuilder) (core.IRows, error) {
	query, args := b.Build()
	r.trace(ctx, query)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapDbError(ctx, err, "查询失败")
	}
	return rows, nil
}

func (r *Repository[ID, D]) collect(ctx context.Context, b dbsql.ISelectBuilder) ([]D, error) {
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]D, 0)
	for rows.Next() {
		d, err := r.m.Scan(rows)
		if err != nil {
			return nil, errors.WrapDbError(ctx, err, "读取行失败")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapDbError(ctx, err, "遍历结果失败")
	}
	return out, nil
}

func (r *Repository[ID, D]) Save(ctx context.Context, d D, user *domain.User) (D, error) {
	saved, err := r.SaveMany(ctx, []D{d}, user)
	if err != nil {
		var zero D
		return zero, err
	}
	return saved[0], nil
}

// SaveMany 在同一事务中插入，任一失败则全部回滚
func (r *Repository[ID, D]) SaveMany(ctx context.Context, ds []D, user *domain.User) ([]D, error) {
	out := make([]D, len(ds))
	for i, d := range ds {
		if domain.IsZeroID(d.GetID()) {
			if r.opts.NextID == nil || r.opts.AssignID == nil {
				return nil, errors.NewBadRequest("对象缺少标识且未配置标识生成器")
			}
			id, err := r.opts.NextID()
			if err != nil {
				return nil, err
			}
			d = r.opts.AssignID(d, id)
		}
		out[i] = d
	}

	err := core.InTx(ctx, r.db, func(tx core.ITransaction) error {
		b := dbsql.New(tx).InsertInto(r.m.Table).Columns(r.allColumns()...)
		for _, d := range out {
			b.Values(append([]any{d.GetID()}, r.m.Values(d)...)...)
		}
		query, args := b.Build()
		r.trace(ctx, query)
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return r.writeErr(ctx, err, "插入失败")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update 按主键整行更新；目标不存在返回 NOT_FOUND
func (r *Repository[ID, D]) Update(ctx context.Context, d D, user *domain.User) (D, error) {
	if err := r.updateRow(ctx, r.db, d); err != nil {
		var zero D
		return zero, err
	}
	return d, nil
}

// UpdateMany 在同一事务中逐行更新，任一失败则全部回滚
func (r *Repository[ID, D]) UpdateMany(ctx context.Context, ds []D, user *domain.User) ([]D, error) {
	err := core.InTx(ctx, r.db, func(tx core.ITransaction) error {
		for _, d := range ds {
			if err := r.updateRow(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return append([]D(nil), ds...), nil
}

func (r *Repository[ID, D]) updateRow(ctx context.Context, db core.IDatabase, d D) error {
	b := dbsql.New(db).Update(r.m.Table)
	for i, v := range r.m.Values(d) {
		b.Set(r.m.Columns[i], v)
	}
	idCol := r.dialect.QuoteIdentifier(r.m.IDColumn)
	query, args := b.Where(idCol+" = ?", d.GetID()).Build()
	r.trace(ctx, query)

	res, err := db.Exec(ctx, query, args...)
	if err != nil {
		return r.writeErr(ctx, err, "更新失败")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL 对未变化的行返回 0，需再确认是否存在
		query, args := dbsql.New(db).Select("COUNT(*)").From(r.m.Table).Where(idCol+" = ?", d.GetID()).Build()
		r.trace(ctx, query)
		var exists int64
		if err := db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
			return errors.WrapDbError(ctx, err, "统计失败")
		}
		if exists == 0 {
			return errors.WrapError(errors.ErrEntityNotFound, errors.ErrCodeNotFound,
				fmt.Sprintf("更新目标不存在: %v", d.GetID()))
		}
	}
	return nil
}

// DefaultDeleteBatchSize 单条 DELETE 的 IN 列表上限，低于各方言的参数个数限制
const DefaultDeleteBatchSize = 500

func (r *Repository[ID, D]) deleteBatch() int {
	if r.opts.DeleteBatchSize > 0 {
		return r.opts.DeleteBatchSize
	}
	return DefaultDeleteBatchSize
}

// Delete 在事务中先查出命中的标识再按标识分批删除，返回被删除的标识
func (r *Repository[ID, D]) Delete(ctx context.Context, q Query) ([]ID, error) {
	where, args, err := r.where(q.Criteria)
	if err != nil {
		return nil, err
	}

	var ids []ID
	err = core.InTx(ctx, r.db, func(tx core.ITransaction) error {
		s := dbsql.New(tx)
		query, qargs := s.Select(r.m.IDColumn).From(r.m.Table).Where(where, args...).
			OrderBy(r.m.IDColumn, false).Build()
		r.trace(ctx, query)
		rows, err := tx.Query(ctx, query, qargs...)
		if err != nil {
			return errors.WrapDbError(ctx, err, "查询待删除标识失败")
		}
		for rows.Next() {
			var id ID
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return errors.WrapDbError(ctx, err, "读取标识失败")
			}
			ids = append(ids, id)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return errors.WrapDbError(ctx, err, "遍历标识失败")
		}
		if len(ids) == 0 {
			return nil
		}

		for batch := range slices.Chunk(ids, r.deleteBatch()) {
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(batch)), ", ")
			idArgs := make([]any, len(batch))
			for i, id := range batch {
				idArgs[i] = id
			}
			del, dargs := s.DeleteFrom(r.m.Table).
				Where(r.dialect.QuoteIdentifier(r.m.IDColumn)+" IN ("+placeholders+")", idArgs...).Build()
			r.trace(ctx, del)
			if _, err := tx.Exec(ctx, del, dargs...); err != nil {
				return errors.WrapDbError(ctx, err, "删除失败")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []ID{}
	}
	return ids, nil
}

func (r *Repository[ID, D]) writeErr(ctx context.Context, err error, msg string) error {
	if r.dialect.IsUniqueViolation(err) {
		return errors.WrapError(errors.Join(errors.ErrDuplicateKey, err), errors.ErrCodeDuplicate, msg+": 唯一键冲突")
	}
	return errors.WrapDbError(ctx, err, msg)
}

func (r *Repository[ID, D]) trace(ctx context.Context, query string) {
	r.logger.Debug(ctx, "sql", logging.String("query", query))
}
