// Package sql 提供按方言生成语句的轻量 SQL 构建器。
//
// 表名与列名经 isSafeIdentifier 校验后按方言引用，取值一律以 ? 参数传递，
// 执行时由 IDatabase 实现按方言改写占位符。
package sql

import (
	"context"
	"database/sql"

	core "crudflow/data/db"
	"crudflow/data/db/dialect"
)

// ISql 统一的 SQL 构建入口
type ISql interface {
	Select(columns ...string) ISelectBuilder
	InsertInto(table string) IInsertBuilder
	Update(table string) IUpdateBuilder
	DeleteFrom(table string) IDeleteBuilder
	Dialect() dialect.Dialect
}

// ISelectBuilder 构建 SELECT 语句
type ISelectBuilder interface {
	From(table string) ISelectBuilder
	Where(cond string, args ...any) ISelectBuilder
	OrderBy(column string, desc bool) ISelectBuilder
	Limit(n int) ISelectBuilder
	Offset(n int) ISelectBuilder
	Build() (query string, args []any)
	Query(ctx context.Context) (core.IRows, error)
	QueryRow(ctx context.Context) core.IRow
}

// IInsertBuilder 构建 INSERT 语句
type IInsertBuilder interface {
	Columns(cols ...string) IInsertBuilder
	Values(vals ...any) IInsertBuilder
	Returning(col string) IInsertBuilder
	Build() (query string, args []any)
	Exec(ctx context.Context) (sql.Result, error)
	QueryRow(ctx context.Context) core.IRow
}

// IUpdateBuilder 构建 UPDATE 语句
type IUpdateBuilder interface {
	Set(column string, val any) IUpdateBuilder
	Where(cond string, args ...any) IUpdateBuilder
	Build() (query string, args []any)
	Exec(ctx context.Context) (sql.Result, error)
}

// IDeleteBuilder 构建 DELETE 语句
type IDeleteBuilder interface {
	Where(cond string, args ...any) IDeleteBuilder
	Build() (query string, args []any)
	Exec(ctx context.Context) (sql.Result, error)
}

type sqlImpl struct {
	db      core.IDatabase
	dialect dialect.Dialect
}

// New 创建绑定到 db 的构建器，方言由 db 推断
func New(db core.IDatabase) ISql {
	return &sqlImpl{db: db, dialect: dialect.FromDatabase(db)}
}

func (s *sqlImpl) Dialect() dialect.Dialect { return s.dialect }

func (s *sqlImpl) Select(columns ...string) ISelectBuilder {
	return &selectBuilder{db: s.db, dialect: s.dialect, cols: columns}
}

func (s *sqlImpl) InsertInto(table string) IInsertBuilder {
	return &insertBuilder{db: s.db, dialect: s.dialect, table: table}
}

func (s *sqlImpl) Update(table string) IUpdateBuilder {
	return &updateBuilder{mutation: s.mutation(table)}
}

func (s *sqlImpl) DeleteFrom(table string) IDeleteBuilder {
	return &deleteBuilder{mutation: s.mutation(table)}
}

func (s *sqlImpl) mutation(table string) mutation {
	return mutation{db: s.db, dialect: s.dialect, table: table}
}

// quoteAll 校验并引用标识符列表，非法标识符 panic
func quoteAll(d dialect.Dialect, kind string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(d, kind, n)
	}
	return out
}

func quote(d dialect.Dialect, kind, name string) string {
	if name == "*" || name == "COUNT(*)" {
		return name
	}
	if !IsSafeIdentifier(name) {
		panic("sql: unsafe " + kind + " name " + name)
	}
	return d.QuoteIdentifier(name)
}
