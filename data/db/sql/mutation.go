package sql

import (
	"context"
	"database/sql"
	"strings"

	core "crudflow/data/db"
	"crudflow/data/db/dialect"
)

// conditions AND 连接的 WHERE 片段，UPDATE 与 DELETE 共用
type conditions struct {
	exprs []string
	args  []any
}

func (c *conditions) add(cond string, args []any) {
	if cond == "" {
		return
	}
	c.exprs = append(c.exprs, cond)
	c.args = append(c.args, args...)
}

func (c *conditions) writeTo(sb *strings.Builder) []any {
	if len(c.exprs) == 0 {
		return nil
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(c.exprs, " AND "))
	return c.args
}

type mutation struct {
	db      core.IDatabase
	dialect dialect.Dialect
	table   string
	where   conditions
}

func (m *mutation) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	return m.db.Exec(ctx, query, args...)
}

type updateBuilder struct {
	mutation
	cols []string
	vals []any
}

func (b *updateBuilder) Set(col string, val any) IUpdateBuilder {
	if col != "" {
		b.cols = append(b.cols, col)
		b.vals = append(b.vals, val)
	}
	return b
}

func (b *updateBuilder) Where(cond string, args ...any) IUpdateBuilder {
	b.where.add(cond, args)
	return b
}

// Build 没有任何 Set 列时 panic
func (b *updateBuilder) Build() (string, []any) {
	if len(b.cols) == 0 {
		panic("sql: update " + b.table + " without columns")
	}
	assignments := quoteAll(b.dialect, "column", b.cols)
	for i := range assignments {
		assignments[i] += " = ?"
	}

	var sb strings.Builder
	sb.WriteString("UPDATE " + quote(b.dialect, "table", b.table) + " SET " + strings.Join(assignments, ", "))
	args := append([]any(nil), b.vals...)
	args = append(args, b.where.writeTo(&sb)...)
	return sb.String(), args
}

func (b *updateBuilder) Exec(ctx context.Context) (sql.Result, error) {
	q, args := b.Build()
	return b.exec(ctx, q, args)
}

type deleteBuilder struct {
	mutation
}

func (b *deleteBuilder) Where(cond string, args ...any) IDeleteBuilder {
	b.where.add(cond, args)
	return b
}

func (b *deleteBuilder) Build() (string, []any) {
	var sb strings.Builder
	sb.WriteString("DELETE FROM " + quote(b.dialect, "table", b.table))
	args := append([]any(nil), b.where.writeTo(&sb)...)
	return sb.String(), args
}

func (b *deleteBuilder) Exec(ctx context.Context) (sql.Result, error) {
	q, args := b.Build()
	return b.exec(ctx, q, args)
}
