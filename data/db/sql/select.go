package sql

import (
	"context"
	"strings"

	core "crudflow/data/db"
	"crudflow/data/db/dialect"
)

type selectBuilder struct {
	db      core.IDatabase
	dialect dialect.Dialect

	cols   []string
	table  string
	where  []string
	args   []any
	order  []string
	limit  int
	offset int
}

func (b *selectBuilder) From(table string) ISelectBuilder {
	b.table = table
	return b
}

func (b *selectBuilder) Where(cond string, args ...any) ISelectBuilder {
	if cond != "" {
		b.where = append(b.where, cond)
		b.args = append(b.args, args...)
	}
	return b
}

// OrderBy 可多次调用，按调用顺序排序
func (b *selectBuilder) OrderBy(column string, desc bool) ISelectBuilder {
	if column == "" {
		return b
	}
	expr := quote(b.dialect, "order column", column)
	if desc {
		expr += " DESC"
	}
	b.order = append(b.order, expr)
	return b
}

func (b *selectBuilder) Limit(n int) ISelectBuilder {
	b.limit = n
	return b
}

func (b *selectBuilder) Offset(n int) ISelectBuilder {
	b.offset = n
	return b
}

func (b *selectBuilder) Build() (string, []any) {
	cols := b.cols
	if len(cols) == 0 {
		cols = []string{"*"}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(quoteAll(b.dialect, "column", cols), ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(quote(b.dialect, "table", b.table))

	args := make([]any, 0, len(b.args)+2)
	args = append(args, b.args...)
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if len(b.order) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.order, ", "))
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, b.limit)
	}
	if b.offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, b.offset)
	}
	return sb.String(), args
}

func (b *selectBuilder) Query(ctx context.Context) (core.IRows, error) {
	q, args := b.Build()
	return b.db.Query(ctx, q, args...)
}

func (b *selectBuilder) QueryRow(ctx context.Context) core.IRow {
	q, args := b.Build()
	return b.db.QueryRow(ctx, q, args...)
}
