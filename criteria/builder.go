package criteria

import (
	"sort"
	"strings"

	"crudflow/errors"
)

// Builder 以显式方法构建 Criteria
type Builder struct {
	conds []Condition
}

// NewBuilder 创建新的条件构建器
func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) add(field string, op Operator, value any) *Builder {
	if field == "" {
		return b
	}
	b.conds = append(b.conds, normalize(Condition{Field: field, Op: op, Value: value}))
	return b
}

func (b *Builder) Eq(field string, value any) *Builder  { return b.add(field, OpEq, value) }
func (b *Builder) Ne(field string, value any) *Builder  { return b.add(field, OpNe, value) }
func (b *Builder) Gt(field string, value any) *Builder  { return b.add(field, OpGt, value) }
func (b *Builder) Gte(field string, value any) *Builder { return b.add(field, OpGte, value) }
func (b *Builder) Lt(field string, value any) *Builder  { return b.add(field, OpLt, value) }
func (b *Builder) Lte(field string, value any) *Builder { return b.add(field, OpLte, value) }

// Like 模糊匹配，对应 SQL: field LIKE '%value%'
func (b *Builder) Like(field, value string) *Builder { return b.add(field, OpLike, value) }

// In values 可为任意切片
func (b *Builder) In(field string, values any) *Builder { return b.add(field, OpIn, values) }

func (b *Builder) NotIn(field string, values any) *Builder { return b.add(field, OpNotIn, values) }

// IsNull isNull 为 false 时表示 IS NOT NULL
func (b *Builder) IsNull(field string, isNull bool) *Builder {
	return b.add(field, OpIsNull, isNull)
}

// Build 返回不可变的 Criteria
func (b *Builder) Build() Criteria {
	return New(b.conds...)
}

// 后缀按长度从长到短匹配，保证 _not_in 先于 _in
var suffixes = []struct {
	suffix string
	op     Operator
}{
	{"_not_in", OpNotIn},
	{"_is_null", OpIsNull},
	{"_like", OpLike},
	{"_gte", OpGte},
	{"_lte", OpLte},
	{"_gt", OpGt},
	{"_lt", OpLt},
	{"_ne", OpNe},
	{"_in", OpIn},
}

// FromFilters 解析后缀约定的过滤参数（name_like=foo、age_gt=3、id_in=1,2）。
//
// allowed 非空时只接受白名单字段，其它字段返回 INVALID_INPUT。
// 键按字典序处理，结果稳定。
func FromFilters(filters map[string]string, allowed ...string) (Criteria, error) {
	if len(filters) == 0 {
		return Empty(), nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := NewBuilder()
	for _, key := range keys {
		value := filters[key]
		field, op := splitKey(key)
		if !IsSafeField(field) || !fieldAllowed(field, allowed) {
			return Criteria{}, errors.NewBadRequest("不允许的筛选字段: %q", field)
		}
		switch op {
		case OpIn, OpNotIn:
			b.add(field, op, splitComma(value))
		case OpIsNull:
			b.add(field, op, value == "" || strings.EqualFold(value, "true") || value == "1")
		default:
			b.add(field, op, value)
		}
	}
	return b.Build(), nil
}

func splitKey(key string) (string, Operator) {
	for _, s := range suffixes {
		if strings.HasSuffix(key, s.suffix) && len(key) > len(s.suffix) {
			return strings.TrimSuffix(key, s.suffix), s.op
		}
	}
	return key, OpEq
}

func fieldAllowed(field string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == field {
			return true
		}
	}
	return false
}

func splitComma(value string) []any {
	if value == "" {
		return []any{}
	}
	parts := strings.Split(value, ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
