// Package criteria 描述 CRUD 操作的筛选条件。
//
// Criteria 是按 AND 组合的条件列表，与具体存储无关：
// 仓储在 ApplyCriteria 中把它翻译为自己的查询（SQL WHERE、内存过滤等）。
// 空 Criteria 表示匹配全部；ByID/ByIDs 是按标识匹配的规范形式。
package criteria

import (
	"fmt"
	"reflect"
	"strings"

	"crudflow/errors"
)

// IDField 标识字段名
const IDField = "id"

// Operator 比较运算符
type Operator string

const (
	OpEq     Operator = "eq"
	OpNe     Operator = "ne"
	OpGt     Operator = "gt"
	OpGte    Operator = "gte"
	OpLt     Operator = "lt"
	OpLte    Operator = "lte"
	OpLike   Operator = "like"
	OpIn     Operator = "in"
	OpNotIn  Operator = "not_in"
	OpIsNull Operator = "is_null"
)

// Valid 是否为已知运算符
func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpLike, OpIn, OpNotIn, OpIsNull:
		return true
	}
	return false
}

// Condition 单个条件。OpIn/OpNotIn 的 Value 为 []any；OpIsNull 的 Value 为 bool（true 表示 IS NULL）
type Condition struct {
	Field string   `json:"field"`
	Op    Operator `json:"op"`
	Value any      `json:"value,omitempty"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// Criteria 不可变的条件集合
type Criteria struct {
	conditions []Condition
}

// Empty 匹配全部
func Empty() Criteria { return Criteria{} }

// New 由条件构造
func New(conds ...Condition) Criteria {
	if len(conds) == 0 {
		return Criteria{}
	}
	out := make([]Condition, len(conds))
	for i, c := range conds {
		out[i] = normalize(c)
	}
	return Criteria{conditions: out}
}

// ByID 按单个标识匹配
func ByID[ID comparable](id ID) Criteria {
	return Criteria{conditions: []Condition{{Field: IDField, Op: OpEq, Value: id}}}
}

// ByIDs 按标识集合匹配；空集合匹配不到任何记录
func ByIDs[ID comparable](ids []ID) Criteria {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return Criteria{conditions: []Condition{{Field: IDField, Op: OpIn, Value: values}}}
}

// Conditions 返回条件副本
func (c Criteria) Conditions() []Condition {
	return append([]Condition(nil), c.conditions...)
}

// IsEmpty 是否匹配全部
func (c Criteria) IsEmpty() bool { return len(c.conditions) == 0 }

// Len 条件个数
func (c Criteria) Len() int { return len(c.conditions) }

// And 追加条件，返回新 Criteria
func (c Criteria) And(conds ...Condition) Criteria {
	out := make([]Condition, 0, len(c.conditions)+len(conds))
	out = append(out, c.conditions...)
	for _, cond := range conds {
		out = append(out, normalize(cond))
	}
	return Criteria{conditions: out}
}

// Merge 合并两个 Criteria（AND）
func (c Criteria) Merge(other Criteria) Criteria {
	return c.And(other.conditions...)
}

// IDs 若 Criteria 仅按标识匹配，返回标识列表
func (c Criteria) IDs() ([]any, bool) {
	if len(c.conditions) != 1 || c.conditions[0].Field != IDField {
		return nil, false
	}
	cond := c.conditions[0]
	switch cond.Op {
	case OpEq:
		return []any{cond.Value}, true
	case OpIn:
		values, _ := cond.Value.([]any)
		return values, true
	}
	return nil, false
}

// Validate 检查字段名与运算符，失败返回 INVALID_INPUT
func (c Criteria) Validate() error {
	for _, cond := range c.conditions {
		if !IsSafeField(cond.Field) {
			return errors.NewBadRequest("非法的筛选字段: %q", cond.Field)
		}
		if !cond.Op.Valid() {
			return errors.NewBadRequest("不支持的运算符: %q", cond.Op)
		}
		switch cond.Op {
		case OpIn, OpNotIn:
			if _, ok := cond.Value.([]any); !ok {
				return errors.NewBadRequest("%s 的 %s 条件需要列表值", cond.Field, cond.Op)
			}
		case OpIsNull:
			if _, ok := cond.Value.(bool); !ok {
				return errors.NewBadRequest("%s 的 is_null 条件需要布尔值", cond.Field)
			}
		case OpLike:
			if _, ok := cond.Value.(string); !ok {
				return errors.NewBadRequest("%s 的 like 条件需要字符串", cond.Field)
			}
		default:
			if cond.Value == nil {
				return errors.NewBadRequest("%s 的 %s 条件缺少值", cond.Field, cond.Op)
			}
		}
	}
	return nil
}

// Key 返回稳定的字符串表示，用作缓存键
func (c Criteria) Key() string {
	if len(c.conditions) == 0 {
		return "*"
	}
	parts := make([]string, len(c.conditions))
	for i, cond := range c.conditions {
		parts[i] = fmt.Sprintf("%s|%s|%s", cond.Field, cond.Op, valueKey(cond.Value))
	}
	return strings.Join(parts, "&")
}

func (c Criteria) String() string {
	if len(c.conditions) == 0 {
		return "<all>"
	}
	parts := make([]string, len(c.conditions))
	for i, cond := range c.conditions {
		parts[i] = cond.String()
	}
	return strings.Join(parts, " AND ")
}

func valueKey(v any) string {
	if list, ok := v.([]any); ok {
		items := make([]string, len(list))
		for i, item := range list {
			items[i] = valueKey(item)
		}
		return "[" + strings.Join(items, ",") + "]"
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// normalize 把任意切片形式的 in/not_in 值转成 []any
func normalize(c Condition) Condition {
	if c.Op != OpIn && c.Op != OpNotIn {
		return c
	}
	if _, ok := c.Value.([]any); ok {
		return c
	}
	rv := reflect.ValueOf(c.Value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return c
	}
	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	c.Value = values
	return c
}

// IsSafeField 字段名是否为安全标识符：首字符为字母或下划线，其后为字母、数字、下划线，允许点分段
func IsSafeField(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			ch := part[i]
			alpha := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
			digit := ch >= '0' && ch <= '9'
			if i == 0 && !alpha {
				return false
			}
			if !alpha && !digit {
				return false
			}
		}
	}
	return true
}
