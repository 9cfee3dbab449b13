package criteria

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// FieldSource 提供按字段名取值的能力，用于内存求值
type FieldSource interface {
	Field(name string) (any, bool)
}

// MapSource 以 map 作为字段来源
type MapSource map[string]any

func (m MapSource) Field(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Match 判断 src 是否满足全部条件。未知字段视为不匹配（is_null 视为 NULL）。
func Match(src FieldSource, c Criteria) bool {
	for _, cond := range c.conditions {
		if !matchOne(src, cond) {
			return false
		}
	}
	return true
}

func matchOne(src FieldSource, cond Condition) bool {
	actual, ok := src.Field(cond.Field)
	if cond.Op == OpIsNull {
		isNull := !ok || actual == nil
		want, _ := cond.Value.(bool)
		return isNull == want
	}
	if !ok || actual == nil {
		return false
	}

	switch cond.Op {
	case OpEq:
		return compare(actual, cond.Value) == 0
	case OpNe:
		return compare(actual, cond.Value) != 0
	case OpGt:
		return compare(actual, cond.Value) > 0
	case OpGte:
		return compare(actual, cond.Value) >= 0
	case OpLt:
		r := compare(actual, cond.Value)
		return r < 0 && r != incomparable
	case OpLte:
		r := compare(actual, cond.Value)
		return r <= 0 && r != incomparable
	case OpLike:
		pattern, _ := cond.Value.(string)
		return strings.Contains(strings.ToLower(fmt.Sprint(actual)), strings.ToLower(pattern))
	case OpIn, OpNotIn:
		values, _ := cond.Value.([]any)
		found := false
		for _, v := range values {
			if compare(actual, v) == 0 {
				found = true
				break
			}
		}
		return found == (cond.Op == OpIn)
	}
	return false
}

const incomparable = -2

// compare 比较两个值：整数精确比较，其余数值按 float64，时间按时间先后，其余按字符串。
// 一侧为字符串时尝试按另一侧类型解析。
func compare(a, b any) int {
	if an, ok := toNumber(a); ok {
		if bn, ok := toNumber(b); ok {
			return an.cmp(bn)
		}
		return incomparable
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := toTime(b)
		if !ok {
			return incomparable
		}
		return at.Compare(bt)
	}
	if ab, ok := a.(bool); ok {
		bb, ok := toBool(b)
		if !ok {
			return incomparable
		}
		if ab == bb {
			return 0
		}
		return incomparable
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// number 整数保存在 i 中（精确），非整数保存在 f 中
type number struct {
	i     *big.Int
	f     float64
	isInt bool
}

func (n number) cmp(o number) int {
	if n.isInt && o.isInt {
		return n.i.Cmp(o.i)
	}
	return n.float().Cmp(o.float())
}

func (n number) float() *big.Float {
	if n.isInt {
		return new(big.Float).SetInt(n.i)
	}
	return big.NewFloat(n.f)
}

func intNumber(v int64) number   { return number{i: big.NewInt(v), isInt: true} }
func uintNumber(v uint64) number { return number{i: new(big.Int).SetUint64(v), isInt: true} }

func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case int:
		return intNumber(int64(n)), true
	case int8:
		return intNumber(int64(n)), true
	case int16:
		return intNumber(int64(n)), true
	case int32:
		return intNumber(int64(n)), true
	case int64:
		return intNumber(n), true
	case uint:
		return uintNumber(uint64(n)), true
	case uint8:
		return uintNumber(uint64(n)), true
	case uint16:
		return uintNumber(uint64(n)), true
	case uint32:
		return uintNumber(uint64(n)), true
	case uint64:
		return uintNumber(n), true
	case float32:
		return floatNumber(float64(n))
	case float64:
		return floatNumber(n)
	case json.Number:
		return parseNumber(string(n))
	case string:
		return parseNumber(strings.TrimSpace(n))
	}
	return number{}, false
}

func floatNumber(f float64) (number, bool) {
	if math.IsNaN(f) {
		return number{}, false
	}
	return number{f: f}, true
}

func parseNumber(s string) (number, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return intNumber(i), true
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return uintNumber(u), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return number{}, false
	}
	return floatNumber(f)
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	}
	return false, false
}

// Compare 比较两个字段值，返回 -1/0/1；无法比较的值按字符串比较
func Compare(a, b any) int {
	if r := compare(a, b); r != incomparable {
		return r
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// JSONSource 以值的 JSON 表示作为字段来源，字段名取 json 标签；数值保留为 json.Number
func JSONSource(v any) FieldSource {
	raw, err := json.Marshal(v)
	if err != nil {
		return MapSource{}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return MapSource{}
	}
	return MapSource(m)
}
