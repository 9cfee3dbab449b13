package sql

import (
	"fmt"
	"strings"

	"crudflow/criteria"
	"crudflow/data/db/dialect"
	"crudflow/errors"
)

// ColumnResolver 将条件字段映射为列名；未知字段返回 false
type ColumnResolver func(field string) (string, bool)

var comparisons = map[criteria.Operator]string{
	criteria.OpEq:  "=",
	criteria.OpNe:  "<>",
	criteria.OpGt:  ">",
	criteria.OpGte: ">=",
	criteria.OpLt:  "<",
	criteria.OpLte: "<=",
}

// likeEscape 在 sqlite、postgres、mysql 的字符串字面量中均无特殊含义
const likeEscape = "!"

var likeReplacer = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// EscapeLike 转义 LIKE 通配符
func EscapeLike(s string) string { return likeReplacer.Replace(s) }

// Compile 将 criteria 翻译为 AND 连接的 WHERE 片段与参数。
//
// like 为不区分大小写的包含匹配，值中的 % 与 _ 按字面匹配；in 空列表恒假，not_in 空列表恒真。
// 未知字段返回 INVALID_INPUT。
func Compile(d dialect.Dialect, c criteria.Criteria, resolve ColumnResolver) (string, []any, error) {
	if c.IsEmpty() {
		return "", nil, nil
	}
	parts := make([]string, 0, c.Len())
	var args []any
	for _, cond := range c.Conditions() {
		col, ok := resolve(cond.Field)
		if !ok || !IsSafeIdentifier(col) {
			return "", nil, errors.NewBadRequest("不支持的查询字段: %s", cond.Field)
		}
		col = d.QuoteIdentifier(col)

		switch cond.Op {
		case criteria.OpLike:
			parts = append(parts, "LOWER("+col+") LIKE ? ESCAPE '"+likeEscape+"'")
			args = append(args, "%"+EscapeLike(strings.ToLower(fmt.Sprint(cond.Value)))+"%")
		case criteria.OpIn, criteria.OpNotIn:
			values, _ := cond.Value.([]any)
			if len(values) == 0 {
				if cond.Op == criteria.OpIn {
					parts = append(parts, "1 = 0")
				}
				continue
			}
			op := "IN"
			if cond.Op == criteria.OpNotIn {
				op = "NOT IN"
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			parts = append(parts, col+" "+op+" ("+placeholders+")")
			args = append(args, values...)
		case criteria.OpIsNull:
			if isNull, _ := cond.Value.(bool); isNull {
				parts = append(parts, col+" IS NULL")
			} else {
				parts = append(parts, col+" IS NOT NULL")
			}
		default:
			op, ok := comparisons[cond.Op]
			if !ok {
				return "", nil, errors.NewBadRequest("不支持的操作符: %s", cond.Op)
			}
			parts = append(parts, col+" "+op+" ?")
			args = append(args, cond.Value)
		}
	}
	return strings.Join(parts, " AND "), args, nil
}
