// Package store 定义仓储实现共用的查询对象。
package store

import (
	"strconv"
	"strings"

	"crudflow/criteria"
	"crudflow/domain"
)

// Query 筛选条件加可选分页，memory 与 sqlstore 仓储共用
type Query struct {
	Criteria criteria.Criteria
	Page     *domain.PageRequest
}

// CacheKey 由条件与分页参数组成的稳定键
func (q Query) CacheKey() string {
	key := q.Criteria.Key()
	if q.Page == nil {
		return key
	}
	var sb strings.Builder
	sb.WriteString(key)
	sb.WriteString("#p=")
	sb.WriteString(strconv.Itoa(q.Page.Page))
	sb.WriteString(",s=")
	sb.WriteString(strconv.Itoa(q.Page.Size))
	for _, s := range q.Page.Sort {
		sb.WriteString(",")
		if s.Desc {
			sb.WriteString("-")
		}
		sb.WriteString(s.Field)
	}
	return sb.String()
}
