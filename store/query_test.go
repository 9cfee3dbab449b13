package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"crudflow/criteria"
	"crudflow/domain"
)

func TestQuery_CacheKey(t *testing.T) {
	assert.Equal(t, "*", Query{}.CacheKey())

	byID := Query{Criteria: criteria.ByID(int64(3))}
	assert.Equal(t, "id|eq|int64:3", byID.CacheKey())

	page := domain.NewPageRequest(2, 10, domain.Sort{Field: "title", Desc: true}, domain.Sort{Field: "id"})
	paged := Query{Criteria: criteria.Empty(), Page: &page}
	assert.Equal(t, "*#p=2,s=10,-title,id", paged.CacheKey())

	// 不同取值类型产生不同键
	assert.NotEqual(t,
		Query{Criteria: criteria.ByID(int64(3))}.CacheKey(),
		Query{Criteria: criteria.ByID("3")}.CacheKey())
}
