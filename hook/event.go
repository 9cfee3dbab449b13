// Package hook 实现 CRUD 生命周期的 before/after 钩子分发（BeforeAfterComponent）。
//
// 扩展分两级：
//   - IExtension：通用扩展，对所有实体生效，事件载荷为 any；
//   - IDomainExtension：领域扩展，绑定具体的 ID/DTO 类型。
//
// 每个阶段的执行顺序固定：先通用扩展（按注册顺序），后领域扩展（按传入顺序）；
// 首个失败即中止后续扩展。
package hook

import (
	"crudflow/criteria"
	"crudflow/domain"
)

// Category 钩子类别；getOne/getMany/getStream/getPage 共享 Get，update/edit 共享 Update
type Category string

const (
	CategoryCount  Category = "count"
	CategoryGet    Category = "get"
	CategorySave   Category = "save"
	CategoryUpdate Category = "update"
	CategoryDelete Category = "delete"
)

// Categories 全部类别
var Categories = []Category{CategoryCount, CategoryGet, CategorySave, CategoryUpdate, CategoryDelete}

// Phase 钩子阶段
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

// TypedEvent 领域扩展收到的事件。
//
// 各类别使用的字段（after 事件中有 Result 时 IDs 为其标识）：
//   - Count：Criteria；after 时 Count
//   - Get：Criteria、Page；after 时 Result（流式读取为 IDs）
//   - Save：Input；after 时 Result
//   - Update：Input（edit 为补丁应用后的 DTO）；after 时 Previous 与 Result
//   - Delete：Criteria；after 时 IDs
type TypedEvent[ID comparable, DTO any] struct {
	Entity    string
	Category  Category
	Phase     Phase
	Operation string
	User      *domain.User
	Criteria  criteria.Criteria
	Page      *domain.PageRequest

	Input    []DTO
	Previous []DTO
	Result   []DTO
	IDs      []ID
	Count    int64
}

// Event 通用扩展收到的事件，载荷以 any 承载
type Event struct {
	Entity    string
	Category  Category
	Phase     Phase
	Operation string
	User      *domain.User
	Criteria  criteria.Criteria
	Page      *domain.PageRequest

	Input    []any
	Previous []any
	Result   []any
	IDs      []any
	Count    int64
}

// Generic 转换为通用事件
func (e *TypedEvent[ID, DTO]) Generic() *Event {
	return &Event{
		Entity:    e.Entity,
		Category:  e.Category,
		Phase:     e.Phase,
		Operation: e.Operation,
		User:      e.User,
		Criteria:  e.Criteria,
		Page:      e.Page,
		Input:     toAny(e.Input),
		Previous:  toAny(e.Previous),
		Result:    toAny(e.Result),
		IDs:       toAny(e.IDs),
		Count:     e.Count,
	}
}

// Type 事件类型，形如 note.save
func (e *Event) Type() string {
	return e.Entity + "." + string(e.Category)
}

func toAny[T any](items []T) []any {
	if items == nil {
		return nil
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
