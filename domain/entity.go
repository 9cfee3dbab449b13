// Package domain 定义 CRUD 框架共享的基础类型：对象标识、调用用户与分页。
package domain

// IObject 最基础的对象接口，所有领域实体的根接口。
type IObject[ID comparable] interface {
	// GetID 返回对象的唯一标识
	GetID() ID
}

// IEntityDTO 对外传输对象接口。
//
// DTO 的 ID 在仓储保存后由服务端回填；更新时服务会以路径/旧对象的 ID 覆盖载荷中的 ID。
// 实现通常为指针类型。
type IEntityDTO[ID comparable] interface {
	IObject[ID]

	// SetID 写入标识
	SetID(id ID)
}

// IValidatable 可验证接口。
// DTO 实现此接口时，save/update/edit 在 before 钩子之前调用 Validate。
type IValidatable interface {
	Validate() error
}

// IDs 提取对象标识，保持原有顺序
func IDs[ID comparable, T IObject[ID]](items []T) []ID {
	ids := make([]ID, len(items))
	for i, item := range items {
		ids[i] = item.GetID()
	}
	return ids
}

// IsZeroID 判断 ID 是否为类型零值
func IsZeroID[ID comparable](id ID) bool {
	var zero ID
	return id == zero
}
