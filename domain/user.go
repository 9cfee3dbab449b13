package domain

import "slices"

// User 调用方身份。
//
// 所有 CRUD 操作都接收 *User，nil 表示匿名/未认证调用；
// 方法均对 nil 接收者安全。
type User struct {
	ID     string   `json:"id"`
	Name   string   `json:"name,omitempty"`
	Tenant string   `json:"tenant,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// Anonymous 是否为匿名调用
func (u *User) Anonymous() bool { return u == nil || u.ID == "" }

// HasRole 是否拥有角色
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, role)
}

// HasScope 是否拥有授权范围；"*" 视为全部
func (u *User) HasScope(scope string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Scopes, scope) || slices.Contains(u.Scopes, "*")
}

// TenantID 返回租户，nil 用户返回空串
func (u *User) TenantID() string {
	if u == nil {
		return ""
	}
	return u.Tenant
}

// UserID 返回用户标识，nil 用户返回空串
func (u *User) UserID() string {
	if u == nil {
		return ""
	}
	return u.ID
}
