package auth

import (
	"context"
	"strings"

	"crudflow/crud"
	"crudflow/domain"
	"crudflow/errors"
)

// ScopeFunc 计算一次调用所需的授权范围；返回空表示允许匿名调用
type ScopeFunc func(call crud.Call) []string

// EntityScope 默认范围 "<entity>:<category>"，如 note:get
func EntityScope(call crud.Call) []string {
	return []string{call.Entity + ":" + string(call.Category)}
}

// Scopes 对所有调用要求固定范围
func Scopes(scopes ...string) ScopeFunc {
	return func(crud.Call) []string { return scopes }
}

// RequireScopes 要求调用方拥有 fn 给出的全部范围。
//
// 匿名调用返回 UNAUTHORIZED，缺少范围返回 FORBIDDEN。
// fn 为 nil 时使用 EntityScope。
func RequireScopes(fn ScopeFunc) crud.Interceptor {
	if fn == nil {
		fn = EntityScope
	}
	return func(ctx context.Context, call crud.Call, next crud.Handler) error {
		required := fn(call)
		if len(required) == 0 {
			return next(ctx)
		}
		if call.User.Anonymous() {
			return errors.NewUnauthorized("需要登录").
				WithContext("operation", call.Entity+"."+call.Operation)
		}
		for _, scope := range required {
			if !Granted(call.User, scope) {
				return errors.NewForbidden("缺少授权范围 " + scope).
					WithContext("scope", scope).
					WithContext("user", call.User.ID)
			}
		}
		return next(ctx)
	}
}

// RequireUser 只要求已登录
func RequireUser() crud.Interceptor {
	return func(ctx context.Context, call crud.Call, next crud.Handler) error {
		if call.User.Anonymous() {
			return errors.NewUnauthorized("需要登录")
		}
		return next(ctx)
	}
}

// Granted 判断用户是否拥有范围；支持 "*" 与 "<entity>:*"
func Granted(user *domain.User, scope string) bool {
	if user.HasScope(scope) {
		return true
	}
	if entity, _, ok := strings.Cut(scope, ":"); ok {
		return user.HasScope(entity + ":*")
	}
	return false
}
