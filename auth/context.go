package auth

import (
	"context"

	"crudflow/domain"
)

type userKey struct{}

// WithUser 将用户放入 context
func WithUser(ctx context.Context, user *domain.User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom 取出 context 中的用户，未设置返回 nil
func UserFrom(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey{}).(*domain.User)
	return user
}
