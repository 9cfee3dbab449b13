// Package auth 将 JWT 令牌解析为 *domain.User，并提供按授权范围校验的拦截器。
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"crudflow/config"
	"crudflow/domain"
	"crudflow/errors"
)

// DefaultTTL 令牌默认有效期
const DefaultTTL = 24 * time.Hour

// Claims 令牌声明，sub 为用户 ID
type Claims struct {
	Name   string   `json:"name,omitempty"`
	Tenant string   `json:"tenant,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// User 转换为调用方身份
func (c *Claims) User() *domain.User {
	return &domain.User{
		ID:     c.Subject,
		Name:   c.Name,
		Tenant: c.Tenant,
		Roles:  append([]string(nil), c.Roles...),
		Scopes: append([]string(nil), c.Scopes...),
	}
}

// Authenticator HS256 令牌签发与校验
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option 配置 Authenticator
type Option func(*Authenticator)

// WithTTL 设置签发令牌的有效期
func WithTTL(ttl time.Duration) Option {
	return func(a *Authenticator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithClock 替换时间源，测试用
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// New 创建 Authenticator，secret 不能为空
func New(secret, issuer string, opts ...Option) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.NewBadRequest("JWT 密钥不能为空")
	}
	a := &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// FromConfig 按配置创建；未配置密钥时返回 nil, nil
func FromConfig(cfg config.AuthConfig, opts ...Option) (*Authenticator, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	return New(cfg.JWTSecret, cfg.Issuer, opts...)
}

// Issue 为用户签发令牌
func (a *Authenticator) Issue(user *domain.User) (string, error) {
	if user.Anonymous() {
		return "", errors.NewBadRequest("不能为匿名用户签发令牌")
	}
	now := a.now()
	claims := &Claims{
		Name:   user.Name,
		Tenant: user.Tenant,
		Roles:  user.Roles,
		Scopes: user.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", errors.WrapError(err, errors.ErrCodeInternal, "签发令牌失败")
	}
	return signed, nil
}

// Parse 校验令牌并返回用户；任何失败均为 UNAUTHORIZED
func (a *Authenticator) Parse(token string) (*domain.User, error) {
	if token == "" {
		return nil, errors.NewUnauthorized("缺少令牌")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeUnauthorized, "令牌无效")
	}
	if claims.Subject == "" {
		return nil, errors.NewUnauthorized("令牌缺少 sub")
	}
	return claims.User(), nil
}

// ParseHeader 解析 Authorization 头，只接受 Bearer 方案。
// 空头返回 nil, nil。
func (a *Authenticator) ParseHeader(header string) (*domain.User, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, errors.NewUnauthorized("不支持的认证方案")
	}
	return a.Parse(strings.TrimSpace(token))
}
