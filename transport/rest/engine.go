package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crudflow/auth"
	"crudflow/errors"
	"crudflow/logging"
)

// EngineOptions gin 引擎配置
type EngineOptions struct {
	Name   string
	Logger logging.Logger
	// Auth 为 nil 时不解析令牌
	Auth         *auth.Authenticator
	AuthRequired bool
	// AllowOrigins 为空时允许所有来源
	AllowOrigins []string
}

// NewEngine 创建带标准中间件的 gin 引擎：
// RequestID → Logger → Recovery → CORS → Authenticate。
// 附带 GET /health 与 JSON 格式的 404。
func NewEngine(opts EngineOptions) *gin.Engine {
	r := gin.New()
	r.Use(
		RequestID(),
		Logger(opts.Logger),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			respondError(c, errors.Errorf(errors.ErrCodeInternal, "panic: %v", recovered), nil)
		}),
		CORS(opts.AllowOrigins),
	)

	name := opts.Name
	if name == "" {
		name = "crudflow"
	}
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": name})
	})

	r.Use(Authenticate(opts.Auth, opts.AuthRequired))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "route not found",
			Code:      string(errors.ErrCodeNotFound),
			RequestID: RequestIDFrom(c),
		})
	})
	return r
}
