package rest

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crudflow/auth"
	"crudflow/errors"
	"crudflow/logging"
	msgmw "crudflow/messaging/middleware"
)

const (
	// HeaderRequestID 请求 ID 头
	HeaderRequestID = "X-Request-ID"

	requestIDKey = "request_id"
	loggerKey    = "crudflow.logger"
)

// RequestID 为每个请求分配 ID，并作为关联 ID 写入请求 context，
// 使 after 钩子发布的消息带上相同的 correlation_id。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Request = c.Request.WithContext(msgmw.WithCorrelationID(c.Request.Context(), rid))
		c.Next()
	}
}

// RequestIDFrom 读取请求 ID
func RequestIDFrom(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(requestIDKey)
}

// Logger 记录请求日志；5xx 为 Error，4xx 为 Warn，其余为 Info
func Logger(logger logging.Logger) gin.HandlerFunc {
	logger = logging.ComponentLogger(logger, "http")
	return func(c *gin.Context) {
		c.Set(loggerKey, logger)
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := append(logFields(c, status), logging.Duration("latency", time.Since(start)))
		ctx := c.Request.Context()
		switch {
		case status >= 500:
			logger.Error(ctx, "http request", fields...)
		case status >= 400:
			logger.Warn(ctx, "http request", fields...)
		default:
			logger.Info(ctx, "http request", fields...)
		}
	}
}

func loggerFrom(c *gin.Context) logging.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(logging.Logger); ok {
			return l
		}
	}
	return logging.ComponentLogger(nil, "http")
}

func logFields(c *gin.Context, status int) []logging.Field {
	return []logging.Field{
		logging.String("request_id", RequestIDFrom(c)),
		logging.String("method", c.Request.Method),
		logging.String("path", c.Request.URL.Path),
		logging.Int("status", status),
		logging.String("ip", c.ClientIP()),
	}
}

// Authenticate 解析 Bearer 令牌并把用户写入请求 context。
//
// a 为 nil 时不做认证。required 为 false 时允许匿名请求通过，
// 由服务层拦截器决定是否放行。
func Authenticate(a *auth.Authenticator, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			c.Next()
			return
		}
		user, err := a.ParseHeader(c.GetHeader("Authorization"))
		if err != nil {
			respondError(c, err, nil)
			return
		}
		if user == nil && required {
			respondError(c, errors.NewUnauthorized("缺少令牌"), nil)
			return
		}
		c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), user))
		c.Next()
	}
}

// CORS 跨域配置；origins 为空时允许所有来源
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	cfg.AddAllowHeaders("Authorization", HeaderRequestID)
	cfg.AddExposeHeaders(HeaderRequestID)
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}
