// Package config 通过环境变量加载 crudflow 应用配置（kelseyhightower/envconfig）。
//
// 所有变量使用 CRUDFLOW 前缀，例如 CRUDFLOW_DB_DRIVER=postgres、CRUDFLOW_LOG_LEVEL=debug。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix 环境变量前缀
const Prefix = "CRUDFLOW"

// Config 应用配置
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Cache    CacheConfig
	Events   EventsConfig
	Redis    RedisConfig
	Nats     NatsConfig
	Auth     AuthConfig
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	// AllowOrigins 逗号分隔；为空时允许所有来源
	AllowOrigins []string `envconfig:"CORS_ORIGINS"`
	// NodeID snowflake 节点号，多实例部署时需各不相同
	NodeID int64 `envconfig:"NODE_ID" default:"1"`
}

// Addr 返回 host:port
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Driver: sqlite | pgx | postgres | mysql
	Driver          string        `envconfig:"DB_DRIVER" default:"sqlite"`
	DSN             string        `envconfig:"DB_DSN" default:"file:crudflow.db?_pragma=busy_timeout(5000)"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"1m"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// CacheConfig 仓储查询缓存
type CacheConfig struct {
	Enabled bool          `envconfig:"CACHE_ENABLED" default:"true"`
	Size    int           `envconfig:"CACHE_SIZE" default:"1024"`
	TTL     time.Duration `envconfig:"CACHE_TTL" default:"30s"`
}

// EventsConfig after 钩子事件发布
type EventsConfig struct {
	// Transport: none | memory | sync | nats | redis；sync 在请求内同步投递
	Transport   string        `envconfig:"EVENTS_TRANSPORT" default:"memory"`
	Retries     int           `envconfig:"EVENTS_RETRIES" default:"3"`
	RetryDelay  time.Duration `envconfig:"EVENTS_RETRY_DELAY" default:"100ms"`
	WorkerCount int           `envconfig:"EVENTS_WORKERS" default:"4"`
	QueueSize   int           `envconfig:"EVENTS_QUEUE_SIZE" default:"256"`
}

// RedisConfig Redis Streams 传输
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Stream   string `envconfig:"REDIS_STREAM" default:"crudflow-events"`
	Group    string `envconfig:"REDIS_GROUP" default:"crudflow"`
}

// NatsConfig NATS JetStream 传输
type NatsConfig struct {
	URL           string `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	Stream        string `envconfig:"NATS_STREAM" default:"CRUDFLOW"`
	SubjectPrefix string `envconfig:"NATS_SUBJECT_PREFIX" default:"crudflow.events"`
	Queue         string `envconfig:"NATS_QUEUE" default:"crudflow"`
}

// AuthConfig JWT 认证
type AuthConfig struct {
	// JWTSecret 为空时不启用认证
	JWTSecret string `envconfig:"JWT_SECRET"`
	Issuer    string `envconfig:"JWT_ISSUER" default:"crudflow"`
	// Required 为 true 时缺少令牌的请求被拒绝
	Required bool `envconfig:"AUTH_REQUIRED" default:"false"`
}

// Enabled 是否启用 JWT 认证
func (c AuthConfig) Enabled() bool { return c.JWTSecret != "" }

// Load 从环境变量读取配置。
//
// 各段单独 Process，使变量名保持扁平（CRUDFLOW_PORT 而非 CRUDFLOW_SERVER_PORT）。
func Load() (*Config, error) {
	var cfg Config
	sections := []struct {
		name   string
		target any
	}{
		{"server", &cfg.Server},
		{"database", &cfg.Database},
		{"log", &cfg.Log},
		{"cache", &cfg.Cache},
		{"events", &cfg.Events},
		{"redis", &cfg.Redis},
		{"nats", &cfg.Nats},
		{"auth", &cfg.Auth},
	}
	for _, s := range sections {
		if err := envconfig.Process(Prefix, s.target); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad 加载失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "pgx", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch strings.ToLower(c.Events.Transport) {
	case "none", "memory", "sync", "nats", "redis":
	default:
		return fmt.Errorf("unsupported events transport %q", c.Events.Transport)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
