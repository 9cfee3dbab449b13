package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.Events.Transport)
	assert.False(t, cfg.Auth.Enabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CRUDFLOW_PORT", "9090")
	t.Setenv("CRUDFLOW_DB_DRIVER", "pgx")
	t.Setenv("CRUDFLOW_DB_DSN", "postgres://u:p@localhost:5432/app")
	t.Setenv("CRUDFLOW_EVENTS_TRANSPORT", "nats")
	t.Setenv("CRUDFLOW_JWT_SECRET", "s3cret")
	t.Setenv("CRUDFLOW_CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@localhost:5432/app", cfg.Database.DSN)
	assert.Equal(t, "nats", cfg.Events.Transport)
	assert.True(t, cfg.Auth.Enabled())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"未知驱动", "CRUDFLOW_DB_DRIVER", "oracle"},
		{"未知传输", "CRUDFLOW_EVENTS_TRANSPORT", "kafka"},
		{"端口越界", "CRUDFLOW_PORT", "70000"},
		{"端口非数字", "CRUDFLOW_PORT", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
