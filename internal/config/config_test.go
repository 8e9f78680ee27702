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

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.Equal(t, int32(5), cfg.Database.MinConns)
	assert.Equal(t, time.Hour, cfg.Database.MaxConnLifetime)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "indifarm", cfg.JWT.Issuer)
	assert.False(t, cfg.Mail.NotifyNewProduct)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("SERVER_READ_TIMEOUT", "30s")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("DB_MAX_CONNS", "50")
	t.Setenv("DB_MAX_CONN_LIFETIME", "2h")
	t.Setenv("FEATURE_EMAIL_NEW_PRODUCT", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://indifarm.example, https://admin.indifarm.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, int32(50), cfg.Database.MaxConns)
	assert.Equal(t, 2*time.Hour, cfg.Database.MaxConnLifetime)
	assert.True(t, cfg.Mail.NotifyNewProduct)
	assert.Equal(t, []string{"https://indifarm.example", "https://admin.indifarm.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("API_PORT", "not-a-number")
	t.Setenv("REDIS_ENABLED", "maybe")
	t.Setenv("SERVER_READ_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestValidate_ProductionRequiresJWTSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "a-real-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "a-real-secret", cfg.JWT.Secret)
}
