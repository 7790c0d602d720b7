package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("JWT_SECRET", "secret")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "memory", cfg.Broker.Backend)
	assert.Equal(t, "none", cfg.Storage.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("BROKER_BACKEND", "RabbitMQ")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("PUBLIC_URL", "https://practice.example/")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, 90*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "rabbitmq", cfg.Broker.Backend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "https://practice.example", cfg.PublicURL)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	base := LoadConfig()

	t.Run("missing secret", func(t *testing.T) {
		cfg := base
		cfg.Auth.JWTSecret = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := base
		cfg.ServerPort = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown broker", func(t *testing.T) {
		cfg := base
		cfg.Broker.Backend = "kafka"
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown storage", func(t *testing.T) {
		cfg := base
		cfg.Storage.Backend = "s3"
		assert.Error(t, cfg.Validate())
	})
}
