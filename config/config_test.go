package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "  s3cret  ")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, AvatarBackendDB, cfg.Avatar.Backend)
	assert.Equal(t, MQBackendNone, cfg.MQ.Backend)
	assert.Equal(t, "account-notifications", cfg.MQ.Channel)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("AVATAR_BACKEND", "MinIO")
	t.Setenv("MQ_BACKEND", "rabbitmq")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("SESSION_CACHE_TTL", "30s")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, AvatarBackendMinio, cfg.Avatar.Backend)
	assert.Equal(t, MQBackendRabbitMQ, cfg.MQ.Backend)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
}
