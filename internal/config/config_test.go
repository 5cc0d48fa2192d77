package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "none", cfg.Events.Driver)
	assert.Equal(t, 1024, cfg.Notify.QueueSize)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CONFIG_PATH", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte("database:\n  driver: memory\nevents:\n  driver: kafka\nnotify:\n  queue_size: 16\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "kafka", cfg.Events.Driver)
	assert.Equal(t, 16, cfg.Notify.QueueSize)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestValidateRejectsUnknownDrivers(t *testing.T) {
	cfg := &Config{
		Auth:     AuthConfig{JWTSecret: "x"},
		Database: DatabaseConfig{Driver: "mysql"},
		Events:   EventsConfig{Driver: "none"},
		Notify:   NotifyConfig{QueueSize: 1},
	}
	assert.Error(t, cfg.Validate())

	cfg.Database.Driver = "memory"
	cfg.Events.Driver = "nats"
	assert.Error(t, cfg.Validate())

	cfg.Events.Driver = "rabbitmq"
	assert.NoError(t, cfg.Validate())
}
