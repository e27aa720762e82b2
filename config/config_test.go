package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9090")
	t.Setenv("OUTLIERS_BACKEND_DRIVER", "memory")

	cfg, err := Load("outliers")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Backend.Driver)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Second, cfg.Notifications.PollInterval)
	assert.Equal(t, "outliers_", cfg.Backend.TablePrefix)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config"), 0o755))
	yaml := []byte(`
backend:
  driver: memory
auth:
  jwtsecret: from-file
notifications:
  pollinterval: 5s
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "outliers.yaml"), yaml, 0o644))

	cfg, err := Load("outliers")
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Second, cfg.Notifications.PollInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	t.Run("sad path - unknown driver", func(t *testing.T) {
		c := Config{Backend: Backend{Driver: "postgres"}, Auth: Auth{JWTSecret: "x"}, Notifications: Notifications{PollInterval: time.Second}}
		assert.Error(t, c.Validate())
	})
	t.Run("sad path - missing secret", func(t *testing.T) {
		c := Config{Backend: Backend{Driver: "memory"}, Notifications: Notifications{PollInterval: time.Second}}
		assert.Error(t, c.Validate())
	})
	t.Run("happy path", func(t *testing.T) {
		c := Config{Backend: Backend{Driver: "memory"}, Auth: Auth{JWTSecret: "x"}, Notifications: Notifications{PollInterval: time.Second}}
		assert.NoError(t, c.Validate())
	})
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
