package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault tests that the default configuration carries the documented values.
func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, 50, cfg.RoomHistoryLimit)
	assert.Equal(t, time.Minute, cfg.Presence.SweepInterval)
	assert.Equal(t, 10*time.Minute, cfg.Presence.IdleAfter)
	assert.Equal(t, 30*time.Minute, cfg.Presence.AwayAfter)
	assert.Equal(t, 30*time.Minute, cfg.Presence.ManualTTL)
	assert.Equal(t, int64(10<<20), cfg.Files.MaxUploadSize)
}

// TestApplyEnv tests that environment variables override defaults and that
// invalid values are ignored.
func TestApplyEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("MAX_MESSAGE_SIZE", "-1")
	t.Setenv("RATE_LIMIT_BURST", "12")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "3")
	t.Setenv("JWT_SECRET", "topsecret")
	t.Setenv("ALLOW_ANONYMOUS", "false")
	t.Setenv("PRESENCE_IDLE_AFTER", "2m")
	t.Setenv("PRESENCE_AWAY_AFTER", "nonsense")

	cfg := Default()
	cfg.ApplyEnv()
	cfg.Sanitize()

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 12, cfg.RateLimit.Burst)
	assert.Equal(t, 3*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "topsecret", cfg.Auth.JWTSecret)
	assert.False(t, cfg.Auth.AllowAnonymous)
	assert.Equal(t, 2*time.Minute, cfg.Presence.IdleAfter)
	assert.Equal(t, 30*time.Minute, cfg.Presence.AwayAfter)
	require.NoError(t, cfg.Validate())
}

// TestLoadFile tests YAML loading and precedence of the environment over the file.
func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ichat.yaml")
	content := `
port: ":7000"
room_history_limit: 20
auth:
  jwt_secret: from-file
presence:
  idle_after: 5m
  away_after: 15m
files:
  upload_dir: /tmp/ichat-uploads
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Port)
	assert.Equal(t, 20, cfg.RoomHistoryLimit)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.Presence.IdleAfter)
	assert.Equal(t, 15*time.Minute, cfg.Presence.AwayAfter)
	assert.Equal(t, "/tmp/ichat-uploads", cfg.Files.UploadDir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// TestLoadMissingFile tests that a missing config file falls back to defaults.
func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Port, cfg.Port)
}

// TestSanitize tests that inconsistent presence thresholds are repaired.
func TestSanitize(t *testing.T) {
	cfg := &Config{Presence: PresenceConfig{IdleAfter: 10 * time.Minute, AwayAfter: time.Minute}}
	cfg.Sanitize()

	assert.Equal(t, 30*time.Minute, cfg.Presence.AwayAfter)
	assert.Equal(t, ":8080", cfg.Port)
	assert.Error(t, cfg.Validate())
}
