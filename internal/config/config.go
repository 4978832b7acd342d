// Package config provides the runtime defaults, file and environment loading,
// and validation for the ichat service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// AuthConfig configures token verification.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	Issuer         string        `yaml:"issuer"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	AllowAnonymous bool          `yaml:"allow_anonymous"`
}

// PresenceConfig configures the presence sweep.
type PresenceConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	IdleAfter     time.Duration `yaml:"idle_after"`
	AwayAfter     time.Duration `yaml:"away_after"`
	ManualTTL     time.Duration `yaml:"manual_ttl"`
}

// FilesConfig configures uploaded file storage.
type FilesConfig struct {
	UploadDir     string  `yaml:"upload_dir"`
	MaxUploadSize int64   `yaml:"max_upload_size"`
	UploadRPS     float64 `yaml:"upload_rps"`
	UploadBurst   int     `yaml:"upload_burst"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port             string          `yaml:"port"`
	AllowedOrigins   []string        `yaml:"allowed_origins"`
	MaxMessageSize   int64           `yaml:"max_message_size"`
	RateLimit        RateLimitConfig `yaml:"rate_limit"`
	RoomHistoryLimit int             `yaml:"room_history_limit"`
	ShutdownTimeout  time.Duration   `yaml:"shutdown_timeout"`
	Auth             AuthConfig      `yaml:"auth"`
	Presence         PresenceConfig  `yaml:"presence"`
	Files            FilesConfig     `yaml:"files"`
	Log              LogConfig       `yaml:"log"`
}

// Default returns a Config populated with default values for all settings.
func Default() *Config {
	return &Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		RoomHistoryLimit: 50,
		ShutdownTimeout:  30 * time.Second,
		Auth: AuthConfig{
			Issuer:         "ichat",
			TokenTTL:       24 * time.Hour,
			AllowAnonymous: true,
		},
		Presence: PresenceConfig{
			SweepInterval: time.Minute,
			IdleAfter:     10 * time.Minute,
			AwayAfter:     30 * time.Minute,
			ManualTTL:     30 * time.Minute,
		},
		Files: FilesConfig{
			UploadDir:     "uploads",
			MaxUploadSize: 10 << 20,
			UploadRPS:     1,
			UploadBurst:   10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Sanitize replaces unusable values with defaults and normalizes the rest.
func (c *Config) Sanitize() {
	d := Default()

	if c.Port == "" {
		c.Port = d.Port
	}
	if !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = d.RateLimit.Burst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = d.RateLimit.RefillInterval
	}
	if c.RoomHistoryLimit <= 0 {
		c.RoomHistoryLimit = d.RoomHistoryLimit
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = d.Auth.TokenTTL
	}
	if c.Presence.SweepInterval <= 0 {
		c.Presence.SweepInterval = d.Presence.SweepInterval
	}
	if c.Presence.IdleAfter <= 0 {
		c.Presence.IdleAfter = d.Presence.IdleAfter
	}
	if c.Presence.AwayAfter <= c.Presence.IdleAfter {
		c.Presence.AwayAfter = 3 * c.Presence.IdleAfter
	}
	if c.Presence.ManualTTL <= 0 {
		c.Presence.ManualTTL = d.Presence.ManualTTL
	}
	if c.Files.UploadDir == "" {
		c.Files.UploadDir = d.Files.UploadDir
	}
	if c.Files.MaxUploadSize <= 0 {
		c.Files.MaxUploadSize = d.Files.MaxUploadSize
	}
	if c.Files.UploadRPS <= 0 {
		c.Files.UploadRPS = d.Files.UploadRPS
	}
	if c.Files.UploadBurst <= 0 {
		c.Files.UploadBurst = d.Files.UploadBurst
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}

	origins := c.AllowedOrigins[:0:0]
	for _, origin := range c.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.AllowedOrigins = origins
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret (JWT_SECRET) must be set")
	}
	return nil
}

// LoadFile overlays the YAML file at path onto c. A missing file is not an error.
func (c *Config) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto c. Unparseable values are ignored.
func (c *Config) ApplyEnv() {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		c.MaxMessageSize = parseInt64(maxSize, c.MaxMessageSize)
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		c.RateLimit.Burst = parseIntValue(burst, c.RateLimit.Burst)
	}
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		c.RateLimit.RefillInterval = parseSeconds(interval, c.RateLimit.RefillInterval)
	}
	if limit := os.Getenv("ROOM_HISTORY_LIMIT"); limit != "" {
		c.RoomHistoryLimit = parseIntValue(limit, c.RoomHistoryLimit)
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		c.Auth.Issuer = issuer
	}
	if anon := os.Getenv("ALLOW_ANONYMOUS"); anon != "" {
		if v, err := strconv.ParseBool(anon); err == nil {
			c.Auth.AllowAnonymous = v
		}
	}

	if v := os.Getenv("PRESENCE_SWEEP_INTERVAL"); v != "" {
		c.Presence.SweepInterval = parseDuration(v, c.Presence.SweepInterval)
	}
	if v := os.Getenv("PRESENCE_IDLE_AFTER"); v != "" {
		c.Presence.IdleAfter = parseDuration(v, c.Presence.IdleAfter)
	}
	if v := os.Getenv("PRESENCE_AWAY_AFTER"); v != "" {
		c.Presence.AwayAfter = parseDuration(v, c.Presence.AwayAfter)
	}
	if v := os.Getenv("PRESENCE_MANUAL_TTL"); v != "" {
		c.Presence.ManualTTL = parseDuration(v, c.Presence.ManualTTL)
	}

	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		c.Files.UploadDir = dir
	}
	if size := os.Getenv("MAX_UPLOAD_SIZE"); size != "" {
		c.Files.MaxUploadSize = parseInt64(size, c.Files.MaxUploadSize)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}
}

// Load builds a sanitized Config from defaults, the optional YAML file and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.Sanitize()
	return cfg, nil
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseInt64(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseSeconds accepts a bare number of seconds or a Go duration string.
func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return parseDuration(value, defaultValue)
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
