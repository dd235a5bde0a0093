package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
	"github.com/joho/godotenv"
	"github.com/tphan267/xui-hub/pkg/utils"
	"go.yaml.in/yaml/v3"
)

const (
	defaultServerAddr    = ":3000"
	defaultTokenTTL      = "24h"
	defaultRemoteTimeout = "10s"
	defaultAdminUser     = "admin"
	defaultAdminPassword = "admin123"
	jwtSecretLength      = 48
)

// Config holds the application configuration
type Config struct {
	DBPath     string `yaml:"db_path"`
	ServerAddr string `yaml:"server_addr"`
	LogLevel   string `yaml:"log_level"`
	JWTSecret  string `yaml:"jwt_secret"` // HMAC key for dashboard bearer tokens (generated if empty)
	TokenTTL   string `yaml:"token_ttl"`  // Go duration, e.g. "24h"

	Admin  AdminConfig  `yaml:"admin"`
	Remote RemoteConfig `yaml:"remote"`

	Version string `yaml:"-"`

	mu   sync.Mutex `yaml:"-"`
	file string     `yaml:"-"`
}

// AdminConfig holds the credential seeded into an empty admin table
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RemoteConfig controls how remote panels are reached
type RemoteConfig struct {
	Timeout string `yaml:"timeout"`
	// VerifyTLS enables certificate checks for https panels. Off by default
	// because panels are usually deployed with self-signed certificates.
	VerifyTLS bool `yaml:"verify_tls"`
	// SessionCookies lists the cookie name prefixes accepted as a panel session.
	SessionCookies []string `yaml:"session_cookies"`
	// SessionCacheTTL enables reuse of panel sessions for the given duration. Empty or "0" disables it.
	SessionCacheTTL   string      `yaml:"session_cache_ttl"`
	FanoutConcurrency int         `yaml:"fanout_concurrency"` // 0 = unbounded
	Paths             RemotePaths `yaml:"paths"`
}

// RemotePaths overrides the panel API paths. Empty fields keep the built-in defaults.
// Inbound paths may contain "{id}".
type RemotePaths struct {
	Login         string `yaml:"login,omitempty"`
	Status        string `yaml:"status,omitempty"`
	ListInbounds  string `yaml:"list_inbounds,omitempty"`
	AddInbound    string `yaml:"add_inbound,omitempty"`
	UpdateInbound string `yaml:"update_inbound,omitempty"`
	DeleteInbound string `yaml:"delete_inbound,omitempty"`
}

// GetServerPort returns the port part of ServerAddr
func (c *Config) GetServerPort() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	parts := strings.Split(c.ServerAddr, ":")
	return parts[len(parts)-1]
}

// TokenDuration returns the bearer token lifetime
func (c *Config) TokenDuration() time.Duration {
	return parseDuration(c.TokenTTL, 24*time.Hour)
}

// RemoteTimeout returns the per-call timeout for panel requests
func (c *Config) RemoteTimeout() time.Duration {
	return parseDuration(c.Remote.Timeout, 10*time.Second)
}

// SessionCacheDuration returns how long a panel session may be reused (0 = never)
func (c *Config) SessionCacheDuration() time.Duration {
	return parseDuration(c.Remote.SessionCacheTTL, 0)
}

// File returns the path of the backing config file
func (c *Config) File() string {
	return c.file
}

// Save writes the current configuration back to the file
func (c *Config) Save() error {
	if c.file == "" {
		return fmt.Errorf("config file path is not set")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.file, data, 0o600)
}

// EnsureDefaultConfig applies env overrides and fills missing fields.
// When save is true and a default was generated, the file is rewritten.
func (c *Config) EnsureDefaultConfig(save bool) error {
	changed := false
	c.mu.Lock()

	// Env overrides
	if dbPath := utils.Env("XUIHUB_DB_PATH", ""); dbPath != "" {
		c.DBPath = dbPath
	}

	if addr := utils.Env("XUIHUB_SERVER_ADDR", ""); addr != "" {
		c.ServerAddr = addr
	} else if port := utils.Env("PORT", ""); port != "" {
		c.ServerAddr = ":" + port
	}

	if logLevel := utils.Env("XUIHUB_LOG_LEVEL", ""); logLevel != "" {
		c.LogLevel = logLevel
	}

	if secret := utils.EnvFirst("XUIHUB_JWT_SECRET", "JWT_SECRET"); secret != "" {
		c.JWTSecret = secret
	}

	c.Remote.VerifyTLS = utils.EnvBool("XUIHUB_VERIFY_TLS", c.Remote.VerifyTLS)
	c.Remote.FanoutConcurrency = utils.EnvInt("XUIHUB_FANOUT_CONCURRENCY", c.Remote.FanoutConcurrency)

	// Create defaults
	if c.DBPath == "" {
		dir := "."
		if c.file != "" {
			dir = filepath.Dir(c.file)
		}
		c.DBPath = filepath.Join(dir, "xui-hub.db")
		changed = true
	}

	if c.ServerAddr == "" {
		c.ServerAddr = defaultServerAddr
		changed = true
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
		changed = true
	}

	if c.JWTSecret == "" {
		secret, err := utils.GenerateRandomString(jwtSecretLength)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		c.JWTSecret = secret
		changed = true
	}

	if c.TokenTTL == "" {
		c.TokenTTL = defaultTokenTTL
		changed = true
	}

	if c.Admin.Username == "" {
		c.Admin.Username = defaultAdminUser
		changed = true
	}

	if c.Admin.Password == "" {
		c.Admin.Password = defaultAdminPassword
		changed = true
	}

	if c.Remote.Timeout == "" {
		c.Remote.Timeout = defaultRemoteTimeout
		changed = true
	}

	if len(c.Remote.SessionCookies) == 0 {
		c.Remote.SessionCookies = []string{"session", "3x-ui"}
		changed = true
	}

	c.mu.Unlock()

	if changed && save {
		return c.Save()
	}
	return nil
}

// Validate reports malformed durations early instead of silently using defaults
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"token_ttl":                c.TokenTTL,
		"remote.timeout":           c.Remote.Timeout,
		"remote.session_cache_ttl": c.Remote.SessionCacheTTL,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}
	if c.Remote.FanoutConcurrency < 0 {
		return fmt.Errorf("invalid remote.fanout_concurrency %d", c.Remote.FanoutConcurrency)
	}
	return nil
}

// Load loads configuration from the specified file and environment variables
func Load(version, file, logLevel string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Version: version,
		file:    file,
	}

	if _, err := os.Stat(file); err == nil {
		yamlFeeder := feeder.Yaml{Path: file}
		if err := config.New().AddFeeder(yamlFeeder).AddStruct(cfg).Feed(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	if err := cfg.EnsureDefaultConfig(true); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Override log level from command-line argument
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
