package config

import (
	"os"
	"regexp"
	"time"

	"github.com/girderhq/girder/pkg/helper"
	"github.com/girderhq/girder/pkg/trace"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// GirderConfig is the root configuration for the girder service
	GirderConfig struct {
		Server    ServerConfig     `yaml:"server"`
		Logger    LoggerConfig     `yaml:"logger"`
		Metrics   MetricsConfig    `yaml:"metrics"`
		Tracing   *trace.Config    `yaml:"tracing,omitempty"`
		Auth      AuthConfig       `yaml:"auth"`
		Vault     VaultConfig      `yaml:"vault"`
		Providers []ProviderConfig `yaml:"providers"`
		RateLimit RateLimitConfig  `yaml:"rate_limit"`
		Webhook   WebhookConfig    `yaml:"webhook"`
	}

	// ServerConfig represents the HTTP server configuration
	ServerConfig struct {
		Port     int            `yaml:"port"`
		PID      string         `yaml:"pid"`
		Timeout  time.Duration  `yaml:"timeout"`  // graceful shutdown timeout
		Throttle ThrottleConfig `yaml:"throttle"` // per-IP throttle on auth endpoints
	}

	// ThrottleConfig limits how fast a single IP may hit the auth endpoints
	ThrottleConfig struct {
		Enabled bool    `yaml:"enabled"`
		RPS     float64 `yaml:"rps"`
		Burst   int     `yaml:"burst"`
	}
)

// SetServerDefaults fills in zero-valued fields with the documented defaults.
func (c *ServerConfig) SetServerDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Throttle.Enabled {
		if c.Throttle.RPS <= 0 {
			c.Throttle.RPS = 5
		}
		if c.Throttle.Burst <= 0 {
			c.Throttle.Burst = 10
		}
	}
}

// UnmarshalYAML accepts the shutdown timeout as a "10s" style string.
func (c *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain ServerConfig
	rest, err := splitDurations(value, map[string]*time.Duration{
		"timeout": &c.Timeout,
	})
	if err != nil {
		return err
	}
	return rest.Decode((*plain)(c))
}

type (
	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// MetricsConfig represents the prometheus exposition configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// CORSConfig represents the CORS configuration for the OAuth endpoints
	CORSConfig struct {
		AllowOrigins     []string `yaml:"allow_origins"`
		AllowMethods     []string `yaml:"allow_methods"`
		AllowHeaders     []string `yaml:"allow_headers"`
		ExposeHeaders    []string `yaml:"expose_headers"`
		AllowCredentials bool     `yaml:"allow_credentials"`
	}
)

type Type interface {
	GirderConfig
}

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig[T Type](filename string) (*T, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	return &cfg, cfgPath, nil
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
