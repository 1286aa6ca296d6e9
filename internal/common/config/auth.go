package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

type (
	// AuthConfig defines the authentication configuration
	AuthConfig struct {
		OAuth2 *OAuth2Config `yaml:"oauth2"`
		CORS   *CORSConfig   `yaml:"cors,omitempty"`
	}

	// OAuth2Config configures the embedded authorization server
	OAuth2Config struct {
		Issuer          string              `yaml:"issuer"`
		Storage         OAuth2StorageConfig `yaml:"storage"`
		AccessTokenTTL  time.Duration       `yaml:"access_token_ttl"`  // default 1h
		RefreshTokenTTL time.Duration       `yaml:"refresh_token_ttl"` // default 720h
		CodeTTL         time.Duration       `yaml:"code_ttl"`          // default 10m
		ClientTTL       time.Duration       `yaml:"client_ttl"`        // default 1 year
	}

	OAuth2StorageConfig struct {
		Type  string            `yaml:"type"` // memory or redis
		Redis OAuth2RedisConfig `yaml:"redis"`
	}

	OAuth2RedisConfig struct {
		ClusterType string `yaml:"cluster_type"` // single, cluster or sentinel
		Addr        string `yaml:"addr"`
		MasterName  string `yaml:"master_name"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		Prefix      string `yaml:"prefix"`
	}
)

// SetOAuth2Defaults fills in zero-valued TTLs with the documented defaults.
func (c *OAuth2Config) SetOAuth2Defaults() {
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = time.Hour
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 720 * time.Hour
	}
	if c.CodeTTL <= 0 {
		c.CodeTTL = 10 * time.Minute
	}
	if c.ClientTTL <= 0 {
		c.ClientTTL = 365 * 24 * time.Hour
	}
}

// UnmarshalYAML accepts the four TTLs as "1h" style strings.
func (c *OAuth2Config) UnmarshalYAML(value *yaml.Node) error {
	type plain OAuth2Config
	rest, err := splitDurations(value, map[string]*time.Duration{
		"access_token_ttl":  &c.AccessTokenTTL,
		"refresh_token_ttl": &c.RefreshTokenTTL,
		"code_ttl":          &c.CodeTTL,
		"client_ttl":        &c.ClientTTL,
	})
	if err != nil {
		return err
	}
	return rest.Decode((*plain)(c))
}
