package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

type (
	// VaultConfig configures encrypted credential storage.
	// MasterKey never appears in logs; decryption failures surface as
	// configuration errors, not as missing credentials.
	VaultConfig struct {
		MasterKey string             `yaml:"master_key"`
		CacheTTL  time.Duration      `yaml:"cache_ttl"` // read-through cache TTL, default 5m
		Storage   VaultStorageConfig `yaml:"storage"`
	}

	VaultStorageConfig struct {
		Type     string         `yaml:"type"` // db or memory
		Database DatabaseConfig `yaml:"database"`
	}
)

// SetVaultDefaults fills in zero-valued fields with the documented defaults.
func (c *VaultConfig) SetVaultDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
}

// UnmarshalYAML accepts cache_ttl as a "5m" style string.
func (c *VaultConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain VaultConfig
	rest, err := splitDurations(value, map[string]*time.Duration{
		"cache_ttl": &c.CacheTTL,
	})
	if err != nil {
		return err
	}
	return rest.Decode((*plain)(c))
}
