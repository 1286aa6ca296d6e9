package storage

import (
	"fmt"

	"github.com/girderhq/girder/internal/common/config"
)

// NewStore creates a credential store based on configuration
func NewStore(cfg *config.VaultStorageConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemory(), nil
	case "db":
		return newDatabaseStore(&cfg.Database)
	default:
		return nil, fmt.Errorf("unsupported vault storage type: %s", cfg.Type)
	}
}

func newDatabaseStore(cfg *config.DatabaseConfig) (Store, error) {
	switch cfg.Type {
	case "postgres":
		return NewPostgres(cfg)
	case "sqlite":
		return NewSQLite(cfg)
	case "mysql":
		return NewMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
