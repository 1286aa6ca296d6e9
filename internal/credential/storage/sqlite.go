package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/girderhq/girder/internal/common/config"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// SQLite implements the Store interface using SQLite
type SQLite struct {
	db  *gorm.DB
	cfg *config.DatabaseConfig
}

// NewSQLite creates a new SQLite instance
func NewSQLite(cfg *config.DatabaseConfig) (Store, error) {
	s := &SQLite{
		cfg: cfg,
	}

	dir := filepath.Dir(s.cfg.DBName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	gormDB, err := gorm.Open(sqlite.Open(s.cfg.DBName), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := gormDB.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s.db = gormDB
	return s, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLite) Upsert(ctx context.Context, rec *Record) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("provider = ? AND identity = ?", rec.Provider, rec.Identity).
			Delete(&Record{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
}

func (s *SQLite) Get(ctx context.Context, provider, identity string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).
		Where("provider = ? AND identity = ?", provider, identity).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLite) Delete(ctx context.Context, provider, identity string) error {
	return s.db.WithContext(ctx).
		Where("provider = ? AND identity = ?", provider, identity).
		Delete(&Record{}).Error
}

func (s *SQLite) List(ctx context.Context, provider string) ([]*Record, error) {
	var recs []*Record
	err := s.db.WithContext(ctx).
		Where("provider = ?", provider).
		Order("identity asc").
		Find(&recs).Error
	return recs, err
}
