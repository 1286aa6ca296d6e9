package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/girderhq/girder/internal/common/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Postgres implements the Store interface using PostgreSQL
type Postgres struct {
	db  *gorm.DB
	cfg *config.DatabaseConfig
}

// NewPostgres creates a new Postgres instance
func NewPostgres(cfg *config.DatabaseConfig) (Store, error) {
	s := &Postgres{
		cfg: cfg,
	}

	gormDB, err := gorm.Open(postgres.Open(s.cfg.GetDSN()), &gorm.Config{})
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
func (s *Postgres) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Postgres) Upsert(ctx context.Context, rec *Record) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("provider = ? AND identity = ?", rec.Provider, rec.Identity).
			Delete(&Record{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
}

func (s *Postgres) Get(ctx context.Context, provider, identity string) (*Record, error) {
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

func (s *Postgres) Delete(ctx context.Context, provider, identity string) error {
	return s.db.WithContext(ctx).
		Where("provider = ? AND identity = ?", provider, identity).
		Delete(&Record{}).Error
}

func (s *Postgres) List(ctx context.Context, provider string) ([]*Record, error) {
	var recs []*Record
	err := s.db.WithContext(ctx).
		Where("provider = ?", provider).
		Order("identity asc").
		Find(&recs).Error
	return recs, err
}
