package storage

import (
	"context"
	"time"
)

// Record is one encrypted credential row. Token columns only ever hold
// ciphertext; the vault seals and opens them.
type Record struct {
	ID                uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Provider          string     `json:"provider" gorm:"type:varchar(64);uniqueIndex:idx_provider_identity;not null"`
	Identity          string     `json:"identity" gorm:"type:varchar(128);uniqueIndex:idx_provider_identity;not null"`
	Environment       string     `json:"environment" gorm:"type:varchar(16);not null"`
	AccessCiphertext  string     `json:"-" gorm:"type:text;not null"`
	RefreshCiphertext string     `json:"-" gorm:"type:text"`
	ExpiresAt         *time.Time `json:"expiresAt"`
	CompanyID         string     `json:"companyId" gorm:"type:varchar(64)"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Store persists encrypted credential rows.
type Store interface {
	// Upsert replaces the row for (provider, identity): any existing row is
	// deleted and the new one inserted in a single transaction.
	Upsert(ctx context.Context, rec *Record) error

	// Get returns the row for (provider, identity), or nil when absent.
	Get(ctx context.Context, provider, identity string) (*Record, error)

	// Delete removes the row. Deleting a missing row is not an error.
	Delete(ctx context.Context, provider, identity string) error

	// List returns all rows for a provider ordered by identity.
	List(ctx context.Context, provider string) ([]*Record, error)

	// Close closes the underlying connection.
	Close() error
}
