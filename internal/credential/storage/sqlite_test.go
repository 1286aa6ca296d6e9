package storage

import (
	"context"
	"testing"
	"time"

	"github.com/girderhq/girder/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	cfg := &config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"}
	s, err := NewSQLite(cfg)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord(identity string) *Record {
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	return &Record{
		Provider:          "buildsite",
		Identity:          identity,
		Environment:       "production",
		AccessCiphertext:  "enc-access-" + identity,
		RefreshCiphertext: "enc-refresh-" + identity,
		ExpiresAt:         &exp,
		CompanyID:         "88",
	}
}

func TestSQLite_UpsertGetDelete(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	// absent row reads as nil, not an error
	rec, err := s.Get(ctx, "buildsite", "u1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, s.Upsert(ctx, sampleRecord("u1")))

	rec, err = s.Get(ctx, "buildsite", "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "enc-access-u1", rec.AccessCiphertext)
	assert.Equal(t, "production", rec.Environment)
	assert.Equal(t, "88", rec.CompanyID)
	require.NotNil(t, rec.ExpiresAt)

	assert.NoError(t, s.Delete(ctx, "buildsite", "u1"))
	rec, err = s.Get(ctx, "buildsite", "u1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// deleting again is fine
	assert.NoError(t, s.Delete(ctx, "buildsite", "u1"))
}

func TestSQLite_UpsertReplacesRow(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, sampleRecord("u1")))

	replacement := sampleRecord("u1")
	replacement.AccessCiphertext = "enc-access-v2"
	replacement.RefreshCiphertext = ""
	replacement.Environment = "sandbox"
	require.NoError(t, s.Upsert(ctx, replacement))

	rec, err := s.Get(ctx, "buildsite", "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "enc-access-v2", rec.AccessCiphertext)
	assert.Empty(t, rec.RefreshCiphertext)
	assert.Equal(t, "sandbox", rec.Environment)

	recs, err := s.List(ctx, "buildsite")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSQLite_ListOrdersByIdentity(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for _, id := range []string{"charlie", "alice", "bob"} {
		require.NoError(t, s.Upsert(ctx, sampleRecord(id)))
	}
	require.NoError(t, s.Upsert(ctx, &Record{
		Provider: "other", Identity: "alice", Environment: "production", AccessCiphertext: "x",
	}))

	recs, err := s.List(ctx, "buildsite")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "alice", recs[0].Identity)
	assert.Equal(t, "bob", recs[1].Identity)
	assert.Equal(t, "charlie", recs[2].Identity)
}

func TestMemoryStoreBehavesLikeSQLite(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, err := m.Get(ctx, "buildsite", "u1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, m.Upsert(ctx, sampleRecord("u1")))
	rec, err = m.Get(ctx, "buildsite", "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)

	// mutating the returned copy must not leak into the store
	rec.AccessCiphertext = "tampered"
	again, err := m.Get(ctx, "buildsite", "u1")
	require.NoError(t, err)
	assert.Equal(t, "enc-access-u1", again.AccessCiphertext)

	require.NoError(t, m.Upsert(ctx, sampleRecord("u2")))
	recs, err := m.List(ctx, "buildsite")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "u1", recs[0].Identity)

	assert.NoError(t, m.Delete(ctx, "buildsite", "u1"))
	rec, err = m.Get(ctx, "buildsite", "u1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, m.Close())
}

func TestFactorySelectsBackend(t *testing.T) {
	s, err := NewStore(&config.VaultStorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = NewStore(&config.VaultStorageConfig{
		Type:     "db",
		Database: config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"},
	})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	_ = s.Close()

	_, err = NewStore(&config.VaultStorageConfig{Type: "bogus"})
	assert.Error(t, err)
}
