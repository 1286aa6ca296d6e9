package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/girderhq/girder/internal/common/cnst"
	"github.com/girderhq/girder/internal/common/config"
	"github.com/girderhq/girder/internal/common/errorx"
	"github.com/girderhq/girder/internal/credential/storage"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
)

// Credential is the decrypted form of one stored credential. Instances only
// live in process memory; the vault seals tokens before anything is persisted.
type Credential struct {
	Provider     string
	Identity     string
	Environment  cnst.Environment
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	CompanyID    string
}

// Vault stores credentials encrypted at rest and serves reads through a
// short-lived cache. Every write evicts the cache entry rather than
// overwriting it, so readers never observe a half-applied update.
type Vault struct {
	cipher *Cipher
	store  storage.Store
	cache  *ttlcache.Cache[string, *Credential]
	logger *zap.Logger
}

// NewVault creates a vault over the given store.
func NewVault(cfg *config.VaultConfig, store storage.Store, logger *zap.Logger) (*Vault, error) {
	cipher, err := NewCipher(cfg.MasterKey)
	if err != nil {
		return nil, err
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *Credential](ttl),
		ttlcache.WithDisableTouchOnHit[string, *Credential](),
	)
	go cache.Start()

	return &Vault{
		cipher: cipher,
		store:  store,
		cache:  cache,
		logger: logger.Named("vault"),
	}, nil
}

func vaultKey(provider, identity string) string {
	return provider + "/" + identity
}

// Store encrypts and persists cred, replacing any previous credential for the
// same (provider, identity).
func (v *Vault) Store(ctx context.Context, cred *Credential) error {
	if cred.Provider == "" || cred.Identity == "" {
		return fmt.Errorf("%w: provider and identity are required", errorx.ErrValidation)
	}
	if !cred.Environment.Valid() {
		return fmt.Errorf("%w: environment %q", errorx.ErrValidation, cred.Environment)
	}
	if cred.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", errorx.ErrValidation)
	}

	accessEnc, err := v.cipher.Encrypt(cred.AccessToken)
	if err != nil {
		return err
	}
	var refreshEnc string
	if cred.RefreshToken != "" {
		if refreshEnc, err = v.cipher.Encrypt(cred.RefreshToken); err != nil {
			return err
		}
	}

	rec := &storage.Record{
		Provider:          cred.Provider,
		Identity:          cred.Identity,
		Environment:       cred.Environment.String(),
		AccessCiphertext:  accessEnc,
		RefreshCiphertext: refreshEnc,
		ExpiresAt:         cred.ExpiresAt,
		CompanyID:         cred.CompanyID,
	}
	if err := v.store.Upsert(ctx, rec); err != nil {
		return err
	}
	v.cache.Delete(vaultKey(cred.Provider, cred.Identity))

	v.logger.Info("credential stored",
		zap.String("provider", cred.Provider),
		zap.String("identity", cred.Identity),
		zap.String("environment", cred.Environment.String()),
		zap.Bool("has_refresh_token", cred.RefreshToken != ""))
	return nil
}

// Get returns the decrypted credential for (provider, identity). Absence is
// errorx.ErrNotConnected; an undecryptable row is errorx.ErrConfiguration.
func (v *Vault) Get(ctx context.Context, provider, identity string) (*Credential, error) {
	key := vaultKey(provider, identity)
	if item := v.cache.Get(key); item != nil {
		cp := *item.Value()
		return &cp, nil
	}

	rec, err := v.store.Get(ctx, provider, identity)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errorx.ErrNotConnected
	}

	cred, err := v.decrypt(rec)
	if err != nil {
		return nil, err
	}
	v.cache.Set(key, cred, ttlcache.DefaultTTL)

	cp := *cred
	return &cp, nil
}

// Delete removes the credential and its cache entry.
func (v *Vault) Delete(ctx context.Context, provider, identity string) error {
	if err := v.store.Delete(ctx, provider, identity); err != nil {
		return err
	}
	v.cache.Delete(vaultKey(provider, identity))
	v.logger.Info("credential deleted",
		zap.String("provider", provider),
		zap.String("identity", identity))
	return nil
}

// Close stops the cache janitor.
func (v *Vault) Close() {
	v.cache.Stop()
}

func (v *Vault) decrypt(rec *storage.Record) (*Credential, error) {
	access, err := v.cipher.Decrypt(rec.AccessCiphertext)
	if err != nil {
		return nil, err
	}
	var refresh string
	if rec.RefreshCiphertext != "" {
		if refresh, err = v.cipher.Decrypt(rec.RefreshCiphertext); err != nil {
			return nil, err
		}
	}
	return &Credential{
		Provider:     rec.Provider,
		Identity:     rec.Identity,
		Environment:  cnst.Environment(rec.Environment),
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    rec.ExpiresAt,
		CompanyID:    rec.CompanyID,
	}, nil
}
