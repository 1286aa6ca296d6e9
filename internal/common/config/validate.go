package config

import (
	"fmt"

	"github.com/girderhq/girder/internal/common/cnst"
)

// Validate performs configuration validation before the service starts.
// It applies documented defaults first so callers get a ready-to-use config.
func Validate(cfg *GirderConfig) error {
	cfg.Server.SetServerDefaults()
	if cfg.Auth.OAuth2 != nil {
		cfg.Auth.OAuth2.SetOAuth2Defaults()
	}
	cfg.Vault.SetVaultDefaults()
	cfg.RateLimit.SetRateLimitDefaults()
	cfg.Webhook.SetWebhookDefaults()

	// Validate provider names are unique
	names := make(map[string]bool)
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		p.SetProviderDefaults()
		if names[p.Name] {
			return fmt.Errorf("%w: %s", cnst.ErrDuplicateProviderName, p.Name)
		}
		names[p.Name] = true
	}

	if len(cfg.Providers) > 0 && cfg.Vault.MasterKey == "" {
		return cnst.ErrMissingMasterKey
	}

	return nil
}
