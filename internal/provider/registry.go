package provider

import (
	"fmt"
	"sort"
	"time"

	"github.com/girderhq/girder/internal/common/cnst"
	"github.com/girderhq/girder/internal/common/config"
	"github.com/girderhq/girder/internal/common/errorx"

	"golang.org/x/oauth2"
)

// Provider is one configured construction platform. Endpoints, client
// credentials and scoping headers differ per environment; everything else is
// shared.
type Provider struct {
	Name          string
	CompanyHeader string
	WebhookSecret string
	Timeout       time.Duration
	RefreshBuffer time.Duration

	cfg config.ProviderConfig
}

// Endpoint returns the environment's record. An environment with no base URL
// configured is treated as absent.
func (p *Provider) Endpoint(env cnst.Environment) (config.ProviderEndpoint, error) {
	if !env.Valid() {
		return config.ProviderEndpoint{}, fmt.Errorf("%w: environment %q", errorx.ErrValidation, env)
	}
	ep := p.cfg.Endpoint(env)
	if ep.BaseURL == "" {
		return config.ProviderEndpoint{}, fmt.Errorf("%w: provider %q has no %s endpoint", errorx.ErrConfiguration, p.Name, env)
	}
	return ep, nil
}

// OAuthConfig builds the oauth2 client configuration for the environment.
func (p *Provider) OAuthConfig(env cnst.Environment) (*oauth2.Config, error) {
	ep, err := p.Endpoint(env)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     ep.ClientID,
		ClientSecret: ep.ClientSecret,
		RedirectURL:  ep.RedirectURL,
		Scopes:       ep.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  ep.AuthURL,
			TokenURL: ep.TokenURL,
		},
	}, nil
}

// Registry resolves provider names to their configuration.
type Registry struct {
	providers map[string]*Provider
}

// NewRegistry builds a registry from the configured providers.
func NewRegistry(cfgs []config.ProviderConfig) (*Registry, error) {
	providers := make(map[string]*Provider, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("%w: provider name is required", errorx.ErrConfiguration)
		}
		if _, ok := providers[cfg.Name]; ok {
			return nil, fmt.Errorf("%w: %s", cnst.ErrDuplicateProviderName, cfg.Name)
		}
		cfg.SetProviderDefaults()
		providers[cfg.Name] = &Provider{
			Name:          cfg.Name,
			CompanyHeader: cfg.CompanyHeader,
			WebhookSecret: cfg.WebhookSecret,
			Timeout:       cfg.Timeout,
			RefreshBuffer: cfg.RefreshBuffer,
			cfg:           cfg,
		}
	}
	return &Registry{providers: providers}, nil
}

// Get returns the named provider or errorx.ErrNotFound.
func (r *Registry) Get(name string) (*Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", errorx.ErrNotFound, name)
	}
	return p, nil
}

// Names returns the configured provider names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
