package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/girderhq/girder/internal/common/cnst"
)

type (
	// ProviderConfig describes one third-party construction platform.
	// Production and sandbox are separate records; an environment's token
	// exchange only ever uses its own client credentials.
	ProviderConfig struct {
		Name          string           `yaml:"name"`
		CompanyHeader string           `yaml:"company_header"` // scoping header name, default cnst.HeaderCompanyID
		WebhookSecret string           `yaml:"webhook_secret"`
		Timeout       time.Duration    `yaml:"timeout"`        // per-call deadline, default 30s
		RefreshBuffer time.Duration    `yaml:"refresh_buffer"` // refresh when less than this remains, default 5m
		Production    ProviderEndpoint `yaml:"production"`
		Sandbox       ProviderEndpoint `yaml:"sandbox"`
	}

	// ProviderEndpoint holds the OAuth2 and API endpoints for one environment
	ProviderEndpoint struct {
		AuthURL      string   `yaml:"auth_url"`
		TokenURL     string   `yaml:"token_url"`
		BaseURL      string   `yaml:"base_url"`
		ClientID     string   `yaml:"client_id"`
		ClientSecret string   `yaml:"client_secret"`
		RedirectURL  string   `yaml:"redirect_url"`
		Scopes       []string `yaml:"scopes"`
	}

	// RateLimitConfig configures the outbound fixed-window limiter
	RateLimitConfig struct {
		Window        time.Duration `yaml:"window"`         // default 60s
		Quota         int           `yaml:"quota"`          // default 3600
		SweepInterval time.Duration `yaml:"sweep_interval"` // idle window GC cadence, default 5m
	}

	// WebhookConfig configures inbound signature verification
	WebhookConfig struct {
		Tolerance time.Duration `yaml:"tolerance"` // max timestamp skew, default 180s
	}
)

// Endpoint returns the record for the given environment.
func (p *ProviderConfig) Endpoint(env cnst.Environment) ProviderEndpoint {
	if env == cnst.EnvSandbox {
		return p.Sandbox
	}
	return p.Production
}

// SetProviderDefaults fills in zero-valued fields with the documented defaults.
func (p *ProviderConfig) SetProviderDefaults() {
	if p.CompanyHeader == "" {
		p.CompanyHeader = cnst.HeaderCompanyID
	}
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	if p.RefreshBuffer <= 0 {
		p.RefreshBuffer = 5 * time.Minute
	}
}

// SetRateLimitDefaults fills in zero-valued fields with the documented defaults.
func (c *RateLimitConfig) SetRateLimitDefaults() {
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Quota <= 0 {
		c.Quota = 3600
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
}

// SetWebhookDefaults fills in zero-valued fields with the documented defaults.
func (c *WebhookConfig) SetWebhookDefaults() {
	if c.Tolerance <= 0 {
		c.Tolerance = 180 * time.Second
	}
}

// UnmarshalYAML accepts timeout and refresh_buffer as "30s" style strings.
func (p *ProviderConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain ProviderConfig
	rest, err := splitDurations(value, map[string]*time.Duration{
		"timeout":        &p.Timeout,
		"refresh_buffer": &p.RefreshBuffer,
	})
	if err != nil {
		return err
	}
	return rest.Decode((*plain)(p))
}

func (c *RateLimitConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain RateLimitConfig
	rest, err := splitDurations(value, map[string]*time.Duration{
		"window":         &c.Window,
		"sweep_interval": &c.SweepInterval,
	})
	if err != nil {
		return err
	}
	return rest.Decode((*plain)(c))
}

func (c *WebhookConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain WebhookConfig
	rest, err := splitDurations(value, map[string]*time.Duration{
		"tolerance": &c.Tolerance,
	})
	if err != nil {
		return err
	}
	return rest.Decode((*plain)(c))
}
