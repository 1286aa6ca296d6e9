package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestDurationStringsDecodeAcrossConfig(t *testing.T) {
	raw := `
server:
  port: 9090
  timeout: 10s
auth:
  oauth2:
    issuer: https://girder.example.com
    access_token_ttl: 1h
    refresh_token_ttl: 720h
    code_ttl: 10m
    client_ttl: 8760h
vault:
  master_key: k
  cache_ttl: 5m
providers:
  - name: buildsite
    timeout: 30s
    refresh_buffer: 5m
rate_limit:
  window: 60s
  quota: 100
  sweep_interval: 5m
webhook:
  tolerance: 180s
`
	var cfg GirderConfig
	assert.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.Timeout)
	assert.Equal(t, time.Hour, cfg.Auth.OAuth2.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, cfg.Auth.OAuth2.RefreshTokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.Auth.OAuth2.CodeTTL)
	assert.Equal(t, 8760*time.Hour, cfg.Auth.OAuth2.ClientTTL)
	assert.Equal(t, "k", cfg.Vault.MasterKey)
	assert.Equal(t, 5*time.Minute, cfg.Vault.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Providers[0].Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Providers[0].RefreshBuffer)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 100, cfg.RateLimit.Quota)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.SweepInterval)
	assert.Equal(t, 180*time.Second, cfg.Webhook.Tolerance)
}

func TestDurationScalarForms(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    time.Duration
		wantErr string
	}{
		{name: "string with unit", yaml: "timeout: 30s", want: 30 * time.Second},
		{name: "compound", yaml: "timeout: 1h30m", want: 90 * time.Minute},
		{name: "empty keeps zero", yaml: `timeout: ""`, want: 0},
		{name: "null keeps zero", yaml: "timeout: null", want: 0},
		{name: "omitted keeps zero", yaml: "port: 80", want: 0},
		{name: "zero", yaml: "timeout: 0", want: 0},
		{name: "bare number rejected", yaml: "timeout: 30", wantErr: "use a unit"},
		{name: "garbage rejected", yaml: "timeout: fast", wantErr: "invalid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c ServerConfig
			err := yaml.Unmarshal([]byte(tt.yaml), &c)
			if tt.wantErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, c.Timeout)
		})
	}
}
