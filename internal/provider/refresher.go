package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/girderhq/girder/internal/common/cnst"
	"github.com/girderhq/girder/internal/common/errorx"
	"github.com/girderhq/girder/internal/credential"
	"github.com/girderhq/girder/pkg/metrics"
	"github.com/girderhq/girder/pkg/trace"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Refresher keeps vault credentials usable by exchanging refresh tokens
// before the access token runs out. Concurrent callers for the same
// (provider, identity) share a single upstream exchange.
type Refresher struct {
	registry *Registry
	vault    *credential.Vault
	metrics  *metrics.Metrics
	logger   *zap.Logger
	group    singleflight.Group
	now      func() time.Time
	client   *http.Client
}

// NewRefresher creates a refresher over the registry and vault.
func NewRefresher(registry *Registry, vault *credential.Vault, m *metrics.Metrics, logger *zap.Logger) *Refresher {
	return &Refresher{
		registry: registry,
		vault:    vault,
		metrics:  m,
		logger:   logger.Named("refresher"),
		now:      time.Now,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func isFresh(cred *credential.Credential, buffer time.Duration, now time.Time) bool {
	if cred.ExpiresAt == nil {
		return true
	}
	return cred.ExpiresAt.Sub(now) >= buffer
}

// EnsureFresh returns an access token with at least the provider's refresh
// buffer of lifetime left, refreshing it upstream when needed. A credential
// past its buffer with no refresh token is errorx.ErrCredentialExpired; a
// failed exchange is errorx.ErrRefreshFailed. Neither is retried here.
func (r *Refresher) EnsureFresh(ctx context.Context, cred *credential.Credential) (string, error) {
	prov, err := r.registry.Get(cred.Provider)
	if err != nil {
		return "", err
	}
	if isFresh(cred, prov.RefreshBuffer, r.now()) {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" {
		return "", fmt.Errorf("%w: %s/%s has no refresh token", errorx.ErrCredentialExpired, cred.Provider, cred.Identity)
	}

	key := cred.Provider + "/" + cred.Identity
	token, err, _ := r.group.Do(key, func() (any, error) {
		// A caller that waited on the flight may find the work already done.
		current, err := r.vault.Get(ctx, cred.Provider, cred.Identity)
		if err != nil {
			return nil, err
		}
		if isFresh(current, prov.RefreshBuffer, r.now()) {
			return current.AccessToken, nil
		}
		return r.refresh(ctx, prov, current)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (r *Refresher) refresh(ctx context.Context, prov *Provider, cred *credential.Credential) (string, error) {
	conf, err := prov.OAuthConfig(cred.Environment)
	if err != nil {
		return "", err
	}

	scope := trace.Tracer(cnst.TraceAuth).Start(ctx, cnst.SpanTokenRefresh).WithAttrs(
		attribute.String(cnst.AttrProvider, cred.Provider),
		attribute.String(cnst.AttrIdentity, cred.Identity),
		attribute.String(cnst.AttrEnvironment, cred.Environment.String()),
	)
	defer scope.End()

	exchangeCtx := context.WithValue(scope.Ctx, oauth2.HTTPClient, r.client)
	exchangeCtx, cancel := context.WithTimeout(exchangeCtx, prov.Timeout)
	tok, err := conf.TokenSource(exchangeCtx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	cancel()
	if err != nil {
		r.metrics.TokenRefreshDone(cred.Provider, false)
		r.logger.Warn("token refresh failed",
			zap.String("provider", cred.Provider),
			zap.String("identity", cred.Identity),
			zap.String("environment", cred.Environment.String()),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", errorx.ErrRefreshFailed, err)
	}

	next := *cred
	next.AccessToken = tok.AccessToken
	rotated := tok.RefreshToken != "" && tok.RefreshToken != cred.RefreshToken
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	if tok.Expiry.IsZero() {
		next.ExpiresAt = nil
	} else {
		expiry := tok.Expiry.UTC()
		next.ExpiresAt = &expiry
	}
	if err := r.vault.Store(ctx, &next); err != nil {
		return "", err
	}
	r.metrics.TokenRefreshDone(cred.Provider, true)

	r.logger.Info("access token refreshed",
		zap.String("provider", cred.Provider),
		zap.String("identity", cred.Identity),
		zap.Bool("refresh_token_rotated", rotated))
	return next.AccessToken, nil
}
