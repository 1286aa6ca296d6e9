package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/girderhq/girder/internal/common/cnst"
	"github.com/girderhq/girder/internal/common/errorx"
	"github.com/girderhq/girder/internal/credential"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// connectStateTTL bounds how long a user has to finish the provider's
// consent screen before the connect state expires.
const connectStateTTL = 10 * time.Minute

// pendingConnect is one connect flow waiting for its OAuth callback. The
// cache evicts lazily, so expiry is also checked explicitly on redemption.
type pendingConnect struct {
	Provider    string
	Identity    string
	Environment cnst.Environment
	CompanyID   string
	Verifier    string
	ExpiresAt   time.Time
}

func generateConnectState() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// handleConnect starts the authorization-code flow against the provider and
// redirects the caller to the provider's consent screen.
func (s *Server) handleConnect(c *gin.Context) {
	providerName := c.Query("provider")
	identity := c.Query("identity")
	if providerName == "" || identity == "" {
		s.errors.HandleError(c, fmt.Errorf("%w: provider and identity are required", errorx.ErrValidation))
		return
	}

	env := cnst.Environment(c.Query("environment"))
	if env == "" {
		env = cnst.EnvProduction
	}
	if !env.Valid() {
		s.errors.HandleError(c, fmt.Errorf("%w: unknown environment %q", errorx.ErrValidation, env))
		return
	}

	prov, err := s.registry.Get(providerName)
	if err != nil {
		s.errors.HandleError(c, err)
		return
	}
	conf, err := prov.OAuthConfig(env)
	if err != nil {
		s.errors.HandleError(c, err)
		return
	}

	verifier := oauth2.GenerateVerifier()
	state := generateConnectState()
	s.pending.Set(state, &pendingConnect{
		Provider:    providerName,
		Identity:    identity,
		Environment: env,
		CompanyID:   c.Query("company_id"),
		Verifier:    verifier,
		ExpiresAt:   time.Now().Add(connectStateTTL),
	}, ttlcache.DefaultTTL)

	s.logger.Info("starting connect flow",
		zap.String("provider", providerName),
		zap.String("identity", identity),
		zap.String("environment", env.String()),
	)

	c.Redirect(http.StatusFound, conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	))
}

// handleConnectCallback redeems the provider's authorization code and stores
// the resulting credential in the vault. The connect state is single-use.
func (s *Server) handleConnectCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		s.errors.HandleError(c, fmt.Errorf("%w: code and state are required", errorx.ErrValidation))
		return
	}

	item, present := s.pending.GetAndDelete(state)
	if !present || item == nil {
		s.errors.HandleError(c, errorx.NewAuthInvalid("unknown or expired connect state"))
		return
	}
	p := item.Value()
	if time.Now().After(p.ExpiresAt) {
		s.errors.HandleError(c, errorx.NewAuthInvalid("unknown or expired connect state"))
		return
	}

	prov, err := s.registry.Get(p.Provider)
	if err != nil {
		s.errors.HandleError(c, err)
		return
	}
	conf, err := prov.OAuthConfig(p.Environment)
	if err != nil {
		s.errors.HandleError(c, err)
		return
	}

	ctx := context.WithValue(c.Request.Context(), oauth2.HTTPClient, s.client)
	ctx, cancel := context.WithTimeout(ctx, prov.Timeout)
	defer cancel()

	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(p.Verifier))
	if err != nil {
		s.errors.HandleError(c, fmt.Errorf("%w: code exchange: %v", errorx.ErrAuthFailed, err))
		return
	}

	cred := &credential.Credential{
		Provider:     p.Provider,
		Identity:     p.Identity,
		Environment:  p.Environment,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		CompanyID:    p.CompanyID,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		cred.ExpiresAt = &expiry
	}
	if err := s.vault.Store(c.Request.Context(), cred); err != nil {
		s.errors.HandleError(c, err)
		return
	}

	s.logger.Info("provider connected",
		zap.String("provider", p.Provider),
		zap.String("identity", p.Identity),
		zap.String("environment", p.Environment.String()),
	)

	c.JSON(http.StatusOK, gin.H{
		"connected":   true,
		"identity":    p.Identity,
		"environment": p.Environment,
	})
}
