package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/girderhq/girder/internal/auth/storage"
	"github.com/girderhq/girder/internal/common/config"
	"github.com/girderhq/girder/internal/common/errorx"

	"github.com/google/uuid"
	"github.com/ifuryst/lol"
	"go.uber.org/zap"
)

// Server is the embedded OAuth2 authorization server remote callers use to
// obtain bearer tokens for this service's own API. It only issues public
// clients; proof of possession comes from PKCE, not a client secret.
type Server struct {
	logger *zap.Logger
	store  storage.Store
	cfg    *config.OAuth2Config
	now    func() time.Time
}

// NewServer creates an authorization server with the configured storage
// backend.
func NewServer(logger *zap.Logger, cfg *config.OAuth2Config) (*Server, error) {
	store, err := storage.NewStore(logger, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}
	return newServer(logger, cfg, store), nil
}

func newServer(logger *zap.Logger, cfg *config.OAuth2Config, store storage.Store) *Server {
	cfg.SetOAuth2Defaults()
	return &Server{
		logger: logger.Named("auth.oauth2"),
		store:  store,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Close releases the storage backend.
func (s *Server) Close() error {
	return s.store.Close()
}

// AuthorizationResponse carries the issued code back toward the redirect URI.
type AuthorizationResponse struct {
	Code  string
	State string
}

// TokenResponse is the token endpoint's JSON body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ClientRegistrationResponse is the registration endpoint's JSON body. There
// is never a client_secret.
type ClientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope,omitempty"`
}

// ServerMetadata returns the OAuth2 server metadata document.
func (s *Server) ServerMetadata(r *http.Request) map[string]interface{} {
	baseURL := s.cfg.Issuer
	if baseURL == "" {
		scheme := r.Header.Get("X-Forwarded-Proto")
		if scheme == "" {
			scheme = "http"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}
	return map[string]interface{}{
		"issuer":                 baseURL,
		"authorization_endpoint": fmt.Sprintf("%s/authorize", baseURL),
		"token_endpoint":         fmt.Sprintf("%s/token", baseURL),
		"registration_endpoint":  fmt.Sprintf("%s/register", baseURL),
		"revocation_endpoint":    fmt.Sprintf("%s/revoke", baseURL),
		"token_endpoint_auth_methods_supported": []string{
			"none",
		},
		"response_types_supported": []string{
			"code",
		},
		"response_modes_supported": []string{
			"query",
		},
		"grant_types_supported": []string{
			"authorization_code",
			"refresh_token",
		},
		"code_challenge_methods_supported": []string{
			"S256",
			"plain",
		},
	}
}

type registerRequest struct {
	ClientName      string   `json:"client_name"`
	RedirectURIs    []string `json:"redirect_uris"`
	GrantTypes      []string `json:"grant_types"`
	ResponseTypes   []string `json:"response_types"`
	TokenAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope           string   `json:"scope"`
}

// Register handles dynamic client registration.
func (s *Server) Register(ctx context.Context, r *http.Request) (*ClientRegistrationResponse, error) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errorx.ErrInvalidRequest
	}

	if len(req.RedirectURIs) == 0 {
		return nil, errorx.ErrInvalidRequest
	}
	redirectURIs := lol.UniqSlice(req.RedirectURIs)
	for _, raw := range redirectURIs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" {
			return nil, errorx.ErrInvalidRedirectURI
		}
	}

	if len(req.GrantTypes) == 0 {
		req.GrantTypes = []string{"authorization_code", "refresh_token"}
	}
	if len(req.ResponseTypes) == 0 {
		req.ResponseTypes = []string{"code"}
	}

	client := &storage.Client{
		ID:            uuid.New().String(),
		Name:          req.ClientName,
		RedirectURIs:  redirectURIs,
		GrantTypes:    req.GrantTypes,
		ResponseTypes: req.ResponseTypes,
		// Public clients only; a requested auth method is not honored.
		TokenAuthMethod: "none",
		Scope:           req.Scope,
		ExpiresAt:       s.now().Add(s.cfg.ClientTTL).Unix(),
	}
	if err := s.store.CreateClient(ctx, client); err != nil {
		return nil, err
	}

	s.logger.Info("client registered",
		zap.String("client_id", client.ID),
		zap.String("client_name", client.Name),
		zap.Int("redirect_uris", len(client.RedirectURIs)))

	return &ClientRegistrationResponse{
		ClientID:                client.ID,
		ClientName:              client.Name,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           client.ResponseTypes,
		TokenEndpointAuthMethod: client.TokenAuthMethod,
		Scope:                   client.Scope,
	}, nil
}

// Authorize handles the authorization request and issues a single-use code
// bound to the PKCE challenge.
func (s *Server) Authorize(ctx context.Context, r *http.Request) (*AuthorizationResponse, error) {
	clientID := r.URL.Query().Get("client_id")
	redirectURI := r.URL.Query().Get("redirect_uri")
	responseType := r.URL.Query().Get("response_type")
	scope := r.URL.Query().Get("scope")
	state := r.URL.Query().Get("state")
	codeChallenge := r.URL.Query().Get("code_challenge")
	codeChallengeMethod := r.URL.Query().Get("code_challenge_method")

	if clientID == "" || redirectURI == "" || responseType == "" {
		return nil, errorx.ErrInvalidRequest
	}
	if responseType != "code" {
		return nil, errorx.ErrUnsupportedResponseType
	}

	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, errorx.ErrInvalidClient
	}
	if !isValidRedirectURI(redirectURI, client.RedirectURIs) {
		return nil, errorx.ErrInvalidRedirectURI
	}

	if codeChallenge != "" {
		codeChallengeMethod = normalizeChallengeMethod(codeChallengeMethod)
		if codeChallengeMethod != "plain" && codeChallengeMethod != "S256" {
			return nil, errorx.ErrInvalidRequest
		}
	} else {
		codeChallengeMethod = ""
	}

	code := generateAuthorizationCode()
	authCode := &storage.AuthorizationCode{
		Code:                code,
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		Scope:               splitScope(scope),
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		ExpiresAt:           s.now().Add(s.cfg.CodeTTL).Unix(),
	}
	if err := s.store.SaveAuthorizationCode(ctx, authCode); err != nil {
		return nil, err
	}

	return &AuthorizationResponse{
		Code:  code,
		State: state,
	}, nil
}

// Token handles the token request.
func (s *Server) Token(ctx context.Context, r *http.Request) (*TokenResponse, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errorx.ErrInvalidRequest
	}

	clientID := r.PostForm.Get("client_id")
	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, errorx.ErrInvalidClient
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		return s.handleAuthorizationCodeGrant(ctx, r, client)
	case "refresh_token":
		return s.handleRefreshTokenGrant(ctx, r, client)
	default:
		return nil, errorx.ErrUnsupportedGrantType
	}
}

// Revoke handles token revocation. Per RFC 7009 an unknown token still
// revokes cleanly; the response never reveals whether it existed.
func (s *Server) Revoke(ctx context.Context, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return errorx.ErrInvalidRequest
	}
	token := r.PostForm.Get("token")
	if token == "" {
		return errorx.ErrInvalidRequest
	}

	if _, err := s.store.GetToken(ctx, token); err == nil {
		if err := s.store.DeleteToken(ctx, token); err != nil {
			return err
		}
		s.logger.Info("access token revoked")
		return nil
	}
	if _, err := s.store.GetRefreshToken(ctx, token); err == nil {
		if err := s.store.DeleteRefreshToken(ctx, token); err != nil {
			return err
		}
		s.logger.Info("refresh token revoked")
	}
	return nil
}

// ValidateToken resolves a presented bearer token. Expired and unknown tokens
// fail with their own error codes.
func (s *Server) ValidateToken(ctx context.Context, accessToken string) (*storage.Token, error) {
	return s.store.GetToken(ctx, accessToken)
}

func (s *Server) handleAuthorizationCodeGrant(ctx context.Context, r *http.Request, client *storage.Client) (*TokenResponse, error) {
	code := r.PostForm.Get("code")
	redirectURI := r.PostForm.Get("redirect_uri")
	codeVerifier := r.PostForm.Get("code_verifier")

	if code == "" {
		return nil, errorx.ErrInvalidRequest
	}

	// The code is burned on first touch, before any further checks.
	authCode, err := s.store.ConsumeAuthorizationCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if authCode.ClientID != client.ID {
		return nil, errorx.ErrInvalidGrant
	}
	if authCode.RedirectURI != redirectURI {
		return nil, errorx.ErrInvalidRequest
	}
	if authCode.CodeChallenge != "" {
		if codeVerifier == "" {
			return nil, errorx.ErrInvalidRequest
		}
		if err := verifyCodeChallenge(codeVerifier, authCode.CodeChallenge, authCode.CodeChallengeMethod); err != nil {
			return nil, err
		}
	}

	accessToken := generateAccessToken()
	refreshToken := generateRefreshToken()
	now := s.now()

	if err := s.store.SaveToken(ctx, &storage.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ClientID:    client.ID,
		Scope:       authCode.Scope,
		ExpiresAt:   now.Add(s.cfg.AccessTokenTTL).Unix(),
	}); err != nil {
		return nil, err
	}
	if err := s.store.SaveRefreshToken(ctx, &storage.RefreshToken{
		RefreshToken: refreshToken,
		ClientID:     client.ID,
		Scope:        authCode.Scope,
		ExpiresAt:    now.Add(s.cfg.RefreshTokenTTL).Unix(),
	}); err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
		RefreshToken: refreshToken,
		Scope:        strings.Join(authCode.Scope, " "),
	}, nil
}

func (s *Server) handleRefreshTokenGrant(ctx context.Context, r *http.Request, client *storage.Client) (*TokenResponse, error) {
	refreshToken := r.PostForm.Get("refresh_token")
	if refreshToken == "" {
		return nil, errorx.ErrInvalidRequest
	}

	record, err := s.store.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, errorx.ErrInvalidGrant
	}
	if record.ClientID != client.ID {
		return nil, errorx.ErrInvalidClient
	}

	accessToken := generateAccessToken()
	if err := s.store.SaveToken(ctx, &storage.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ClientID:    client.ID,
		Scope:       record.Scope,
		ExpiresAt:   s.now().Add(s.cfg.AccessTokenTTL).Unix(),
	}); err != nil {
		return nil, err
	}

	// The refresh token is reusable until revoked; it comes back unchanged.
	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
		RefreshToken: refreshToken,
		Scope:        strings.Join(record.Scope, " "),
	}, nil
}

// Helper functions

func generateAuthorizationCode() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func generateAccessToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func generateRefreshToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func splitScope(scope string) []string {
	if scope == "" {
		return nil
	}
	return strings.Split(scope, " ")
}

func isValidRedirectURI(redirectURI string, allowedURIs []string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}

	for _, allowed := range allowedURIs {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}

		if u.Scheme == allowedURL.Scheme &&
			u.Host == allowedURL.Host &&
			strings.HasPrefix(u.Path, allowedURL.Path) {
			return true
		}
	}

	return false
}
