package storage

import (
	"context"
)

// Store defines the interface for authorization server state. Everything it
// holds is TTL-bounded; implementations expire records on their own.
type Store interface {
	CreateClient(ctx context.Context, client *Client) error
	GetClient(ctx context.Context, clientID string) (*Client, error)

	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error
	// ConsumeAuthorizationCode atomically reads and deletes a code. A code is
	// never returned twice, no matter how many callers race on it.
	ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	SaveToken(ctx context.Context, token *Token) error
	GetToken(ctx context.Context, accessToken string) (*Token, error)
	DeleteToken(ctx context.Context, accessToken string) error

	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshToken(ctx context.Context, refreshToken string) (*RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, refreshToken string) error

	Close() error
}

// Client represents a dynamically registered OAuth2 client. This flow only
// issues public clients, so there is no secret.
type Client struct {
	ID              string   `json:"client_id"`
	Name            string   `json:"client_name,omitempty"`
	RedirectURIs    []string `json:"redirect_uris"`
	GrantTypes      []string `json:"grant_types"`
	ResponseTypes   []string `json:"response_types"`
	TokenAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope           string   `json:"scope"`
	ExpiresAt       int64    `json:"expires_at"`
	CreatedAt       int64    `json:"created_at"`
}

// AuthorizationCode represents a single-use authorization code with its bound
// PKCE challenge.
type AuthorizationCode struct {
	Code                string   `json:"code"`
	ClientID            string   `json:"client_id"`
	RedirectURI         string   `json:"redirect_uri"`
	Scope               []string `json:"scope"`
	CodeChallenge       string   `json:"code_challenge,omitempty"`
	CodeChallengeMethod string   `json:"code_challenge_method,omitempty"`
	ExpiresAt           int64    `json:"expires_at"`
	CreatedAt           int64    `json:"created_at"`
}

// Token represents an issued access token.
type Token struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ClientID    string   `json:"client_id"`
	Scope       []string `json:"scope"`
	ExpiresAt   int64    `json:"expires_at"`
	CreatedAt   int64    `json:"created_at"`
}

// RefreshToken represents an issued refresh token. It stays valid until it
// expires or is revoked; redeeming it does not rotate it.
type RefreshToken struct {
	RefreshToken string   `json:"refresh_token"`
	ClientID     string   `json:"client_id"`
	Scope        []string `json:"scope"`
	ExpiresAt    int64    `json:"expires_at"`
	CreatedAt    int64    `json:"created_at"`
}
