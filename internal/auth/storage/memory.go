package storage

import (
	"context"
	"time"

	"github.com/girderhq/girder/internal/common/errorx"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStorage implements Store in process memory. Each entity class lives in
// its own ttl cache; records expire on their own schedule.
type MemoryStorage struct {
	clients *ttlcache.Cache[string, *Client]
	codes   *ttlcache.Cache[string, *AuthorizationCode]
	tokens  *ttlcache.Cache[string, *Token]
	refresh *ttlcache.Cache[string, *RefreshToken]
}

// NewMemoryStorage creates a new memory storage instance.
func NewMemoryStorage() *MemoryStorage {
	s := &MemoryStorage{
		clients: ttlcache.New(ttlcache.WithDisableTouchOnHit[string, *Client]()),
		codes:   ttlcache.New(ttlcache.WithDisableTouchOnHit[string, *AuthorizationCode]()),
		tokens:  ttlcache.New(ttlcache.WithDisableTouchOnHit[string, *Token]()),
		refresh: ttlcache.New(ttlcache.WithDisableTouchOnHit[string, *RefreshToken]()),
	}
	go s.clients.Start()
	go s.codes.Start()
	go s.tokens.Start()
	go s.refresh.Start()
	return s
}

func ttlUntil(expiresAt int64) time.Duration {
	if expiresAt == 0 {
		return ttlcache.NoTTL
	}
	return time.Until(time.Unix(expiresAt, 0))
}

// CreateClient creates a new client registration.
func (s *MemoryStorage) CreateClient(ctx context.Context, client *Client) error {
	if s.clients.Get(client.ID) != nil {
		return errorx.ErrClientAlreadyExists
	}
	client.CreatedAt = time.Now().Unix()
	s.clients.Set(client.ID, client, ttlUntil(client.ExpiresAt))
	return nil
}

// GetClient retrieves a client by ID.
func (s *MemoryStorage) GetClient(ctx context.Context, clientID string) (*Client, error) {
	item := s.clients.Get(clientID)
	if item == nil {
		return nil, errorx.ErrInvalidClient
	}
	return item.Value(), nil
}

// SaveAuthorizationCode saves an authorization code.
func (s *MemoryStorage) SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	code.CreatedAt = time.Now().Unix()
	s.codes.Set(code.Code, code, ttlUntil(code.ExpiresAt))
	return nil
}

// ConsumeAuthorizationCode atomically reads and deletes an authorization code.
func (s *MemoryStorage) ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	item, present := s.codes.GetAndDelete(code)
	if !present || item == nil {
		return nil, errorx.ErrAuthorizationCodeNotFound
	}
	authCode := item.Value()
	if authCode.ExpiresAt < time.Now().Unix() {
		return nil, errorx.ErrAuthorizationCodeExpired
	}
	return authCode, nil
}

// SaveToken saves an access token.
func (s *MemoryStorage) SaveToken(ctx context.Context, token *Token) error {
	token.CreatedAt = time.Now().Unix()
	s.tokens.Set(token.AccessToken, token, ttlUntil(token.ExpiresAt))
	return nil
}

// GetToken retrieves an access token.
func (s *MemoryStorage) GetToken(ctx context.Context, accessToken string) (*Token, error) {
	item := s.tokens.Get(accessToken)
	if item == nil {
		return nil, errorx.ErrTokenNotFound
	}
	token := item.Value()
	if token.ExpiresAt < time.Now().Unix() {
		s.tokens.Delete(accessToken)
		return nil, errorx.ErrTokenExpired
	}
	return token, nil
}

// DeleteToken deletes an access token.
func (s *MemoryStorage) DeleteToken(ctx context.Context, accessToken string) error {
	s.tokens.Delete(accessToken)
	return nil
}

// SaveRefreshToken saves a refresh token.
func (s *MemoryStorage) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	token.CreatedAt = time.Now().Unix()
	s.refresh.Set(token.RefreshToken, token, ttlUntil(token.ExpiresAt))
	return nil
}

// GetRefreshToken retrieves a refresh token.
func (s *MemoryStorage) GetRefreshToken(ctx context.Context, refreshToken string) (*RefreshToken, error) {
	item := s.refresh.Get(refreshToken)
	if item == nil {
		return nil, errorx.ErrTokenNotFound
	}
	token := item.Value()
	if token.ExpiresAt < time.Now().Unix() {
		s.refresh.Delete(refreshToken)
		return nil, errorx.ErrTokenExpired
	}
	return token, nil
}

// DeleteRefreshToken deletes a refresh token.
func (s *MemoryStorage) DeleteRefreshToken(ctx context.Context, refreshToken string) error {
	s.refresh.Delete(refreshToken)
	return nil
}

// Close stops the cache janitors.
func (s *MemoryStorage) Close() error {
	s.clients.Stop()
	s.codes.Stop()
	s.tokens.Stop()
	s.refresh.Stop()
	return nil
}
