package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/girderhq/girder/internal/common/cnst"
	"github.com/girderhq/girder/internal/common/errorx"
	"github.com/girderhq/girder/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements Store on Redis. Records are JSON blobs with native
// TTLs; single-use reads go through GETDEL so redemption stays atomic across
// instances.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStorage creates a new Redis storage instance.
func NewRedisStorage(clusterType, addr, masterName, username, password string, db int, prefix string) (*RedisStorage, error) {
	addrs := utils.SplitList(addr, ";", ",")
	redisOptions := &redis.UniversalOptions{
		Addrs:    addrs,
		Username: username,
		Password: password,
	}
	if clusterType == cnst.RedisClusterTypeSentinel {
		redisOptions.MasterName = masterName
	}
	if clusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		redisOptions.DB = db
	}
	client := redis.NewUniversalClient(redisOptions)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if prefix == "" {
		prefix = "girder"
	}
	return &RedisStorage{
		client: client,
		prefix: prefix,
	}, nil
}

func (s *RedisStorage) clientKey(id string) string   { return s.prefix + ":oauth:client:" + id }
func (s *RedisStorage) codeKey(code string) string   { return s.prefix + ":oauth:code:" + code }
func (s *RedisStorage) tokenKey(tok string) string   { return s.prefix + ":oauth:token:" + tok }
func (s *RedisStorage) refreshKey(tok string) string { return s.prefix + ":oauth:refresh:" + tok }

func redisTTL(expiresAt int64) time.Duration {
	if expiresAt == 0 {
		return 0
	}
	ttl := time.Until(time.Unix(expiresAt, 0))
	if ttl <= 0 {
		// Already-expired records still get a key, briefly, so a read can
		// report expiry instead of absence.
		return time.Second
	}
	return ttl
}

// CreateClient creates a new client registration.
func (s *RedisStorage) CreateClient(ctx context.Context, client *Client) error {
	client.CreatedAt = time.Now().Unix()
	data, err := json.Marshal(client)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.clientKey(client.ID), data, redisTTL(client.ExpiresAt)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errorx.ErrClientAlreadyExists
	}
	return nil
}

// GetClient retrieves a client by ID.
func (s *RedisStorage) GetClient(ctx context.Context, clientID string) (*Client, error) {
	data, err := s.client.Get(ctx, s.clientKey(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errorx.ErrInvalidClient
		}
		return nil, err
	}

	var client Client
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, err
	}
	return &client, nil
}

// SaveAuthorizationCode saves an authorization code.
func (s *RedisStorage) SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	code.CreatedAt = time.Now().Unix()
	data, err := json.Marshal(code)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.codeKey(code.Code), data, redisTTL(code.ExpiresAt)).Err()
}

// ConsumeAuthorizationCode atomically reads and deletes an authorization code.
func (s *RedisStorage) ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	data, err := s.client.GetDel(ctx, s.codeKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errorx.ErrAuthorizationCodeNotFound
		}
		return nil, err
	}

	var authCode AuthorizationCode
	if err := json.Unmarshal(data, &authCode); err != nil {
		return nil, err
	}
	if authCode.ExpiresAt < time.Now().Unix() {
		return nil, errorx.ErrAuthorizationCodeExpired
	}
	return &authCode, nil
}

// SaveToken saves an access token.
func (s *RedisStorage) SaveToken(ctx context.Context, token *Token) error {
	token.CreatedAt = time.Now().Unix()
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.tokenKey(token.AccessToken), data, redisTTL(token.ExpiresAt)).Err()
}

// GetToken retrieves an access token.
func (s *RedisStorage) GetToken(ctx context.Context, accessToken string) (*Token, error) {
	data, err := s.client.Get(ctx, s.tokenKey(accessToken)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errorx.ErrTokenNotFound
		}
		return nil, err
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	if token.ExpiresAt < time.Now().Unix() {
		s.client.Del(ctx, s.tokenKey(accessToken))
		return nil, errorx.ErrTokenExpired
	}
	return &token, nil
}

// DeleteToken deletes an access token.
func (s *RedisStorage) DeleteToken(ctx context.Context, accessToken string) error {
	return s.client.Del(ctx, s.tokenKey(accessToken)).Err()
}

// SaveRefreshToken saves a refresh token.
func (s *RedisStorage) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	token.CreatedAt = time.Now().Unix()
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.refreshKey(token.RefreshToken), data, redisTTL(token.ExpiresAt)).Err()
}

// GetRefreshToken retrieves a refresh token.
func (s *RedisStorage) GetRefreshToken(ctx context.Context, refreshToken string) (*RefreshToken, error) {
	data, err := s.client.Get(ctx, s.refreshKey(refreshToken)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errorx.ErrTokenNotFound
		}
		return nil, err
	}

	var token RefreshToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	if token.ExpiresAt < time.Now().Unix() {
		s.client.Del(ctx, s.refreshKey(refreshToken))
		return nil, errorx.ErrTokenExpired
	}
	return &token, nil
}

// DeleteRefreshToken deletes a refresh token.
func (s *RedisStorage) DeleteRefreshToken(ctx context.Context, refreshToken string) error {
	return s.client.Del(ctx, s.refreshKey(refreshToken)).Err()
}

// Close closes the Redis connection.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
