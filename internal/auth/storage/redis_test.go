package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/girderhq/girder/internal/common/cnst"
	"github.com/girderhq/girder/internal/common/errorx"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func newTestRedisStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	s, err := NewRedisStorage(cnst.RedisClusterTypeSingle, mr.Addr(), "", "", "", 0, "girder-test")
	if err != nil {
		mr.Close()
		t.Fatalf("failed to create RedisStorage: %v", err)
	}
	return s, mr
}

func TestRedisStorage_ClientCRUD(t *testing.T) {
	s, mr := newTestRedisStorage(t)
	defer mr.Close()

	ctx := context.Background()

	c := &Client{ID: "c1", RedirectURIs: []string{"http://app/cb"}, TokenAuthMethod: "none"}
	assert.NoError(t, s.CreateClient(ctx, c))
	// duplicate
	assert.ErrorIs(t, s.CreateClient(ctx, c), errorx.ErrClientAlreadyExists)

	got, err := s.GetClient(ctx, "c1")
	assert.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, []string{"http://app/cb"}, got.RedirectURIs)

	_, err = s.GetClient(ctx, "absent")
	assert.ErrorIs(t, err, errorx.ErrInvalidClient)
}

func TestRedisStorage_AuthorizationCodeSingleUse(t *testing.T) {
	s, mr := newTestRedisStorage(t)
	defer mr.Close()

	ctx := context.Background()

	code := &AuthorizationCode{
		Code:                "code1",
		ClientID:            "c1",
		RedirectURI:         "http://app/cb",
		Scope:               []string{"projects:read"},
		CodeChallenge:       "challenge-1",
		CodeChallengeMethod: "S256",
		ExpiresAt:           time.Now().Add(5 * time.Minute).Unix(),
	}
	assert.NoError(t, s.SaveAuthorizationCode(ctx, code))

	got, err := s.ConsumeAuthorizationCode(ctx, "code1")
	assert.NoError(t, err)
	assert.Equal(t, "c1", got.ClientID)
	assert.Equal(t, "challenge-1", got.CodeChallenge)
	assert.Equal(t, "S256", got.CodeChallengeMethod)

	_, err = s.ConsumeAuthorizationCode(ctx, "code1")
	assert.ErrorIs(t, err, errorx.ErrAuthorizationCodeNotFound)
}

func TestRedisStorage_ExpiredAuthorizationCode(t *testing.T) {
	s, mr := newTestRedisStorage(t)
	defer mr.Close()

	ctx := context.Background()

	code := &AuthorizationCode{Code: "code2", ClientID: "c1", ExpiresAt: time.Now().Add(-time.Second).Unix()}
	assert.NoError(t, s.SaveAuthorizationCode(ctx, code))
	_, err := s.ConsumeAuthorizationCode(ctx, "code2")
	assert.ErrorIs(t, err, errorx.ErrAuthorizationCodeExpired)
}

func TestRedisStorage_TokenFlow(t *testing.T) {
	s, mr := newTestRedisStorage(t)
	defer mr.Close()

	ctx := context.Background()

	tok := &Token{AccessToken: "t1", TokenType: "Bearer", ClientID: "c1", Scope: []string{"projects:read"}, ExpiresAt: time.Now().Add(time.Hour).Unix()}
	assert.NoError(t, s.SaveToken(ctx, tok))
	assert.Greater(t, mr.TTL(s.tokenKey("t1")), time.Duration(0))

	got, err := s.GetToken(ctx, "t1")
	assert.NoError(t, err)
	assert.Equal(t, "c1", got.ClientID)
	assert.Equal(t, []string{"projects:read"}, got.Scope)

	assert.NoError(t, s.DeleteToken(ctx, "t1"))
	_, err = s.GetToken(ctx, "t1")
	assert.ErrorIs(t, err, errorx.ErrTokenNotFound)

	tok2 := &Token{AccessToken: "t2", ClientID: "c2", ExpiresAt: time.Now().Add(-time.Second).Unix()}
	assert.NoError(t, s.SaveToken(ctx, tok2))
	_, err = s.GetToken(ctx, "t2")
	assert.ErrorIs(t, err, errorx.ErrTokenExpired)
}

func TestRedisStorage_RefreshTokenFlow(t *testing.T) {
	s, mr := newTestRedisStorage(t)
	defer mr.Close()

	ctx := context.Background()

	tok := &RefreshToken{RefreshToken: "r1", ClientID: "c1", Scope: []string{"projects:read"}, ExpiresAt: time.Now().Add(time.Hour).Unix()}
	assert.NoError(t, s.SaveRefreshToken(ctx, tok))

	// reads do not consume
	for i := 0; i < 3; i++ {
		got, err := s.GetRefreshToken(ctx, "r1")
		assert.NoError(t, err)
		assert.Equal(t, "c1", got.ClientID)
	}

	assert.NoError(t, s.DeleteRefreshToken(ctx, "r1"))
	_, err := s.GetRefreshToken(ctx, "r1")
	assert.ErrorIs(t, err, errorx.ErrTokenNotFound)

	tok2 := &RefreshToken{RefreshToken: "r2", ClientID: "c2", ExpiresAt: time.Now().Add(-time.Second).Unix()}
	assert.NoError(t, s.SaveRefreshToken(ctx, tok2))
	_, err = s.GetRefreshToken(ctx, "r2")
	assert.ErrorIs(t, err, errorx.ErrTokenExpired)
}

func TestRedisStorage_KeysCarryPrefix(t *testing.T) {
	s, mr := newTestRedisStorage(t)
	defer mr.Close()

	ctx := context.Background()

	_ = s.CreateClient(ctx, &Client{ID: "c1"})
	_ = s.SaveToken(ctx, &Token{AccessToken: "t1", ExpiresAt: time.Now().Add(time.Hour).Unix()})

	keys := mr.Keys()
	assert.NotEmpty(t, keys)
	for _, key := range keys {
		assert.True(t, strings.HasPrefix(key, "girder-test:oauth:"), "unexpected key %q", key)
	}
}

func TestNewRedisStorage_ConnectionError(t *testing.T) {
	// invalid address should fail to ping
	s, err := NewRedisStorage(cnst.RedisClusterTypeSingle, "127.0.0.1:0", "", "", "", 0, "")
	assert.Nil(t, s)
	assert.Error(t, err)
}
