package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credchain-api/internal/auth"
	"github.com/noah-isme/credchain-api/internal/chain"
	"github.com/noah-isme/credchain-api/pkg/config"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
)

type walletStub struct {
	session *chain.Session
	err     error
}

func (s *walletStub) Connect(ctx context.Context) (*chain.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

type revocationCacheStub struct {
	cacheStub
	revoked map[string]bool
}

func (s *revocationCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.revoked == nil {
		s.revoked = map[string]bool{}
	}
	s.revoked[key] = true
	return nil
}

func (s *revocationCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	if s.revoked[key] {
		if flag, ok := dest.(*bool); ok {
			*flag = true
		}
		return nil
	}
	return appErrors.ErrCacheMiss
}

func sessionJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "credchain-test"}
}

func TestSessionServiceConnectMintsToken(t *testing.T) {
	wallet := &walletStub{session: &chain.Session{Account: testAdmin, ChainID: 11155111}}
	service := NewSessionService(wallet, auth.NewAdminPolicy(testAdmin), &cacheStub{}, sessionJWTConfig(), nil)

	session, err := service.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAdmin, session.Account)
	assert.True(t, session.IsAdmin)
	require.NotEmpty(t, session.Token)

	claims, err := service.ValidateToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, testAdmin, claims.Account)
	assert.Equal(t, uint64(11155111), claims.ChainID)
	assert.True(t, claims.IsAdmin)
}

func TestSessionServiceConnectNonAdmin(t *testing.T) {
	wallet := &walletStub{session: &chain.Session{Account: testInstitution, ChainID: 11155111}}
	service := NewSessionService(wallet, auth.NewAdminPolicy(testAdmin), &cacheStub{}, sessionJWTConfig(), nil)

	session, err := service.Connect(context.Background())
	require.NoError(t, err)
	assert.False(t, session.IsAdmin)
}

func TestSessionServiceConnectWalletRejected(t *testing.T) {
	wallet := &walletStub{err: appErrors.Clone(appErrors.ErrWalletRejected, "user rejected")}
	service := NewSessionService(wallet, auth.NewAdminPolicy(testAdmin), &cacheStub{}, sessionJWTConfig(), nil)

	_, err := service.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrWalletRejected.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceValidateRejectsGarbage(t *testing.T) {
	service := NewSessionService(&walletStub{}, auth.NewAdminPolicy(testAdmin), &cacheStub{}, sessionJWTConfig(), nil)
	_, err := service.ValidateToken(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceValidateRejectsWrongSecret(t *testing.T) {
	wallet := &walletStub{session: &chain.Session{Account: testAdmin, ChainID: 11155111}}
	minter := NewSessionService(wallet, auth.NewAdminPolicy(testAdmin), &cacheStub{}, sessionJWTConfig(), nil)
	session, err := minter.Connect(context.Background())
	require.NoError(t, err)

	other := NewSessionService(wallet, auth.NewAdminPolicy(testAdmin), &cacheStub{}, config.JWTConfig{Secret: "different", Expiration: time.Hour}, nil)
	_, err = other.ValidateToken(context.Background(), session.Token)
	require.Error(t, err)
}

func TestSessionServiceDisconnectRevokesToken(t *testing.T) {
	wallet := &walletStub{session: &chain.Session{Account: testAdmin, ChainID: 11155111}}
	cache := &revocationCacheStub{}
	service := NewSessionService(wallet, auth.NewAdminPolicy(testAdmin), cache, sessionJWTConfig(), nil)

	session, err := service.Connect(context.Background())
	require.NoError(t, err)

	claims, err := service.ValidateToken(context.Background(), session.Token)
	require.NoError(t, err)
	require.NoError(t, service.Disconnect(context.Background(), claims))

	_, err = service.ValidateToken(context.Background(), session.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
