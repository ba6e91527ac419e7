package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/credchain-api/internal/auth"
	"github.com/noah-isme/credchain-api/internal/chain"
	"github.com/noah-isme/credchain-api/internal/models"
	"github.com/noah-isme/credchain-api/pkg/config"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
)

type walletConnector interface {
	Connect(ctx context.Context) (*chain.Session, error)
}

// SessionService turns wallet connections into bearer tokens the HTTP layer
// can verify without a round trip to the wallet provider.
type SessionService struct {
	wallet walletConnector
	policy auth.Policy
	cache  chainReadCache
	cfg    config.JWTConfig
	logger *zap.Logger
}

// NewSessionService constructs the service.
func NewSessionService(wallet walletConnector, policy auth.Policy, cache chainReadCache, cfg config.JWTConfig, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = 24 * time.Hour
	}
	return &SessionService{wallet: wallet, policy: policy, cache: cache, cfg: cfg, logger: logger}
}

// Connect establishes a wallet session and mints a signed token for it.
func (s *SessionService) Connect(ctx context.Context) (*models.WalletSession, error) {
	session, err := s.wallet.Connect(ctx)
	if err != nil {
		return nil, err
	}

	isAdmin := auth.IsAdmin(s.policy, session.Account)
	now := time.Now().UTC()
	expiresAt := now.Add(s.cfg.Expiration)
	claims := models.SessionClaims{
		Account: session.Account,
		ChainID: session.ChainID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			Subject:   session.Account,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign session token")
	}

	s.logger.Info("session token issued",
		zap.String("account", session.Account),
		zap.Bool("is_admin", isAdmin),
	)
	return &models.WalletSession{
		Account:   session.Account,
		ChainID:   session.ChainID,
		IsAdmin:   isAdmin,
		Token:     signed,
		ExpiresAt: expiresAt.Unix(),
	}, nil
}

func revokedTokenKey(jti string) string {
	return "session:revoked:" + jti
}

// ValidateToken parses and verifies a session token, rejecting revoked ones.
func (s *SessionService) ValidateToken(ctx context.Context, tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired session token")
	}

	if s.cache != nil && claims.ID != "" {
		var revoked bool
		if err := s.cache.Get(ctx, revokedTokenKey(claims.ID), &revoked); err == nil && revoked {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session has been disconnected")
		}
	}
	return claims, nil
}

// Disconnect revokes the token for the remainder of its lifetime. The entry
// expires with the token, so the revocation list stays bounded.
func (s *SessionService) Disconnect(ctx context.Context, claims *models.SessionClaims) error {
	if s.cache == nil || claims.ID == "" {
		return nil
	}
	ttl := s.cfg.Expiration
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	if err := s.cache.Set(ctx, revokedTokenKey(claims.ID), true, ttl); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke session")
	}
	s.logger.Info("session disconnected", zap.String("account", claims.Account))
	return nil
}
