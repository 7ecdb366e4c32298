// internal/service/auth/auth.go
package auth

import (
	"context"
	"fmt"
	"time"

	xerrors "dedupe-service/internal/pkg/errors"
	"dedupe-service/internal/pkg/jwt"
	"dedupe-service/internal/pkg/session"

	"go.uber.org/zap"
)

// ErrTokenRevoked is returned for tokens on the blacklist. It wraps
// xerrors.ErrUnauthorized.
var ErrTokenRevoked = fmt.Errorf("%w: token has been revoked", xerrors.ErrUnauthorized)

type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

// AuthService validates operator tokens issued elsewhere and revokes them.
// Tokens are never minted here.
type AuthService struct {
	verifier  TokenVerifier
	blacklist session.Blacklist
	tokenTTL  time.Duration
	logger    *zap.Logger

	onRevoke []func(jti string)
}

func NewAuthService(verifier TokenVerifier, blacklist session.Blacklist, tokenTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		verifier:  verifier,
		blacklist: blacklist,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// ValidateToken validates a JWT token and checks the blacklist
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	if s.verifier == nil {
		return nil, fmt.Errorf("%w: no token verifier configured", xerrors.ErrUnauthorized)
	}

	claims, err := s.verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token: %w", xerrors.ErrUnauthorized, err)
	}

	if s.blacklist != nil && claims.ID != "" {
		blacklisted, err := s.blacklist.IsTokenBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check blacklist: %w", err)
		}
		if blacklisted {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Logout revokes the caller's own token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, operatorID, jti string, expiresAt time.Time) error {
	if jti == "" {
		return xerrors.Invalid("token has no id to revoke")
	}

	ttl := time.Until(expiresAt)
	if expiresAt.IsZero() {
		ttl = s.tokenTTL
	}
	if err := s.revoke(ctx, jti, ttl); err != nil {
		return err
	}

	s.logger.Info("operator logged out", zap.String("operator_id", operatorID), zap.String("jti", jti))
	return nil
}

// RevokeToken blacklists another operator's token. The token's expiry is
// unknown here, so it is held for the full configured token lifetime.
func (s *AuthService) RevokeToken(ctx context.Context, revokedBy, jti string) error {
	if jti == "" {
		return xerrors.Invalid("jti is required")
	}
	if err := s.revoke(ctx, jti, s.tokenTTL); err != nil {
		return err
	}

	s.logger.Warn("token revoked", zap.String("jti", jti), zap.String("revoked_by", revokedBy))
	return nil
}

// OnRevoke registers fn to run after a token is blacklisted, e.g. to drop
// live connections opened with it.
func (s *AuthService) OnRevoke(fn func(jti string)) {
	s.onRevoke = append(s.onRevoke, fn)
}

func (s *AuthService) revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if s.blacklist == nil {
		return fmt.Errorf("%w: token revocation is not configured", xerrors.ErrInternal)
	}
	if err := s.blacklist.BlacklistToken(ctx, jti, ttl); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	for _, fn := range s.onRevoke {
		fn(jti)
	}
	return nil
}
