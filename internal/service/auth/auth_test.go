package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	xerrors "dedupe-service/internal/pkg/errors"
	"dedupe-service/internal/pkg/jwt"
	"dedupe-service/internal/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*AuthService, *jwt.Generator) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	gen := jwt.NewGenerator(priv, "iss", "aud", "kid", time.Hour)
	ver := jwt.NewVerifier(&priv.PublicKey, "iss", "aud")
	return NewAuthService(ver, session.NewMemoryBlacklist(), time.Hour, zap.NewNop()), gen
}

func TestValidateToken(t *testing.T) {
	svc, gen := newTestService(t)
	ctx := context.Background()

	token, jti, err := gen.Generate("op-1", "Ana", []string{jwt.RoleOperator})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.OperatorID)
	assert.Equal(t, jti, claims.ID)

	_, err = svc.ValidateToken(ctx, token+"x")
	assert.Error(t, err)
}

func TestLogoutRevokesOwnToken(t *testing.T) {
	svc, gen := newTestService(t)
	ctx := context.Background()

	token, _, err := gen.Generate("op-1", "Ana", []string{jwt.RoleOperator})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims.OperatorID, claims.ID, claims.ExpiresAt.Time))

	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRevokeToken(t *testing.T) {
	svc, gen := newTestService(t)
	ctx := context.Background()

	token, jti, err := gen.Generate("op-2", "Luis", nil)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeToken(ctx, "admin-1", jti))
	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)

	assert.True(t, xerrors.Is(svc.RevokeToken(ctx, "admin-1", ""), xerrors.ErrInvalidInput))
}

func TestRevokeWithoutBlacklist(t *testing.T) {
	svc := NewAuthService(nil, nil, time.Hour, zap.NewNop())

	err := svc.RevokeToken(context.Background(), "admin", "jti")
	assert.True(t, xerrors.Is(err, xerrors.ErrInternal))

	_, err = svc.ValidateToken(context.Background(), "token")
	assert.True(t, xerrors.Is(err, xerrors.ErrUnauthorized))
}

func TestOnRevokeRunsAfterBlacklisting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var dropped []string
	svc.OnRevoke(func(jti string) { dropped = append(dropped, jti) })

	require.NoError(t, svc.RevokeToken(ctx, "admin-1", "jti-a"))
	require.NoError(t, svc.Logout(ctx, "op-1", "jti-b", time.Now().Add(time.Minute)))
	assert.Equal(t, []string{"jti-a", "jti-b"}, dropped)

	failing := NewAuthService(nil, nil, time.Hour, zap.NewNop())
	failing.OnRevoke(func(jti string) { dropped = append(dropped, jti) })
	require.Error(t, failing.RevokeToken(ctx, "admin-1", "jti-c"))
	assert.Len(t, dropped, 2, "hook does not run when revocation fails")
}
