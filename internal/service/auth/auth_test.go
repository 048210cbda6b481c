package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/config"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "thisisasecretkeythatis32charslong!!"

func newTestService(t *testing.T, now time.Time) *hmacJWTService {
	t.Helper()
	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	impl := svc.(*hmacJWTService)
	impl.timeFunc = func() time.Time { return now }
	return impl
}

func TestNewJWTServiceValidation(t *testing.T) {
	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 60})
	assert.Error(t, err)

	_, err = NewJWTService(config.AuthConfig{JWTSecret: testSecret})
	assert.Error(t, err)
}

func TestTokenRoundTripCarriesIdentity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Now())
	userID := uuid.New()

	token, err := svc.GenerateToken(ctx, userID, domain.RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, domain.Identity{ID: userID, Role: domain.RoleAdmin}, claims.Identity())
	assert.NotEmpty(t, claims.ID)
}

func TestGenerateTokenRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t, time.Now())
	_, err := svc.GenerateToken(context.Background(), uuid.New(), domain.Role("root"))
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestValidateTokenFailures(t *testing.T) {
	ctx := context.Background()
	issued := time.Now()
	svc := newTestService(t, issued)
	token, err := svc.GenerateToken(ctx, uuid.New(), domain.RoleMember)
	require.NoError(t, err)

	t.Run("missing", func(t *testing.T) {
		_, err := svc.ValidateToken(ctx, "")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := svc.ValidateToken(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := newTestService(t, issued.Add(3*time.Hour))
		_, err := later.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewJWTService(config.AuthConfig{
			JWTSecret:            "another-secret-that-is-32-chars-long!!",
			TokenLifetimeMinutes: 60,
		})
		require.NoError(t, err)
		_, err = other.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing role claim", func(t *testing.T) {
		claims := jwtCustomClaims{
			UserID: uuid.New(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
			},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = svc.ValidateToken(ctx, raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestBcryptVerifier(t *testing.T) {
	v := NewBcryptVerifier(4)

	hash, err := v.Hash("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)

	assert.NoError(t, v.Compare(hash, "password123"))
	assert.Error(t, v.Compare(hash, "wrong-password"))

	assert.Equal(t, 10, NewBcryptVerifier(0).cost, "out of range cost falls back to default")
}
