package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-validation"

func newTestService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret: testSecret,
		Issuer: "stockledger",
	})
}

// signToken simulates a token minted by the identity service
func signToken(t *testing.T, secret string, claims *Claims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(tenantID, userID uuid.UUID) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    "stockledger",
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID:    tenantID.String(),
		UserID:      userID.String(),
		Username:    "warehouse-operator",
		Permissions: []string{"inventory:read", "inventory:write"},
	}
}

func TestJWTService_ValidateAccessToken(t *testing.T) {
	service := newTestService()
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("validates a well-formed token", func(t *testing.T) {
		token := signToken(t, testSecret, validClaims(tenantID, userID))

		claims, err := service.ValidateAccessToken(token)
		require.NoError(t, err)

		gotTenant, err := claims.GetTenantUUID()
		require.NoError(t, err)
		assert.Equal(t, tenantID, gotTenant)

		gotUser, err := claims.GetUserUUID()
		require.NoError(t, err)
		assert.Equal(t, userID, gotUser)
	})

	t.Run("rejects a token signed with the wrong secret", func(t *testing.T) {
		token := signToken(t, "some-other-secret", validClaims(tenantID, userID))

		_, err := service.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		claims := validClaims(tenantID, userID)
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		claims.NotBefore = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		token := signToken(t, testSecret, claims)

		_, err := service.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("rejects a token without tenant_id", func(t *testing.T) {
		claims := validClaims(tenantID, userID)
		claims.TenantID = ""
		token := signToken(t, testSecret, claims)

		_, err := service.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrMissingTenantID)
	})

	t.Run("rejects a token without user_id", func(t *testing.T) {
		claims := validClaims(tenantID, userID)
		claims.UserID = ""
		token := signToken(t, testSecret, claims)

		_, err := service.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrMissingUserID)
	})

	t.Run("rejects garbage input", func(t *testing.T) {
		_, err := service.ValidateAccessToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestClaims_HasPermission(t *testing.T) {
	claims := validClaims(uuid.New(), uuid.New())

	assert.True(t, claims.HasPermission("inventory:write"))
	assert.False(t, claims.HasPermission("billing:write"))
}
