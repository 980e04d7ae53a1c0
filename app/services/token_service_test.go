package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService() (TokenService, error) {
	return NewTokenService(
		15*time.Minute,
		7*24*time.Hour,
		"test-issuer",
		"test-audience",
		false, // useRSAKeys
		"",    // privateKeyPEM
		"",    // publicKeyPEM
		testSecret,
		nil,
	)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		useRSAKeys  bool
		privateKey  string
		publicKey   string
		secretKey   string
		expectError bool
	}{
		{name: "valid symmetric key configuration", secretKey: testSecret},
		{name: "missing secret key", expectError: true},
		{name: "rsa without keys", useRSAKeys: true, expectError: true},
		{name: "rsa with garbage keys", useRSAKeys: true, privateKey: "nope", publicKey: "nope", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(15*time.Minute, time.Hour, "iss", "aud", tt.useRSAKeys, tt.privateKey, tt.publicKey, tt.secretKey, nil)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestGenerateTokens(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	accessToken, refreshToken, err := service.GenerateTokens(123, "rahul.k", "user")
	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)
	assert.NotEmpty(t, refreshToken)
	assert.NotEqual(t, accessToken, refreshToken)
	assert.Contains(t, accessToken, "eyJ")
}

func TestValidateToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	accessToken, refreshToken, err := service.GenerateTokens(123, "priya.tl", "tl")
	require.NoError(t, err)

	tests := []struct {
		name        string
		token       string
		expectError bool
		tokenType   string
	}{
		{name: "valid access token", token: accessToken, tokenType: "access"},
		{name: "valid refresh token", token: refreshToken, tokenType: "refresh"},
		{name: "empty token", token: "", expectError: true},
		{name: "invalid token format", token: "invalid.token.format", expectError: true},
		{name: "malformed token", token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature", expectError: true},
		{name: "wrong number of parts", token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJ1c2VyX2lkIjoxMjN9", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint(123), claims.UserID)
			assert.Equal(t, "priya.tl", claims.Username)
			assert.Equal(t, "tl", claims.UserType)
			assert.Equal(t, tt.tokenType, claims.TokenType)
			assert.NotEmpty(t, claims.TokenID)
			assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
		})
	}
}

func TestRefreshToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	access, refresh, err := service.GenerateTokens(7, "neha", "user")
	require.NoError(t, err)

	t.Run("access token is rejected", func(t *testing.T) {
		_, _, err := service.RefreshToken(access)
		assert.Error(t, err)
	})

	t.Run("valid refresh token rotates", func(t *testing.T) {
		newAccess, newRefresh, err := service.RefreshToken(refresh)
		require.NoError(t, err)
		assert.NotEqual(t, refresh, newRefresh)

		claims, err := service.ValidateToken(newAccess)
		require.NoError(t, err)
		assert.Equal(t, "neha", claims.Username)
	})

	t.Run("used refresh token cannot be replayed", func(t *testing.T) {
		_, _, err := service.RefreshToken(refresh)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})
}

func TestRevokeToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	accessToken, _, err := service.GenerateTokens(123, "amit", "admin")
	require.NoError(t, err)

	assert.False(t, service.IsTokenRevoked(accessToken))
	require.NoError(t, service.RevokeToken(accessToken))
	assert.True(t, service.IsTokenRevoked(accessToken))

	claims, err := service.ValidateToken(accessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.Nil(t, claims)

	// Claims stay readable for audit purposes
	claims, err = service.GetTokenClaims(accessToken)
	require.NoError(t, err)
	assert.Equal(t, "amit", claims.Username)

	assert.Error(t, service.RevokeToken(""))
	assert.Error(t, service.RevokeToken("invalid.token"))
}

func TestTokenExpiration(t *testing.T) {
	service, err := NewTokenService(1*time.Second, 2*time.Second, "test-issuer", "test-audience", false, "", "", testSecret, nil)
	require.NoError(t, err)

	accessToken, refreshToken, err := service.GenerateTokens(123, "amit", "user")
	require.NoError(t, err)

	claims, err := service.ValidateToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(123), claims.UserID)

	time.Sleep(3 * time.Second)

	claims, err = service.ValidateToken(accessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Nil(t, claims)

	_, _, err = service.RefreshToken(refreshToken)
	assert.Error(t, err)

	// Revoking an already expired token is a no-op
	assert.NoError(t, service.RevokeToken(accessToken))
}

func TestTokenSecurity(t *testing.T) {
	service1, err := NewTokenService(15*time.Minute, time.Hour, "issuer1", "audience1", false, "", "", "test-secret-key-1-for-jwt-signing-32-chars", nil)
	require.NoError(t, err)
	service2, err := NewTokenService(15*time.Minute, time.Hour, "issuer2", "audience2", false, "", "", "test-secret-key-2-for-jwt-signing-32-chars", nil)
	require.NoError(t, err)

	token1, _, err := service1.GenerateTokens(123, "a", "user")
	require.NoError(t, err)
	token2, _, err := service2.GenerateTokens(123, "a", "user")
	require.NoError(t, err)

	_, err = service1.ValidateToken(token2)
	assert.Error(t, err)
	_, err = service2.ValidateToken(token1)
	assert.Error(t, err)
}

func TestConcurrentTokenGeneration(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	const numGoroutines = 10
	tokens := make(chan string, numGoroutines)
	errs := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(userID uint) {
			accessToken, _, err := service.GenerateTokens(userID, "agent", "user")
			if err != nil {
				errs <- err
				return
			}
			tokens <- accessToken
		}(uint(i + 1))
	}

	generated := make(map[string]bool)
	for i := 0; i < numGoroutines; i++ {
		select {
		case token := <-tokens:
			assert.False(t, generated[token], "Duplicate token generated")
			generated[token] = true
		case err := <-errs:
			t.Errorf("Error generating token: %v", err)
		}
	}
	assert.Len(t, generated, numGoroutines)
}

func TestMemoryRevocationStore(t *testing.T) {
	store := NewMemoryRevocationStore()
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "short", 20*time.Millisecond))
	require.NoError(t, store.Revoke(ctx, "long", time.Hour))

	revoked, err := store.IsRevoked(ctx, "short")
	require.NoError(t, err)
	assert.True(t, revoked)

	time.Sleep(40 * time.Millisecond)

	revoked, _ = store.IsRevoked(ctx, "short")
	assert.False(t, revoked)
	revoked, _ = store.IsRevoked(ctx, "long")
	assert.True(t, revoked)
	revoked, _ = store.IsRevoked(ctx, "unknown")
	assert.False(t, revoked)
}

func BenchmarkValidateToken(b *testing.B) {
	service, err := createTestTokenService()
	require.NoError(b, err)

	token, _, err := service.GenerateTokens(123, "bench", "user")
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := service.ValidateToken(token)
		require.NoError(b, err)
	}
}
