// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/app/services"
	"github.com/gofiber/fiber/v3"
)

// Locals keys set by Authenticate
const (
	LocalUserID      = "user_id"
	LocalUsername    = "username"
	LocalUserType    = "user_type"
	LocalAccessToken = "access_token"
	LocalTokenClaims = "token_claims"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate is the middleware function that validates JWT access tokens
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "MISSING_AUTHORIZATION_HEADER", "Authorization header is required")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'")
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return unauthorized(c, "MISSING_ACCESS_TOKEN", "Access token is required")
		}

		// ValidateToken also checks revocation
		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "TOKEN_EXPIRED", "Access token has expired")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "TOKEN_INVALID", "Invalid access token")
			case errors.Is(err, services.ErrTokenRevoked):
				return unauthorized(c, "TOKEN_REVOKED", "Access token has been revoked")
			default:
				return unauthorized(c, "TOKEN_VALIDATION_FAILED", "Token validation failed")
			}
		}

		if claims.TokenType != "access" {
			return unauthorized(c, "TOKEN_INVALID", "Refresh tokens cannot be used for API access")
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalUsername, claims.Username)
		c.Locals(LocalUserType, claims.UserType)
		c.Locals(LocalAccessToken, token)
		c.Locals(LocalTokenClaims, claims)

		return c.Next()
	}
}

// RequireRole rejects users whose type is not one of userTypes. It must run after Authenticate.
func RequireRole(userTypes ...string) fiber.Handler {
	return func(c fiber.Ctx) error {
		userType, _ := c.Locals(LocalUserType).(string)
		if !slices.Contains(userTypes, userType) {
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Message: "You do not have permission to access this resource",
				Error:   dto.ErrorDetail{Code: "FORBIDDEN"},
			})
		}
		return c.Next()
	}
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// GetUserIDFromContext extracts the authenticated user id
func GetUserIDFromContext(c fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals(LocalUserID).(uint)
	return userID, ok && userID != 0
}

// GetUsernameFromContext extracts the authenticated username
func GetUsernameFromContext(c fiber.Ctx) (string, bool) {
	username, ok := c.Locals(LocalUsername).(string)
	return username, ok && username != ""
}

// GetUserTypeFromContext extracts the authenticated user type
func GetUserTypeFromContext(c fiber.Ctx) string {
	userType, _ := c.Locals(LocalUserType).(string)
	return userType
}

// GetAccessTokenFromContext returns the raw bearer token of the request
func GetAccessTokenFromContext(c fiber.Ctx) string {
	token, _ := c.Locals(LocalAccessToken).(string)
	return token
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals(LocalTokenClaims).(*services.TokenClaims)
	return claims, ok
}
