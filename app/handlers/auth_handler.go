package handlers

import (
	"log"

	"github.com/amirphl/leaddesk/app/dto"
	businessflow "github.com/amirphl/leaddesk/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Register(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
	Me(c fiber.Ctx) error
	ForgotPassword(c fiber.Ctx) error
	ResetPassword(c fiber.Ctx) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authFlow          businessflow.AuthFlow
	passwordResetFlow businessflow.PasswordResetFlow
	validator         *validator.Validate
}

func (h *AuthHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AuthHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authFlow businessflow.AuthFlow, passwordResetFlow businessflow.PasswordResetFlow) *AuthHandler {
	return &AuthHandler{
		authFlow:          authFlow,
		passwordResetFlow: passwordResetFlow,
		validator:         newValidator(),
	}
}

// Register handles account creation
// @Summary Register User
// @Description Create an admin, team lead or agent account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Account data"
// @Success 201 {object} dto.APIResponse{data=dto.UserDTO} "Account created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Username or email already exists"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/users/register [post]
func (h *AuthHandler) Register(c fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/users/register")
	defer cancel()

	user, err := h.authFlow.Register(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsUsernameTaken(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Username already exists", "USERNAME_EXISTS", nil)
		}
		if businessflow.IsEmailTaken(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Email already exists", "EMAIL_EXISTS", nil)
		}
		if businessflow.IsInvalidUserType(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "User type must be admin, tl or user", "INVALID_USER_TYPE", nil)
		}
		if businessflow.IsTeamLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Team lead not found", "TEAM_LEAD_NOT_FOUND", nil)
		}

		log.Println("Register failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Registration failed", "REGISTER_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "User registered successfully", user)
}

// Login handles username or email login
// @Summary User Login
// @Description Authenticate with a username or email address and a password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/users/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/users/login")
	defer cancel()

	result, err := h.authFlow.Login(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsInvalidCredentials(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid username or password", "INVALID_CREDENTIALS", nil)
		}

		log.Println("Login failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Login failed", "LOGIN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}

// Refresh rotates a refresh token
// @Summary Refresh Tokens
// @Description Exchange a refresh token for a new access and refresh token pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Tokens refreshed"
// @Failure 401 {object} dto.APIResponse "Invalid refresh token"
// @Router /api/v1/users/refresh [post]
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/users/refresh")
	defer cancel()

	result, err := h.authFlow.Refresh(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsInvalidRefreshToken(err) || businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid refresh token", "INVALID_REFRESH_TOKEN", nil)
		}

		log.Println("Token refresh failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Token refresh failed", "REFRESH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tokens refreshed", result)
}

// Logout marks the caller offline and revokes the access token
// @Summary User Logout
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse "Logged out"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/users/logout [post]
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok || userID == 0 {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}
	token, _ := c.Locals("access_token").(string)

	ctx, cancel := createRequestContext(c, "/api/v1/users/logout")
	defer cancel()

	if err := h.authFlow.Logout(ctx, userID, token, clientMetadata(c)); err != nil {
		log.Println("Logout failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Logout failed", "LOGOUT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Logged out successfully", nil)
}

// Me returns the authenticated account
// @Summary Current User
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.UserDTO} "Current user"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "User not found"
// @Router /api/v1/users/me [get]
func (h *AuthHandler) Me(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok || userID == 0 {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated", "UNAUTHORIZED", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/users/me")
	defer cancel()

	user, err := h.authFlow.Me(ctx, userID)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND", nil)
		}

		log.Println("Fetch current user failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch user", "USER_FETCH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "User retrieved successfully", user)
}

// ForgotPassword mails a password reset link
// @Summary Forgot Password
// @Description Send a single-use reset link when the email belongs to an account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.ForgotPasswordRequest true "Account email"
// @Success 200 {object} dto.APIResponse{data=dto.ForgotPasswordResponse} "Request accepted"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/users/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/users/forgot-password")
	defer cancel()

	result, err := h.passwordResetFlow.ForgotPassword(ctx, &req, clientMetadata(c))
	if err != nil {
		log.Println("Forgot password failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process password reset", "FORGOT_PASSWORD_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ResetPassword consumes a reset token
// @Summary Reset Password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} dto.APIResponse{data=dto.ResetPasswordResponse} "Password changed"
// @Failure 400 {object} dto.APIResponse "Invalid or expired token"
// @Router /api/v1/users/reset-password [post]
func (h *AuthHandler) ResetPassword(c fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/users/reset-password")
	defer cancel()

	result, err := h.passwordResetFlow.ResetPassword(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsResetTokenExpired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Reset token has expired", "RESET_TOKEN_EXPIRED", nil)
		}
		if businessflow.IsResetTokenInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid or already used reset token", "RESET_TOKEN_INVALID", nil)
		}
		if businessflow.IsPasswordTooWeak(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Password must be at least 8 characters", "PASSWORD_TOO_WEAK", nil)
		}
		if businessflow.IsPasswordMismatch(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Passwords do not match", "PASSWORD_MISMATCH", nil)
		}

		log.Println("Reset password failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reset password", "RESET_PASSWORD_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Password has been reset", result)
}
