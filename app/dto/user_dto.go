package dto

import (
	"time"
)

// RegisterRequest represents the request payload for creating an account
type RegisterRequest struct {
	FullName string `json:"fullName" validate:"required,max=255" example:"Jane Agent"`
	Username string `json:"username" validate:"required,min=3,max=100,username_format" example:"jane"`
	Email    string `json:"email" validate:"required,email,max=255" example:"jane@example.com"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
	UserType string `json:"userType" validate:"omitempty,oneof=admin tl user" example:"user"`
	TLName   string `json:"tlName" validate:"omitempty,max=100" example:"teamlead1"`
}

// LoginRequest accepts a username or an email address as identifier
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=255" example:"jane"`
	Password string `json:"password" validate:"required,min=1,max=100" example:"SecurePass123!"`
}

// UserDTO is the public view of an account
type UserDTO struct {
	ID        uint    `json:"id" example:"12"`
	FullName  string  `json:"fullName" example:"Jane Agent"`
	Username  string  `json:"username" example:"jane"`
	Email     string  `json:"email" example:"jane@example.com"`
	UserType  string  `json:"userType" example:"user"`
	TLName    *string `json:"tlName,omitempty" example:"teamlead1"`
	Online    bool    `json:"online" example:"true"`
	CreatedAt string  `json:"createdAt" example:"2024-01-15T10:30:00Z"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type" example:"Bearer"`
	ExpiresIn    int     `json:"expires_in" example:"86400"`
	User         UserDTO `json:"user"`
}

// RefreshTokenRequest exchanges a refresh token for a new token pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ForgotPasswordRequest starts a password reset for the account owning Email
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255" example:"jane@example.com"`
}

// ForgotPasswordResponse never reveals whether the account exists
type ForgotPasswordResponse struct {
	Message string `json:"message" example:"If the email is registered, a reset link has been sent"`
}

// ResetPasswordRequest consumes a reset token
type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required,min=16,max=255"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=100"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// ResetPasswordResponse confirms the password change
type ResetPasswordResponse struct {
	PasswordChangedAt time.Time `json:"passwordChangedAt"`
}

// AdminUsersRequest filters the admin user listing
type AdminUsersRequest struct {
	Search    string
	UserType  string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// UserStats counts accounts by login state
type UserStats struct {
	Total   int64 `json:"total"`
	Online  int64 `json:"online"`
	Offline int64 `json:"offline"`
}

// AdminUsersResponse is one page of accounts with global counters
type AdminUsersResponse struct {
	Data       []UserDTO  `json:"data"`
	Pagination Pagination `json:"pagination"`
	Stats      UserStats  `json:"stats"`
}

// FileDownload is a generated file ready to be sent to the client
type FileDownload struct {
	Filename    string
	ContentType string
	Data        []byte
}
