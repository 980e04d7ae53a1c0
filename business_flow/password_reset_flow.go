package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/app/services"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	"github.com/amirphl/leaddesk/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const forgotPasswordMessage = "If the email is registered, a reset link has been sent"

// PasswordResetFlow issues and consumes single-use password reset tokens
type PasswordResetFlow interface {
	ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest, metadata *ClientMetadata) (*dto.ForgotPasswordResponse, error)
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest, metadata *ClientMetadata) (*dto.ResetPasswordResponse, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// PasswordResetFlowImpl implements the password reset business flow
type PasswordResetFlowImpl struct {
	userRepo        repository.UserRepository
	tokenRepo       repository.PasswordResetTokenRepository
	auditRepo       repository.AuditLogRepository
	notificationSvc services.NotificationService
	db              *gorm.DB
	resetURLBase    string
	ttl             time.Duration
}

// NewPasswordResetFlow creates a new password reset flow; a zero ttl uses utils.PasswordResetTokenTTL
func NewPasswordResetFlow(
	userRepo repository.UserRepository,
	tokenRepo repository.PasswordResetTokenRepository,
	auditRepo repository.AuditLogRepository,
	notificationSvc services.NotificationService,
	db *gorm.DB,
	resetURLBase string,
	ttl time.Duration,
) PasswordResetFlow {
	if ttl <= 0 {
		ttl = utils.PasswordResetTokenTTL
	}
	return &PasswordResetFlowImpl{
		userRepo:        userRepo,
		tokenRepo:       tokenRepo,
		auditRepo:       auditRepo,
		notificationSvc: notificationSvc,
		db:              db,
		resetURLBase:    resetURLBase,
		ttl:             ttl,
	}
}

// ForgotPassword replaces any earlier token of the account and mails a reset link.
// The response is the same whether or not the email belongs to an account.
func (pf *PasswordResetFlowImpl) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest, metadata *ClientMetadata) (*dto.ForgotPasswordResponse, error) {
	resp := &dto.ForgotPasswordResponse{Message: forgotPasswordMessage}
	if req == nil {
		return resp, nil
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := pf.userRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("FORGOT_PASSWORD_FAILED", "Failed to start password reset", err)
	}
	if user == nil {
		return resp, nil
	}

	token, err := utils.RandomHex(32)
	if err != nil {
		return nil, NewBusinessError("FORGOT_PASSWORD_FAILED", "Failed to start password reset", err)
	}

	record := &models.PasswordResetToken{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: utils.UTCNowAdd(pf.ttl),
		CreatedAt: utils.UTCNow(),
	}
	if err := pf.tokenRepo.Upsert(ctx, record); err != nil {
		return nil, NewBusinessError("FORGOT_PASSWORD_FAILED", "Failed to start password reset", err)
	}

	body := fmt.Sprintf("Hello %s,\n\nUse the link below to reset your password. It expires in %d minutes.\n\n%s\n",
		user.FullName, int(pf.ttl.Minutes()), pf.resetLink(token))
	if pf.notificationSvc != nil {
		if err := pf.notificationSvc.SendEmail(user.UserEmail, "Password reset", body); err != nil {
			log.Println("Reset email delivery failed", err)
			errMsg := fmt.Sprintf("%v: %v", ErrEmailDeliveryError, err)
			recordAudit(ctx, pf.auditRepo, &user.ID, models.AuditActionPasswordResetFailed, "Reset email not delivered", false, &errMsg, metadata)
			return resp, nil
		}
	}

	recordAudit(ctx, pf.auditRepo, &user.ID, models.AuditActionPasswordResetRequested, "Password reset requested", true, nil, metadata)
	return resp, nil
}

func (pf *PasswordResetFlowImpl) resetLink(token string) string {
	base := strings.TrimSpace(pf.resetURLBase)
	if base == "" {
		return token
	}
	if strings.Contains(base, "?") {
		return base + "&token=" + token
	}
	return strings.TrimRight(base, "/") + "/" + token
}

// ResetPassword consumes a token. An expired token is removed and rejected; a valid one
// is deleted and the password updated in the same transaction.
func (pf *PasswordResetFlowImpl) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest, metadata *ClientMetadata) (*dto.ResetPasswordResponse, error) {
	if err := pf.validateResetRequest(req); err != nil {
		return nil, NewBusinessError("RESET_PASSWORD_VALIDATION_FAILED", "Reset password validation failed", err)
	}

	record, err := pf.tokenRepo.ByToken(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		return nil, NewBusinessError("RESET_PASSWORD_FAILED", "Failed to reset password", err)
	}
	if record == nil {
		errMsg := ErrResetTokenInvalid.Error()
		recordAudit(ctx, pf.auditRepo, nil, models.AuditActionPasswordResetFailed, "Unknown reset token", false, &errMsg, metadata)
		return nil, NewBusinessError("RESET_TOKEN_INVALID", "Invalid or already used reset token", ErrResetTokenInvalid)
	}

	if record.IsExpired() {
		if err := pf.tokenRepo.DeleteByID(ctx, record.ID); err != nil {
			log.Println("Expired reset token removal failed", err)
		}
		errMsg := ErrResetTokenExpired.Error()
		recordAudit(ctx, pf.auditRepo, &record.UserID, models.AuditActionPasswordResetFailed, "Expired reset token", false, &errMsg, metadata)
		return nil, NewBusinessError("RESET_TOKEN_EXPIRED", "Reset token has expired", ErrResetTokenExpired)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewBusinessError("RESET_PASSWORD_FAILED", "Failed to reset password", err)
	}

	changedAt := utils.UTCNow()
	err = repository.WithTransaction(ctx, pf.db, func(ctx context.Context) error {
		// The token must still be current when it is removed; a concurrent reset
		// that got there first leaves nothing to delete.
		consumed, err := pf.tokenRepo.Consume(ctx, record.ID, record.Token)
		if err != nil {
			return err
		}
		if !consumed {
			return ErrResetTokenInvalid
		}

		user, err := pf.userRepo.ByID(ctx, record.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if err := pf.userRepo.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
			return err
		}
		return pf.userRepo.UpdateLoginStatus(ctx, user.ID, 0)
	})
	if errors.Is(err, ErrResetTokenInvalid) {
		errMsg := err.Error()
		recordAudit(ctx, pf.auditRepo, &record.UserID, models.AuditActionPasswordResetFailed, "Reset token already used", false, &errMsg, metadata)
		return nil, NewBusinessError("RESET_TOKEN_INVALID", "Invalid or already used reset token", ErrResetTokenInvalid)
	}
	if err != nil {
		errMsg := err.Error()
		recordAudit(ctx, pf.auditRepo, &record.UserID, models.AuditActionPasswordResetFailed, "Password update failed", false, &errMsg, metadata)
		return nil, NewBusinessError("RESET_PASSWORD_FAILED", "Failed to reset password", err)
	}

	recordAudit(ctx, pf.auditRepo, &record.UserID, models.AuditActionPasswordResetCompleted, "Password reset completed", true, nil, metadata)
	return &dto.ResetPasswordResponse{PasswordChangedAt: changedAt}, nil
}

// CleanupExpired deletes tokens past their expiry
func (pf *PasswordResetFlowImpl) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := pf.tokenRepo.DeleteExpired(ctx, utils.UTCNow())
	if err != nil {
		return 0, NewBusinessError("RESET_TOKEN_CLEANUP_FAILED", "Failed to delete expired reset tokens", err)
	}
	return n, nil
}

func (pf *PasswordResetFlowImpl) validateResetRequest(req *dto.ResetPasswordRequest) error {
	if req == nil || strings.TrimSpace(req.Token) == "" {
		return ErrResetTokenInvalid
	}
	if len(req.NewPassword) < 8 {
		return ErrPasswordTooWeak
	}
	if req.NewPassword != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}
