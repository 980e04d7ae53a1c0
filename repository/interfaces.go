// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/leaddesk/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// LeadRepository defines operations for leads (tblmaster)
type LeadRepository interface {
	Repository[models.Lead, models.LeadFilter]
	// ListWithLastCall returns leads joined to their latest completed call
	ListWithLastCall(ctx context.Context, filter models.LeadFilter, limit, offset int) ([]*models.LeadWithLastCall, error)
	Update(ctx context.Context, lead *models.Lead) error
	Delete(ctx context.Context, id uint) (bool, error)
	DistinctCallStatuses(ctx context.Context, callBy string) ([]string, error)
	DistinctProducts(ctx context.Context, callBy string) ([]string, error)
	DistinctUnitTypes(ctx context.Context, callBy string) ([]string, error)
	DistinctBudgets(ctx context.Context, callBy string) ([]string, error)
	StatusDistribution(ctx context.Context, filter models.LeadFilter) ([]models.StatusCount, error)
	SubmittedByDay(ctx context.Context, filter models.LeadFilter) ([]models.DayCount, error)
	MemberPerformance(ctx context.Context, usernames []string, postedBetween *models.DateRange) ([]models.MemberPerformance, error)
}

// CallHistoryRepository defines operations for the append-only call history
type CallHistoryRepository interface {
	Repository[models.CallHistory, models.CallHistoryFilter]
	DailyCompletionByTL(ctx context.Context, from, to time.Time) ([]models.DailyCompletionRow, error)
}

// UserRepository defines operations for users (tblusers)
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByUsername(ctx context.Context, username string) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ExistingUsernamesOrEmails(ctx context.Context, usernames, emails []string) (map[string]bool, map[string]bool, error)
	UsernamesByTL(ctx context.Context, tlName string) ([]string, error)
	UpdatePassword(ctx context.Context, userID uint, passwordHash string) error
	UpdateLoginStatus(ctx context.Context, userID uint, status int) error
}

// PasswordResetTokenRepository defines operations for password reset tokens
type PasswordResetTokenRepository interface {
	// Upsert replaces any token previously issued to the same user
	Upsert(ctx context.Context, token *models.PasswordResetToken) error
	ByToken(ctx context.Context, token string) (*models.PasswordResetToken, error)
	DeleteByID(ctx context.Context, id uint) error
	// Consume deletes the token if it is still current and reports whether it did
	Consume(ctx context.Context, id uint, token string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
}
