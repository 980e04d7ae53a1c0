package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/leaddesk/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PasswordResetTokenRepositoryImpl implements PasswordResetTokenRepository interface
type PasswordResetTokenRepositoryImpl struct {
	*BaseRepository[models.PasswordResetToken, struct{}]
}

// NewPasswordResetTokenRepository creates a new password reset token repository
func NewPasswordResetTokenRepository(db *gorm.DB) PasswordResetTokenRepository {
	return &PasswordResetTokenRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PasswordResetToken, struct{}](db),
	}
}

// Upsert inserts the token or replaces the one already issued to the same user
func (r *PasswordResetTokenRepositoryImpl) Upsert(ctx context.Context, token *models.PasswordResetToken) error {
	db := r.getDB(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "created_at"}),
	}).Create(token).Error
	if err != nil {
		return fmt.Errorf("failed to store reset token for user %d: %w", token.UserID, err)
	}
	return nil
}

// ByToken returns nil when no such token exists
func (r *PasswordResetTokenRepositoryImpl) ByToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	db := r.getDB(ctx)
	var rows []*models.PasswordResetToken
	if err := db.Where("token = ?", token).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *PasswordResetTokenRepositoryImpl) DeleteByID(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	if err := db.Delete(&models.PasswordResetToken{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete reset token %d: %w", id, err)
	}
	return nil
}

// Consume deletes the token only if it still holds the given value and reports whether
// a row was removed. A false result means another request consumed or replaced it.
func (r *PasswordResetTokenRepositoryImpl) Consume(ctx context.Context, id uint, token string) (bool, error) {
	db := r.getDB(ctx)
	res := db.Where("id = ? AND token = ?", id, token).Delete(&models.PasswordResetToken{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to consume reset token %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeleteExpired removes every token whose expiry is before now
func (r *PasswordResetTokenRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Where("expires_at < ?", now.UTC()).Delete(&models.PasswordResetToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired reset tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
