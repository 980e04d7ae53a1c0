package models

import (
	"time"

	"github.com/amirphl/leaddesk/utils"
	"gorm.io/gorm"
)

// PasswordResetToken is the single usable reset token of a user
type PasswordResetToken struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	UserID    uint      `gorm:"column:user_id;not null;uniqueIndex:uk_password_reset_tokens_user_id" json:"user_id"`
	Token     string    `gorm:"column:token;size:255;not null;uniqueIndex:uk_password_reset_tokens_token" json:"-"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index:idx_password_reset_tokens_expires_at" json:"expires_at"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}

func (t *PasswordResetToken) BeforeCreate(tx *gorm.DB) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = utils.UTCNow()
	}
	return nil
}

func (t *PasswordResetToken) IsExpired() bool {
	return utils.IsExpired(t.ExpiresAt)
}
