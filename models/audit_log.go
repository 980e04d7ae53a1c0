package models

import (
	"time"

	"github.com/amirphl/leaddesk/utils"
	"gorm.io/gorm"
)

// AuditLog records security relevant account events
type AuditLog struct {
	ID           uint      `gorm:"column:id;primaryKey" json:"id"`
	UserID       *uint     `gorm:"column:user_id;index:idx_audit_user_id" json:"user_id,omitempty"`
	Action       string    `gorm:"column:action;size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string   `gorm:"column:description;type:text" json:"description,omitempty"`
	IPAddress    *string   `gorm:"column:ip_address;size:64" json:"ip_address,omitempty"`
	UserAgent    *string   `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	RequestID    *string   `gorm:"column:request_id;size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Success      *bool     `gorm:"column:success;default:true" json:"success"`
	ErrorMessage *string   `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	return nil
}

// Audit action constants
const (
	AuditActionRegistered             = "registered"
	AuditActionLoginSuccess           = "login_success"
	AuditActionLoginFailed            = "login_failed"
	AuditActionLogout                 = "logout"
	AuditActionTokenRefreshFailed     = "token_refresh_failed"
	AuditActionPasswordResetRequested = "password_reset_requested"
	AuditActionPasswordResetCompleted = "password_reset_completed"
	AuditActionPasswordResetFailed    = "password_reset_failed"
	AuditActionUsersImported          = "users_imported"
	AuditActionLeadsImported          = "leads_imported"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	UserID        *uint
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
