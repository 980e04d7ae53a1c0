// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	"github.com/amirphl/leaddesk/utils"
)

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToUserDTO converts a user model to its public representation
func ToUserDTO(user models.User) dto.UserDTO {
	return dto.UserDTO{
		ID:        user.ID,
		FullName:  user.FullName,
		Username:  user.Username,
		Email:     user.UserEmail,
		UserType:  user.UserType,
		TLName:    user.TLName,
		Online:    user.IsOnline(),
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ToUserDTOs converts a slice of user models
func ToUserDTOs(users []*models.User) []dto.UserDTO {
	out := make([]dto.UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserDTO(*u))
	}
	return out
}

// dateRange builds an inclusive day range when both ends are present
func dateRange(start, end *time.Time) (*models.DateRange, error) {
	if start == nil || end == nil {
		return nil, nil
	}
	s, e := utils.StartOfDay(*start), utils.StartOfDay(*end)
	if s.After(e) {
		return nil, ErrStartDateAfterEndDate
	}
	return &models.DateRange{Start: s, End: e}, nil
}

// writeAudit stores an audit row
func writeAudit(ctx context.Context, repo repository.AuditLogRepository, userID *uint, action, description string, success bool, errMsg *string, metadata *ClientMetadata) error {
	if repo == nil {
		return nil
	}

	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errMsg,
	}

	if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
		audit.RequestID = &requestID
	} else if metadata != nil && metadata.RequestID != "" {
		audit.RequestID = utils.ToPtr(metadata.RequestID)
	}

	return repo.Save(ctx, audit)
}

// recordAudit writes an audit row and logs a failed write without failing the caller
func recordAudit(ctx context.Context, repo repository.AuditLogRepository, userID *uint, action, description string, success bool, errMsg *string, metadata *ClientMetadata) {
	if err := writeAudit(ctx, repo, userID, action, description, success, errMsg, metadata); err != nil {
		log.Printf("Audit %s failed: %v", action, err)
	}
}

func trimPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
