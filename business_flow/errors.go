// Package businessflow contains the core business logic and use cases of the lead desk
package businessflow

import (
	"errors"
	"fmt"

	"github.com/amirphl/leaddesk/app/dto"
)

// Business flow error constants
var (
	// User-related errors
	ErrUserNotFound        = errors.New("user not found")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrEmailTaken          = errors.New("email already exists")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInvalidUserType     = errors.New("invalid user type")
	ErrTeamLeadNotFound    = errors.New("team lead not found")
	ErrInvalidRefreshToken = errors.New("invalid or revoked refresh token")

	// Password reset errors
	ErrResetTokenInvalid  = errors.New("invalid or already used reset token")
	ErrResetTokenExpired  = errors.New("reset token has expired")
	ErrPasswordTooWeak    = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrEmailDeliveryError = errors.New("failed to deliver email")

	// Lead-related errors
	ErrLeadNotFound           = errors.New("lead not found")
	ErrLeadFieldsRequired     = errors.New("first name, last name, contact number and callby are required")
	ErrSearchCriteriaRequired = errors.New("at least one search criterion is required")
	ErrContactRequired        = errors.New("contact number is required")

	// Import errors
	ErrImportFileTooLarge  = errors.New("uploaded file exceeds the size limit")
	ErrImportNoRows        = errors.New("uploaded file has no data rows")
	ErrImportUnreadable    = errors.New("uploaded file could not be read")
	ErrImportUnsupported   = errors.New("unsupported file type, expected .xlsx or .csv")
	ErrImportMissingColumn = errors.New("uploaded file is missing a required column")
	ErrImportBatchFailed   = errors.New("import batch failed")

	// Filter errors
	ErrInvalidDate           = errors.New("dates must be formatted as YYYY-MM-DD")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// ImportError reports an import that stopped part way. Summary holds what was
// committed before the failing batch; Credentials lists the passwords of user
// accounts created by those batches.
type ImportError struct {
	Summary     dto.ImportSummary
	FailedBatch int
	Credentials []dto.GeneratedCredential
	Err         error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import stopped at batch %d after %d rows: %v", e.FailedBatch, e.Summary.ProcessedRows, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// AsImportError extracts the partial-import details from err
func AsImportError(err error) (*ImportError, bool) {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsUsernameTaken(err error) bool {
	return errors.Is(err, ErrUsernameTaken)
}

func IsEmailTaken(err error) bool {
	return errors.Is(err, ErrEmailTaken)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsInvalidUserType(err error) bool {
	return errors.Is(err, ErrInvalidUserType)
}

func IsTeamLeadNotFound(err error) bool {
	return errors.Is(err, ErrTeamLeadNotFound)
}

func IsInvalidRefreshToken(err error) bool {
	return errors.Is(err, ErrInvalidRefreshToken)
}

func IsResetTokenInvalid(err error) bool {
	return errors.Is(err, ErrResetTokenInvalid)
}

func IsResetTokenExpired(err error) bool {
	return errors.Is(err, ErrResetTokenExpired)
}

func IsPasswordTooWeak(err error) bool {
	return errors.Is(err, ErrPasswordTooWeak)
}

func IsPasswordMismatch(err error) bool {
	return errors.Is(err, ErrPasswordMismatch)
}

func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

func IsLeadFieldsRequired(err error) bool {
	return errors.Is(err, ErrLeadFieldsRequired)
}

func IsSearchCriteriaRequired(err error) bool {
	return errors.Is(err, ErrSearchCriteriaRequired)
}

func IsContactRequired(err error) bool {
	return errors.Is(err, ErrContactRequired)
}

func IsImportFileTooLarge(err error) bool {
	return errors.Is(err, ErrImportFileTooLarge)
}

func IsImportNoRows(err error) bool {
	return errors.Is(err, ErrImportNoRows)
}

func IsImportUnreadable(err error) bool {
	return errors.Is(err, ErrImportUnreadable)
}

func IsImportUnsupported(err error) bool {
	return errors.Is(err, ErrImportUnsupported)
}

func IsImportMissingColumn(err error) bool {
	return errors.Is(err, ErrImportMissingColumn)
}

func IsImportBatchFailed(err error) bool {
	return errors.Is(err, ErrImportBatchFailed)
}

func IsInvalidDate(err error) bool {
	return errors.Is(err, ErrInvalidDate)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
