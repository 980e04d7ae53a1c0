package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds (86400 seconds = 24 hours)
	AccessTokenTTLSeconds = 86400

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour

	// PasswordResetTokenTTL is how long a password reset token stays usable
	PasswordResetTokenTTL = time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Lead listing and import constants
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 500

	// FastQueryTimeout bounds the plain listing query before the enriched query is tried
	FastQueryTimeout = 5 * time.Second

	// ImportBatchSize is the number of rows committed per transaction during bulk import
	ImportBatchSize = 100

	// MaxImportFileSize is the largest accepted spreadsheet upload (10MB)
	MaxImportFileSize = 10 * 1024 * 1024

	// DefaultPasswordLength is the length of generated credentials for imported users
	DefaultPasswordLength = 12

	// DashboardCacheTTL is how long agent dashboard summaries are cached
	DashboardCacheTTL = 2 * time.Minute
)

// Date layouts accepted by filters and spreadsheets
const (
	DateLayout = "2006-01-02"
)
