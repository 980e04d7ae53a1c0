// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/leaddesk/utils"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database      DatabaseConfig      `json:"database"`
	Server        ServerConfig        `json:"server"`
	Security      SecurityConfig      `json:"security"`
	JWT           JWTConfig           `json:"jwt"`
	Email         EmailConfig         `json:"email"`
	Logging       LoggingConfig       `json:"logging"`
	Metrics       MetricsConfig       `json:"metrics"`
	Cache         CacheConfig         `json:"cache"`
	Import        ImportConfig        `json:"import"`
	LeadQuery     LeadQueryConfig     `json:"lead_query"`
	PasswordReset PasswordResetConfig `json:"password_reset"`
	Deployment    DeploymentConfig    `json:"deployment"`
	Admin         AdminConfig         `json:"admin"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver"` // postgres, mysql
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	CompressionLevel  int           `json:"compression_level"`
}

type SecurityConfig struct {
	// HSTS
	HSTSMaxAge         int  `json:"hsts_max_age"`
	HSTSIncludeSubDoms bool `json:"hsts_include_subdomains"`

	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	AuthRateLimit   int           `json:"auth_rate_limit"`   // requests per window
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Content Security
	CSPPolicy      string `json:"csp_policy"`
	XFrameOptions  string `json:"x_frame_options"`
	ReferrerPolicy string `json:"referrer_policy"`

	// Network
	IPBlacklist []string `json:"ip_blacklist"`

	// Password & Auth
	PasswordMinLength int `json:"password_min_length"`
	BcryptCost        int `json:"bcrypt_cost"`
}

type JWTConfig struct {
	SecretKey       string        `json:"secret_key"`
	PrivateKey      string        `json:"private_key"`  // RSA private key in PEM format
	PublicKey       string        `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys      bool          `json:"use_rsa_keys"` // Whether to use RSA keys instead of secret key
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"`
	Issuer          string        `json:"issuer"`
	Audience        string        `json:"audience"`
	Algorithm       string        `json:"algorithm"`
}

type EmailConfig struct {
	Provider  string `json:"provider"` // smtp, mock
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	// Access Logs
	EnableAccessLog bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	RedisURL    string        `json:"redis_url"`
	RedisDB     int           `json:"redis_db"`
	RedisPrefix string        `json:"redis_prefix"`
	DefaultTTL  time.Duration `json:"default_ttl"`
}

type ImportConfig struct {
	UploadDir      string `json:"upload_dir"`
	MaxFileSize    int64  `json:"max_file_size"` // bytes
	BatchSize      int    `json:"batch_size"`
	PasswordLength int    `json:"password_length"`
	// Staged files older than this are swept by the maintenance scheduler
	StaleUploadTTL time.Duration `json:"stale_upload_ttl"`
}

type LeadQueryConfig struct {
	FastTimeout time.Duration `json:"fast_timeout"`
}

type PasswordResetConfig struct {
	TokenTTL        time.Duration `json:"token_ttl"`
	ResetURLBase    string        `json:"reset_url_base"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// AdminConfig describes the account created at startup when no admin exists
type AdminConfig struct {
	BootstrapEnabled  bool   `json:"bootstrap_enabled"`
	BootstrapUsername string `json:"bootstrap_username"`
	BootstrapEmail    string `json:"bootstrap_email"`
	BootstrapPassword string `json:"bootstrap_password"`
	BootstrapFullName string `json:"bootstrap_full_name"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnvString("DB_DRIVER", "postgres")),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "leaddesk"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 12*1024*1024), // upload limit plus multipart overhead
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			CompressionLevel:  getEnvInt("SERVER_COMPRESSION_LEVEL", 1),
		},
		Security: SecurityConfig{
			HSTSMaxAge:         getEnvInt("HSTS_MAX_AGE", 31536000), // 1 year
			HSTSIncludeSubDoms: getEnvBool("HSTS_INCLUDE_SUBDOMAINS", true),
			AllowedOrigins:     getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:     getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:     getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}),
			AllowCredentials:   getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:         getEnvInt("CORS_MAX_AGE", utils.CORSMaxAge),
			AuthRateLimit:      getEnvInt("AUTH_RATE_LIMIT", 20),
			GlobalRateLimit:    getEnvInt("GLOBAL_RATE_LIMIT", 1000),
			RateLimitWindow:    getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:          getEnvString("CSP_POLICY", "default-src 'self'"),
			XFrameOptions:      getEnvString("X_FRAME_OPTIONS", "DENY"),
			ReferrerPolicy:     getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
			IPBlacklist:        getEnvStringSlice("IP_BLACKLIST", []string{}),
			PasswordMinLength:  getEnvInt("PASSWORD_MIN_LENGTH", 8),
			BcryptCost:         getEnvInt("BCRYPT_COST", 12),
		},
		JWT: JWTConfig{
			SecretKey:       getEnvString("JWT_SECRET_KEY", ""),
			PrivateKey:      getEnvString("JWT_PRIVATE_KEY", ""),
			PublicKey:       getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys:      getEnvBool("JWT_USE_RSA_KEYS", false),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TOKEN_TTL", utils.AccessTokenTTL),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TOKEN_TTL", utils.RefreshTokenTTL),
			Issuer:          getEnvString("JWT_ISSUER", "leaddesk"),
			Audience:        getEnvString("JWT_AUDIENCE", "leaddesk-api"),
			Algorithm:       getEnvString("JWT_ALGORITHM", "HS256"),
		},
		Email: EmailConfig{
			Provider:  strings.ToLower(getEnvString("EMAIL_PROVIDER", "mock")),
			Host:      getEnvString("EMAIL_HOST", "smtp.gmail.com"),
			Port:      getEnvInt("EMAIL_PORT", 587),
			Username:  getEnvString("EMAIL_USERNAME", ""),
			Password:  getEnvString("EMAIL_PASSWORD", ""),
			FromEmail: getEnvString("EMAIL_FROM_EMAIL", "noreply@leaddesk.local"),
			FromName:  getEnvString("EMAIL_FROM_NAME", "LeadDesk"),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Format:          getEnvString("LOG_FORMAT", "json"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/leaddesk/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "leaddesk:"),
			DefaultTTL:  getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Import: ImportConfig{
			UploadDir:      getEnvString("IMPORT_UPLOAD_DIR", "uploads"),
			MaxFileSize:    int64(getEnvInt("IMPORT_MAX_FILE_SIZE", 10*1024*1024)), // 10MB
			BatchSize:      getEnvInt("IMPORT_BATCH_SIZE", 100),
			PasswordLength: getEnvInt("IMPORT_PASSWORD_LENGTH", 12),
			StaleUploadTTL: getEnvDuration("IMPORT_STALE_UPLOAD_TTL", 24*time.Hour),
		},
		LeadQuery: LeadQueryConfig{
			FastTimeout: getEnvDuration("LEAD_QUERY_FAST_TIMEOUT", 5*time.Second),
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:        getEnvDuration("PASSWORD_RESET_TTL", 1*time.Hour),
			ResetURLBase:    getEnvString("PASSWORD_RESET_URL_BASE", "http://localhost:3000/reset-password"),
			CleanupInterval: getEnvDuration("PASSWORD_RESET_CLEANUP_INTERVAL", 1*time.Hour),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
		Admin: AdminConfig{
			BootstrapEnabled:  getEnvBool("ADMIN_BOOTSTRAP_ENABLED", false),
			BootstrapUsername: getEnvString("ADMIN_BOOTSTRAP_USERNAME", "admin"),
			BootstrapEmail:    getEnvString("ADMIN_BOOTSTRAP_EMAIL", ""),
			BootstrapPassword: getEnvString("ADMIN_BOOTSTRAP_PASSWORD", ""),
			BootstrapFullName: getEnvString("ADMIN_BOOTSTRAP_FULL_NAME", "Administrator"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "mysql" {
		errors = append(errors, "DB_DRIVER must be postgres or mysql")
	}
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}

	// Validate JWT configuration
	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PrivateKey == "" || cfg.JWT.PublicKey == "" {
			errors = append(errors, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when JWT_USE_RSA_KEYS is set")
		}
	} else if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.RefreshTokenTTL <= 0 {
		errors = append(errors, "JWT_REFRESH_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		errors = append(errors, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		errors = append(errors, "JWT_AUDIENCE is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}
	if int64(cfg.Server.BodyLimit) < cfg.Import.MaxFileSize {
		errors = append(errors, "SERVER_BODY_LIMIT must not be smaller than IMPORT_MAX_FILE_SIZE")
	}

	// Validate security configuration
	if cfg.Security.PasswordMinLength < 6 {
		errors = append(errors, "PASSWORD_MIN_LENGTH must be at least 6")
	}
	if cfg.Security.BcryptCost < 10 || cfg.Security.BcryptCost > 14 {
		errors = append(errors, "BCRYPT_COST must be between 10 and 14")
	}

	// Validate email configuration
	switch cfg.Email.Provider {
	case "mock":
	case "smtp":
		if cfg.Email.Host == "" {
			errors = append(errors, "EMAIL_HOST is required for the smtp provider")
		}
		if cfg.Email.FromEmail == "" {
			errors = append(errors, "EMAIL_FROM_EMAIL is required for the smtp provider")
		}
	default:
		errors = append(errors, "EMAIL_PROVIDER must be smtp or mock")
	}

	// Validate import configuration
	if cfg.Import.MaxFileSize <= 0 {
		errors = append(errors, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if cfg.Import.BatchSize <= 0 {
		errors = append(errors, "IMPORT_BATCH_SIZE must be positive")
	}
	if cfg.Import.PasswordLength < 8 {
		errors = append(errors, "IMPORT_PASSWORD_LENGTH must be at least 8")
	}
	if cfg.LeadQuery.FastTimeout <= 0 {
		errors = append(errors, "LEAD_QUERY_FAST_TIMEOUT must be positive")
	}
	if cfg.PasswordReset.TokenTTL <= 0 {
		errors = append(errors, "PASSWORD_RESET_TTL must be positive")
	}

	// Validate bootstrap admin
	if cfg.Admin.BootstrapEnabled {
		if cfg.Admin.BootstrapUsername == "" || cfg.Admin.BootstrapEmail == "" {
			errors = append(errors, "ADMIN_BOOTSTRAP_USERNAME and ADMIN_BOOTSTRAP_EMAIL are required when bootstrap is enabled")
		}
		if len(cfg.Admin.BootstrapPassword) < cfg.Security.PasswordMinLength {
			errors = append(errors, "ADMIN_BOOTSTRAP_PASSWORD is shorter than PASSWORD_MIN_LENGTH")
		}
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
