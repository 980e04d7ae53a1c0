// Package main provides the main entry point for the LeadDesk lead management API
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/amirphl/leaddesk/app/handlers"
	"github.com/amirphl/leaddesk/app/middleware"
	"github.com/amirphl/leaddesk/app/router"
	"github.com/amirphl/leaddesk/app/scheduler"
	"github.com/amirphl/leaddesk/app/services"
	businessflow "github.com/amirphl/leaddesk/business_flow"
	"github.com/amirphl/leaddesk/config"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	"github.com/amirphl/leaddesk/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logOutput, closeLogs := initializeLogging(cfg.Logging)
	defer closeLogs()

	log.Printf("Starting LeadDesk %s (%s)...", cfg.Deployment.Version, cfg.Deployment.Environment)

	// Initialize application
	app, err := initializeApplication(cfg, logOutput)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeLogging points the standard logger at stdout, a rotating file, or both.
// The returned writer is shared with the access log.
func initializeLogging(cfg config.LoggingConfig) (io.Writer, func()) {
	log.SetFlags(log.LstdFlags | log.LUTC | log.Lmicroseconds)

	if cfg.Output != "file" && cfg.Output != "both" {
		log.SetOutput(os.Stdout)
		return os.Stdout, func() {}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		log.Printf("Failed to create log directory, logging to stdout: %v", err)
		return os.Stdout, func() {}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	var out io.Writer = rotator
	if cfg.Output == "both" {
		out = io.MultiWriter(os.Stdout, rotator)
	}
	log.SetOutput(out)

	return out, func() { _ = rotator.Close() }
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
		dialector = mysql.Open(dsn)
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	}

	gormCfg := &gorm.Config{
		NowFunc:        utils.UTCNow,
		TranslateError: true,
	}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(log.Default(), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	log.Printf("Database connection established (%s) with %d max open connections, %d max idle connections",
		cfg.Driver, cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotificationService initializes the notification service
func initializeNotificationService(cfg config.EmailConfig) services.NotificationService {
	var emailProvider services.EmailProvider

	switch cfg.Provider {
	case "smtp":
		emailProvider = services.NewSMTPEmailProvider(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.FromEmail, cfg.FromName)
	default:
		emailProvider = services.NewMockEmailProvider()
	}

	return services.NewNotificationService(emailProvider)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logOutput io.Writer) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	leadRepo := repository.NewLeadRepository(db)
	historyRepo := repository.NewCallHistoryRepository(db)
	userRepo := repository.NewUserRepository(db)
	resetTokenRepo := repository.NewPasswordResetTokenRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	if cfg.Admin.BootstrapEnabled {
		if err := ensureBootstrapAdmin(userRepo, cfg.Admin, cfg.Security.BcryptCost); err != nil {
			return nil, err
		}
	}

	// Initialize services
	notificationService := initializeNotificationService(cfg.Email)

	var revocationStore services.RevocationStore
	if rc != nil {
		revocationStore = services.NewRedisRevocationStore(rc, cfg.Cache.RedisPrefix)
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second))
	} else {
		revocationStore = services.NewMemoryRevocationStore()
	}

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
		revocationStore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	leadQueryFlow := businessflow.NewLeadQueryFlow(leadRepo, userRepo, cfg.LeadQuery.FastTimeout)
	leadFlow := businessflow.NewLeadFlow(leadRepo, historyRepo, userRepo, rc, cfg.Cache.RedisPrefix, db)
	reportFlow := businessflow.NewReportFlow(leadRepo, historyRepo, userRepo)
	authFlow := businessflow.NewAuthFlow(userRepo, auditRepo, tokenService, db, cfg.Security.BcryptCost)
	passwordResetFlow := businessflow.NewPasswordResetFlow(
		userRepo,
		resetTokenRepo,
		auditRepo,
		notificationService,
		db,
		cfg.PasswordReset.ResetURLBase,
		cfg.PasswordReset.TokenTTL,
	)
	importFlow := businessflow.NewImportFlow(leadRepo, userRepo, auditRepo, db, businessflow.ImportSettings{
		BatchSize:      cfg.Import.BatchSize,
		MaxFileSize:    cfg.Import.MaxFileSize,
		PasswordLength: cfg.Import.PasswordLength,
		HashCost:       cfg.Security.BcryptCost,
	})
	exportFlow := businessflow.NewExportFlow(leadRepo, userRepo)

	maintenance := scheduler.NewMaintenanceScheduler(passwordResetFlow, cfg.Import.UploadDir, cfg.Import.StaleUploadTTL, cfg.PasswordReset.CleanupInterval, logOutput)
	stopFuncs = append(stopFuncs, maintenance.Start(context.Background()))

	// Initialize handlers
	upload := handlers.UploadSettings{Dir: cfg.Import.UploadDir, MaxFileSize: cfg.Import.MaxFileSize}
	routeHandlers := router.Handlers{
		Auth:            handlers.NewAuthHandler(authFlow, passwordResetFlow),
		Lead:            handlers.NewLeadHandler(leadFlow, leadQueryFlow),
		LeadSpreadsheet: handlers.NewLeadSpreadsheetHandler(importFlow, exportFlow, upload),
		Report:          handlers.NewReportHandler(reportFlow, leadQueryFlow),
		AdminUser:       handlers.NewAdminUserHandler(authFlow, importFlow, exportFlow, upload),
		Health:          handlers.NewHealthHandler(db, rc, cfg.Deployment.Version),
	}

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(cfg, routeHandlers, authMiddleware, logOutput)

	application := &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

// ensureBootstrapAdmin creates the configured admin account when no admin exists yet
func ensureBootstrapAdmin(userRepo repository.UserRepository, cfg config.AdminConfig, hashCost int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adminType := models.UserTypeAdmin
	exists, err := userRepo.Exists(ctx, models.UserFilter{UserType: &adminType})
	if err != nil {
		return fmt.Errorf("failed to look up admin accounts: %w", err)
	}
	if exists {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.BootstrapPassword), hashCost)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	admin := &models.User{
		FullName:  cfg.BootstrapFullName,
		Username:  cfg.BootstrapUsername,
		UserEmail: cfg.BootstrapEmail,
		Password:  string(hashed),
		UserType:  models.UserTypeAdmin,
	}
	if err := userRepo.Save(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	log.Printf("Bootstrap admin %q created", admin.Username)
	return nil
}
