// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/app/handlers"
	"github.com/amirphl/leaddesk/app/middleware"
	"github.com/amirphl/leaddesk/config"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Auth            handlers.AuthHandlerInterface
	Lead            handlers.LeadHandlerInterface
	LeadSpreadsheet handlers.LeadSpreadsheetHandlerInterface
	Report          handlers.ReportHandlerInterface
	AdminUser       handlers.AdminUserHandlerInterface
	Health          *handlers.HealthHandler
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            *config.ProductionConfig
	handlers       Handlers
	authMiddleware *middleware.AuthMiddleware
	accessLog      io.Writer
}

// NewFiberRouter creates a new Fiber router. accessLog receives one JSON line per request; nil means stdout.
func NewFiberRouter(cfg *config.ProductionConfig, h Handlers, authMiddleware *middleware.AuthMiddleware, accessLog io.Writer) Router {
	if accessLog == nil {
		accessLog = os.Stdout
	}

	app := fiber.New(fiber.Config{
		AppName:      "LeadDesk API",
		ServerHeader: "LeadDesk",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		ProxyHeader: cfg.Server.ProxyHeader,
	})

	return &FiberRouter{
		app:            app,
		cfg:            cfg,
		handlers:       h,
		authMiddleware: authMiddleware,
		accessLog:      accessLog,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	// API routes
	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.handlers.Health.Check)

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) bool {
		return c.Path() == healthPath
	}))

	authenticate := r.authMiddleware.Authenticate()
	managers := middleware.RequireRole(models.UserTypeAdmin, models.UserTypeTL)

	// Account routes; the unauthenticated ones get a stricter limit
	users := api.Group("/users")
	strict := r.rateLimiter(r.cfg.Security.AuthRateLimit, nil)
	users.Post("/register", strict, r.handlers.Auth.Register)
	users.Post("/login", strict, r.handlers.Auth.Login)
	users.Post("/refresh", strict, r.handlers.Auth.Refresh)
	users.Post("/forgot-password", strict, r.handlers.Auth.ForgotPassword)
	users.Post("/reset-password", strict, r.handlers.Auth.ResetPassword)
	users.Post("/logout", authenticate, r.handlers.Auth.Logout)
	users.Get("/me", authenticate, r.handlers.Auth.Me)

	// Lead routes; static paths are registered before /:id
	leads := api.Group("/leads", authenticate)
	leads.Get("/", r.handlers.Lead.ListLeads)
	leads.Post("/", r.handlers.Lead.CreateLead)
	leads.Get("/search", r.handlers.Lead.SearchLeads)
	leads.Get("/filter", r.handlers.Lead.FilterLeads)
	leads.Get("/contact/:contactNumber", r.handlers.Lead.GetLeadByContact)
	leads.Get("/call-statuses", r.handlers.Lead.CallStatuses)
	leads.Get("/products", r.handlers.Lead.Products)
	leads.Get("/unit-types", r.handlers.Lead.UnitTypes)
	leads.Get("/budgets", r.handlers.Lead.Budgets)
	leads.Get("/dashboard", r.handlers.Lead.Dashboard)
	leads.Get("/export", r.handlers.LeadSpreadsheet.ExportLeads)
	leads.Get("/template", r.handlers.LeadSpreadsheet.Template)
	leads.Get("/sample-csv", r.handlers.LeadSpreadsheet.SampleCSV)
	leads.Post("/import", managers, r.handlers.LeadSpreadsheet.ImportLeads)
	leads.Get("/:id", r.handlers.Lead.GetLead)
	leads.Put("/:id", r.handlers.Lead.UpdateLead)
	leads.Delete("/:id", managers, r.handlers.Lead.DeleteLead)

	// Team lead reports
	tl := api.Group("/tl", authenticate, managers)
	tl.Get("/", r.handlers.Report.ListTeamLeads)
	tl.Get("/daily-completion", r.handlers.Report.DailyCompletion)
	tl.Get("/leads", r.handlers.Report.TeamLeads)
	tl.Get("/:tlId/members", r.handlers.Report.TeamMembers)
	tl.Get("/:tlId/performance", r.handlers.Report.TeamPerformance)

	// Admin user management
	adminUsers := api.Group("/admin/users", authenticate, middleware.RequireRole(models.UserTypeAdmin))
	adminUsers.Get("/", r.handlers.AdminUser.ListUsers)
	adminUsers.Get("/export", r.handlers.AdminUser.ExportUsers)
	adminUsers.Post("/import", r.handlers.AdminUser.ImportUsers)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

func (r *FiberRouter) rateLimiter(max int, next func(c fiber.Ctx) bool) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: next,
	})
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	sec := r.cfg.Security

	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.New().String()
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             sec.XFrameOptions,
		HSTSMaxAge:                sec.HSTSMaxAge,
		HSTSExcludeSubdomains:     !sec.HSTSIncludeSubDoms,
		ContentSecurityPolicy:     sec.CSPPolicy,
		ReferrerPolicy:            sec.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     sec.AllowedOrigins,
		AllowMethods:     sec.AllowedMethods,
		AllowHeaders:     append(sec.AllowedHeaders, "X-Request-ID"),
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: sec.AllowCredentials,
		MaxAge:           sec.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.Level(r.cfg.Server.CompressionLevel),
			Next: func(c fiber.Ctx) bool {
				// Workbooks are already zip archives
				return strings.HasSuffix(c.Path(), "/export") || strings.HasSuffix(c.Path(), "/template")
			},
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Stream:     r.accessLog,
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath
			},
		}))
	}

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(r.securityMiddleware)
}

func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))

	clientIP := c.IP()
	for _, blockedIP := range r.cfg.Security.IPBlacklist {
		if clientIP == blockedIP {
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Message: "Access denied from this IP address",
				Error: dto.ErrorDetail{
					Code: "ACCESS_DENIED",
				},
			})
		}
	}

	return c.Next()
}

func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	// Default error code
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		switch code {
		case fiber.StatusRequestEntityTooLarge:
			message = "File exceeds the upload limit"
			errorCode = "IMPORT_FILE_TOO_LARGE"
		case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
			message = e.Message
			errorCode = "NOT_FOUND"
		}
	}

	// Log the error
	log.Printf("Error %d: %v", code, err)

	// Get RequestID for tracing
	requestID := c.Locals("requestid")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}
