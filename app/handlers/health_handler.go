package handlers

import (
	"context"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const healthCheckTimeout = 3 * time.Second

// HealthHandler reports database and cache reachability
type HealthHandler struct {
	db      *gorm.DB
	rc      *redis.Client
	version string
}

// NewHealthHandler creates a health handler; rc may be nil when the cache is disabled
func NewHealthHandler(db *gorm.DB, rc *redis.Client, version string) *HealthHandler {
	return &HealthHandler{db: db, rc: rc, version: version}
}

// Check pings the database and the cache
// @Summary Health Check
// @Tags Operations
// @Produce json
// @Success 200 {object} dto.APIResponse "Service is healthy"
// @Failure 503 {object} dto.APIResponse "A dependency is unreachable"
// @Router /api/v1/health [get]
func (h *HealthHandler) Check(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "unreachable"
	}

	cacheStatus := "disabled"
	if h.rc != nil {
		cacheStatus = "ok"
		if err := h.rc.Ping(ctx).Err(); err != nil {
			cacheStatus = "unreachable"
		}
	}

	data := fiber.Map{
		"status":    "ok",
		"database":  dbStatus,
		"cache":     cacheStatus,
		"timestamp": utils.UTCNow().Unix(),
		"version":   h.version,
		"service":   "leaddesk-api",
	}

	// The cache is optional; only the database decides readiness
	if dbStatus != "ok" {
		data["status"] = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Database is unreachable",
			Data:    data,
			Error:   dto.ErrorDetail{Code: "SERVICE_UNAVAILABLE"},
		})
	}

	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    data,
	})
}
