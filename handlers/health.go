package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/bca-library/utils/response"
	"gorm.io/gorm"
)

const healthTimeout = 3 * time.Second

// HealthHandler reports the state of the database and redis connections
type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Ping handles GET /api/v1/ping
func (h *HealthHandler) Ping(c *fiber.Ctx) error {
	return response.Success(c, fiber.Map{"status": "ok"})
}

// Check handles GET /api/v1/health
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	checks := fiber.Map{
		"database": h.checkDatabase(ctx),
		"redis":    h.checkRedis(ctx),
	}

	for _, status := range checks {
		if status != "ok" {
			return response.ErrorWithDetails(c, fiber.StatusServiceUnavailable,
				"Service temporarily unavailable", "SERVICE_UNAVAILABLE", checks)
		}
	}

	return response.Success(c, fiber.Map{"status": "ok", "checks": checks})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) string {
	if h.db == nil {
		return "not configured"
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return err.Error()
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}

func (h *HealthHandler) checkRedis(ctx context.Context) string {
	if h.redis == nil {
		return "not configured"
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return err.Error()
	}
	return "ok"
}
