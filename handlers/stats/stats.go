package stats

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/response"
)

// StatsHandler serves library statistics
type StatsHandler struct {
	statsService *services.StatsService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsService *services.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// GetDashboard handles GET /api/v1/stats/dashboard
func (h *StatsHandler) GetDashboard(c *fiber.Ctx) error {
	stats, err := h.statsService.GetDashboardStats(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, stats)
}
