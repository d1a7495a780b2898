package engagement

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/middleware"
	"github.com/sahilchouksey/bca-library/utils/response"
)

// EngagementHandler serves bookmarks and download history of the signed-in user
type EngagementHandler struct {
	engagementService *services.EngagementService
	resourceService   *services.ResourceService
}

// NewEngagementHandler creates a new engagement handler
func NewEngagementHandler(engagementService *services.EngagementService, resourceService *services.ResourceService) *EngagementHandler {
	return &EngagementHandler{
		engagementService: engagementService,
		resourceService:   resourceService,
	}
}

// AddBookmark handles POST /api/v1/resources/:id/bookmark. Bookmarking twice
// returns the existing bookmark.
func (h *EngagementHandler) AddBookmark(c *fiber.Ctx) error {
	ctx := c.UserContext()
	resourceID := c.Params("id")

	// bookmarks are only created for resources that exist
	if _, err := h.resourceService.Get(ctx, resourceID); err != nil {
		return response.FromError(c, err)
	}

	bookmark, err := h.engagementService.AddBookmark(ctx, middleware.UserOf(c).ID, resourceID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Resource bookmarked", bookmark)
}

// RemoveBookmark handles DELETE /api/v1/resources/:id/bookmark
func (h *EngagementHandler) RemoveBookmark(c *fiber.Ctx) error {
	err := h.engagementService.RemoveBookmark(c.UserContext(), middleware.UserOf(c).ID, c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Bookmark removed", nil)
}

// IsBookmarked handles GET /api/v1/resources/:id/bookmark
func (h *EngagementHandler) IsBookmarked(c *fiber.Ctx) error {
	bookmarked := h.engagementService.IsBookmarked(c.UserContext(), middleware.UserOf(c).ID, c.Params("id"))
	return response.Success(c, fiber.Map{"bookmarked": bookmarked})
}

// ListBookmarks handles GET /api/v1/me/bookmarks
func (h *EngagementHandler) ListBookmarks(c *fiber.Ctx) error {
	bookmarks, err := h.engagementService.GetUserBookmarks(c.UserContext(), middleware.UserOf(c).ID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, bookmarks)
}

// ListDownloads handles GET /api/v1/me/downloads?limit=
func (h *EngagementHandler) ListDownloads(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", config.DefaultDownloadsLimit)

	downloads, err := h.engagementService.GetUserDownloads(c.UserContext(), middleware.UserOf(c).ID, limit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, downloads)
}
