package resource

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/middleware"
	"github.com/sahilchouksey/bca-library/utils/response"
)

// ResourceHandler handles resource-related requests
type ResourceHandler struct {
	resourceService   *services.ResourceService
	storageService    *services.StorageService
	engagementService *services.EngagementService
	maxPageLimit      int
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(resourceService *services.ResourceService, storageService *services.StorageService, engagementService *services.EngagementService, maxPageLimit int) *ResourceHandler {
	if maxPageLimit < 1 {
		maxPageLimit = 100
	}
	return &ResourceHandler{
		resourceService:   resourceService,
		storageService:    storageService,
		engagementService: engagementService,
		maxPageLimit:      maxPageLimit,
	}
}

// ResourceDetail is a resource with display labels for its file
type ResourceDetail struct {
	*model.Resource
	FileTypeLabel string `json:"file_type_label"`
	FileSizeLabel string `json:"file_size_label"`
}

// DownloadResponse is returned when a download is recorded
type DownloadResponse struct {
	Download *model.Download `json:"download"`
	URL      string          `json:"url"`
}

func filtersFrom(c *fiber.Ctx) services.ResourceFilters {
	filters := services.ResourceFilters{
		Semester: c.QueryInt("semester", 0),
		Subject:  strings.TrimSpace(c.Query("subject")),
		Category: strings.TrimSpace(c.Query("category")),
	}
	for _, tag := range strings.Split(c.Query("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			filters.Tags = append(filters.Tags, tag)
		}
	}
	return filters
}

// limitFrom reads the limit query parameter, capped at the configured maximum
func (h *ResourceHandler) limitFrom(c *fiber.Ctx, fallback int) int {
	limit := c.QueryInt("limit", fallback)
	if limit > h.maxPageLimit {
		limit = h.maxPageLimit
	}
	return limit
}

// ListResources handles GET /api/v1/resources
func (h *ResourceHandler) ListResources(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		return response.BadRequest(c, "page must be at least 1")
	}
	limit := h.limitFrom(c, config.DefaultPaginationLimit)
	if limit < 1 {
		return response.BadRequest(c, "limit must be at least 1")
	}
	// the offset must fit in an int
	if page > math.MaxInt/limit {
		return response.BadRequest(c, "page is out of range")
	}

	result, err := h.resourceService.List(c.UserContext(), filtersFrom(c), limit, (page-1)*limit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Paginated(c, result.Resources, response.CalculatePagination(result.Page, result.Limit, result.Total))
}

// SearchResources handles GET /api/v1/resources/search?q=
func (h *ResourceHandler) SearchResources(c *fiber.Ctx) error {
	limit := h.limitFrom(c, config.DefaultSearchLimit)

	result, err := h.resourceService.Search(c.UserContext(), c.Query("q"), filtersFrom(c), limit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Paginated(c, result.Resources, response.CalculatePagination(result.Page, result.Limit, result.Total))
}

// ListBySemester handles GET /api/v1/semesters/:semester/resources
func (h *ResourceHandler) ListBySemester(c *fiber.Ctx) error {
	semester, err := c.ParamsInt("semester")
	if err != nil {
		return response.BadRequest(c, "Please select a valid semester")
	}

	resources, err := h.resourceService.ListBySemester(c.UserContext(), semester)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, resources)
}

// GetResource handles GET /api/v1/resources/:id
func (h *ResourceHandler) GetResource(c *fiber.Ctx) error {
	resource, err := h.resourceService.GetActive(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, ResourceDetail{
		Resource:      resource,
		FileTypeLabel: services.FileTypeLabel(resource.FileType),
		FileSizeLabel: services.FormatFileSize(resource.FileSize),
	})
}

// CreateResource handles POST /api/v1/resources. A multipart request with a
// "file" part uploads the file; a JSON body only creates the metadata.
func (h *ResourceHandler) CreateResource(c *fiber.Ctx) error {
	user := middleware.UserOf(c)

	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		var input services.ResourceInput
		if err := c.BodyParser(&input); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}

		resource, err := h.resourceService.Create(c.UserContext(), input, user.ID)
		if err != nil {
			return response.FromError(c, err)
		}
		return response.Created(c, "Resource created successfully", resource)
	}

	input, err := inputFromForm(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "File is required")
	}
	if fileHeader.Size > h.storageService.MaxSize() {
		return response.Error(c, fiber.StatusRequestEntityTooLarge,
			h.storageService.ValidateFile(fileHeader.Size, "").Reason, "PAYLOAD_TOO_LARGE")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.BadRequest(c, "Failed to read uploaded file")
	}
	defer file.Close()

	mimeType := partMimeType(fileHeader.Header.Get(fiber.HeaderContentType))

	resource, err := h.resourceService.Upload(c.UserContext(), input, fileHeader.Filename, mimeType, fileHeader.Size, file, user.ID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Resource uploaded successfully", resource)
}

// UploadBatch handles POST /api/v1/resources/batch. Every "files" part
// becomes a resource sharing the form's metadata.
func (h *ResourceHandler) UploadBatch(c *fiber.Ctx) error {
	input, err := inputFromForm(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	form, err := c.MultipartForm()
	if err != nil {
		return response.BadRequest(c, "Files are required")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return response.BadRequest(c, "Files are required")
	}
	if len(headers) > config.MaxBatchFiles {
		return response.BadRequest(c, fmt.Sprintf("You can upload at most %d files at once", config.MaxBatchFiles))
	}

	files := make([]services.BatchFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.storageService.MaxSize() {
			return response.Error(c, fiber.StatusRequestEntityTooLarge,
				fh.Filename+": "+h.storageService.ValidateFile(fh.Size, "").Reason, "PAYLOAD_TOO_LARGE")
		}
		f, err := fh.Open()
		if err != nil {
			return response.BadRequest(c, "Failed to read uploaded file")
		}
		defer f.Close()

		files = append(files, services.BatchFile{
			Name:     fh.Filename,
			MimeType: partMimeType(fh.Header.Get(fiber.HeaderContentType)),
			Size:     fh.Size,
			Content:  f,
		})
	}

	resources, err := h.resourceService.UploadBatch(c.UserContext(), input, files, middleware.UserOf(c).ID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, fmt.Sprintf("%d resources uploaded successfully", len(resources)), resources)
}

func partMimeType(header string) string {
	if i := strings.IndexByte(header, ';'); i >= 0 {
		header = header[:i]
	}
	return strings.TrimSpace(header)
}

// inputFromForm reads resource metadata from multipart fields. Tags may be a
// JSON array or a comma separated list.
func inputFromForm(c *fiber.Ctx) (services.ResourceInput, error) {
	input := services.ResourceInput{
		Title:       strings.TrimSpace(c.FormValue("title")),
		Description: c.FormValue("description"),
		Subject:     strings.TrimSpace(c.FormValue("subject")),
		Category:    strings.TrimSpace(c.FormValue("category")),
	}

	if raw := c.FormValue("semester"); raw != "" {
		semester, err := strconv.Atoi(raw)
		if err != nil {
			return input, fiber.NewError(fiber.StatusBadRequest, "Please select a valid semester")
		}
		input.Semester = semester
	}

	raw := strings.TrimSpace(c.FormValue("tags"))
	switch {
	case raw == "":
	case strings.HasPrefix(raw, "["):
		if err := json.Unmarshal([]byte(raw), &input.Tags); err != nil {
			return input, fiber.NewError(fiber.StatusBadRequest, "Invalid tags")
		}
	default:
		input.Tags = strings.Split(raw, ",")
	}

	return input, nil
}

// ownedResource loads the resource and checks that the user uploaded it or is an admin
func (h *ResourceHandler) ownedResource(c *fiber.Ctx) (*model.Resource, error) {
	resource, err := h.resourceService.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}

	user := middleware.UserOf(c)
	if user == nil || (resource.UploadedBy != user.ID && !user.IsAdmin()) {
		return nil, &services.Error{Status: fiber.StatusForbidden, Message: "You can only modify resources you uploaded"}
	}
	return resource, nil
}

// UpdateResource handles PUT /api/v1/resources/:id
func (h *ResourceHandler) UpdateResource(c *fiber.Ctx) error {
	var req services.ResourceUpdate
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	resource, err := h.ownedResource(c)
	if err != nil {
		return response.FromError(c, err)
	}

	updated, err := h.resourceService.Update(c.UserContext(), resource.ID, req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Resource updated successfully", updated)
}

// DeleteResource handles DELETE /api/v1/resources/:id
func (h *ResourceHandler) DeleteResource(c *fiber.Ctx) error {
	resource, err := h.ownedResource(c)
	if err != nil {
		return response.FromError(c, err)
	}

	if err := h.resourceService.Delete(c.UserContext(), resource.ID); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Resource deleted successfully", nil)
}

// DownloadResource handles GET /api/v1/resources/:id/download. The download
// is recorded before the signed URL is returned.
func (h *ResourceHandler) DownloadResource(c *fiber.Ctx) error {
	ctx := c.UserContext()

	resource, err := h.resourceService.GetActive(ctx, c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	if resource.FileID == "" {
		return response.NotFound(c, "This resource has no file to download")
	}

	url, err := h.storageService.DownloadURL(ctx, resource.FileID)
	if err != nil {
		return response.FromError(c, err)
	}

	download, err := h.engagementService.RecordDownload(ctx, middleware.UserOf(c).ID, resource.ID, resource.FileSize)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, DownloadResponse{Download: download, URL: url})
}

// PreviewResource handles GET /api/v1/resources/:id/preview?width=&height=
func (h *ResourceHandler) PreviewResource(c *fiber.Ctx) error {
	ctx := c.UserContext()

	resource, err := h.resourceService.GetActive(ctx, c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	if resource.FileID == "" {
		return response.NotFound(c, "This resource has no file to preview")
	}

	url, err := h.storageService.PreviewURL(ctx, resource.FileID, c.QueryInt("width", 0), c.QueryInt("height", 0))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, fiber.Map{"url": url})
}

// ViewResource handles GET /api/v1/resources/:id/view
func (h *ResourceHandler) ViewResource(c *fiber.Ctx) error {
	ctx := c.UserContext()

	resource, err := h.resourceService.GetActive(ctx, c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	if resource.FileID == "" {
		return response.NotFound(c, "This resource has no file to view")
	}

	url, err := h.storageService.ViewURL(ctx, resource.FileID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, fiber.Map{"url": url})
}
