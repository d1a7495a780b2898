package subject

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/response"
)

// SubjectHandler handles subject-related requests
type SubjectHandler struct {
	subjectService *services.SubjectService
}

// NewSubjectHandler creates a new subject handler
func NewSubjectHandler(subjectService *services.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjectService: subjectService}
}

// ListSubjects handles GET /api/v1/semesters/:semester/subjects
func (h *SubjectHandler) ListSubjects(c *fiber.Ctx) error {
	semester, err := c.ParamsInt("semester")
	if err != nil {
		return response.BadRequest(c, "Please select a valid semester")
	}

	subjects, err := h.subjectService.GetSubjectsBySemester(c.UserContext(), semester)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, subjects)
}

// CreateSubject handles POST /api/v1/subjects (admin only)
func (h *SubjectHandler) CreateSubject(c *fiber.Ctx) error {
	var req services.CreateSubjectRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	subject, err := h.subjectService.CreateSubject(c.UserContext(), req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Subject created successfully", subject)
}
