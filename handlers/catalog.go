package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/response"
)

// CatalogResponse lists the constants clients render forms and filters from
type CatalogResponse struct {
	App               AppInfo                  `json:"app"`
	Semesters         []config.Option          `json:"semesters"`
	Categories        []config.Option          `json:"categories"`
	FileTypes         map[string]string        `json:"file_types"`
	AcceptedFileTypes []string                 `json:"accepted_file_types"`
	MaxFileSize       int64                    `json:"max_file_size"`
	MaxFileSizeLabel  string                   `json:"max_file_size_label"`
	PageSize          int                      `json:"page_size"`
	Subjects          []config.CatalogSemester `json:"subjects"`
}

type AppInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// CatalogHandler handles GET /api/v1/catalog
func CatalogHandler(maxFileSize int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subjects, err := config.Catalog()
		if err != nil {
			return response.InternalServerError(c, "Failed to load subject catalog")
		}

		return response.Success(c, CatalogResponse{
			App: AppInfo{
				Name:        config.AppName,
				Description: config.AppDescription,
				Version:     config.AppVersion,
			},
			Semesters:         config.SemesterOptions(),
			Categories:        config.CategoryOptions,
			FileTypes:         config.DisplayFileTypes,
			AcceptedFileTypes: config.AcceptedFileTypes,
			MaxFileSize:       maxFileSize,
			MaxFileSizeLabel:  services.FormatFileSize(maxFileSize),
			PageSize:          config.DefaultPaginationLimit,
			Subjects:          subjects.Semesters,
		})
	}
}
