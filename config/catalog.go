package config

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	AppName        = "BCA Student Library"
	AppDescription = "Access study materials, notes, assignments, and resources for all BCA semesters"
	AppVersion     = "1.0.0"

	MinSemester = 1
	MaxSemester = 6

	// MaxFileSize is the largest accepted upload (100 MiB).
	MaxFileSize = 100 * 1024 * 1024
	// MaxBatchFiles caps one batch upload. The request body limit still
	// applies to the batch as a whole.
	MaxBatchFiles = 10

	DefaultPaginationLimit = 12
	DefaultSearchLimit     = 20
	DefaultDownloadsLimit  = 50
	RecentUploadsLimit     = 5
	PopularSubjectsLimit   = 5
)

// Option is a value/label pair rendered by clients as a select option.
type Option struct {
	Value interface{} `json:"value"`
	Label string      `json:"label"`
}

var CategoryOptions = []Option{
	{Value: "notes", Label: "Notes"},
	{Value: "assignments", Label: "Assignments"},
	{Value: "papers", Label: "Question Papers"},
	{Value: "videos", Label: "Video Lectures"},
	{Value: "code", Label: "Code Examples"},
}

// SemesterOptions returns Semester 1..6.
func SemesterOptions() []Option {
	options := make([]Option, 0, MaxSemester)
	for i := MinSemester; i <= MaxSemester; i++ {
		options = append(options, Option{Value: i, Label: fmt.Sprintf("Semester %d", i)})
	}
	return options
}

// DisplayFileTypes maps the MIME types shown to users to their short label.
// Images are accepted on upload but not listed here.
var DisplayFileTypes = map[string]string{
	"application/pdf":    "PDF",
	"application/msword": "DOC",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "DOCX",
	"application/vnd.ms-powerpoint":                                             "PPT",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "PPTX",
	"video/mp4":                    "MP4",
	"video/webm":                   "WEBM",
	"text/plain":                   "TXT",
	"application/zip":              "ZIP",
	"application/x-rar-compressed": "RAR",
}

// AcceptedFileTypes is the upload allow-list.
var AcceptedFileTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"video/mp4",
	"video/webm",
	"text/plain",
	"application/zip",
	"application/x-rar-compressed",
	"image/jpeg",
	"image/png",
	"image/gif",
}

//go:embed subjects.yaml
var subjectsYAML []byte

type CatalogSubject struct {
	Name          string   `yaml:"name" json:"name"`
	Code          string   `yaml:"code" json:"code"`
	Credits       int      `yaml:"credits" json:"credits"`
	Description   string   `yaml:"description" json:"description,omitempty"`
	Prerequisites []string `yaml:"prerequisites" json:"prerequisites,omitempty"`
}

type CatalogSemester struct {
	Number   int              `yaml:"number" json:"number"`
	Subjects []CatalogSubject `yaml:"subjects" json:"subjects"`
}

type SubjectCatalog struct {
	Semesters []CatalogSemester `yaml:"semesters" json:"semesters"`
}

var (
	catalog     *SubjectCatalog
	catalogErr  error
	catalogOnce sync.Once
)

// Catalog returns the built-in subject catalogue.
func Catalog() (*SubjectCatalog, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = ParseCatalog(subjectsYAML)
	})
	return catalog, catalogErr
}

// ParseCatalog decodes a YAML subject catalogue and checks semester numbers and codes.
func ParseCatalog(data []byte) (*SubjectCatalog, error) {
	var c SubjectCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse subject catalogue: %w", err)
	}

	seen := make(map[string]bool)
	for _, sem := range c.Semesters {
		if sem.Number < MinSemester || sem.Number > MaxSemester {
			return nil, fmt.Errorf("semester %d out of range", sem.Number)
		}
		for _, s := range sem.Subjects {
			if s.Code == "" || s.Name == "" {
				return nil, fmt.Errorf("semester %d has a subject without name or code", sem.Number)
			}
			if seen[s.Code] {
				return nil, fmt.Errorf("duplicate subject code %s", s.Code)
			}
			seen[s.Code] = true
		}
	}

	return &c, nil
}

// SubjectNames returns the subject names for a semester, in catalogue order.
func (c *SubjectCatalog) SubjectNames(semester int) []string {
	for _, sem := range c.Semesters {
		if sem.Number == semester {
			names := make([]string, 0, len(sem.Subjects))
			for _, s := range sem.Subjects {
				names = append(names, s.Name)
			}
			return names
		}
	}
	return nil
}
