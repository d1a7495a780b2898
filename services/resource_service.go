package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/utils/logger"
	"github.com/sahilchouksey/bca-library/utils/pdfvalidation"
	"github.com/sahilchouksey/bca-library/utils/validation"
	"gorm.io/datatypes"
)

// ResourceFilters narrows resource listings. Zero values are ignored.
type ResourceFilters struct {
	Semester int      `json:"semester,omitempty"`
	Subject  string   `json:"subject,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Page is one page of resources.
type Page struct {
	Resources []model.Resource `json:"resources"`
	Total     int64            `json:"total"`
	Page      int              `json:"page"`
	Limit     int              `json:"limit"`
}

// ResourceInput is the catalogue metadata of a new resource.
type ResourceInput struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description"`
	Semester    int      `json:"semester" validate:"min=1,max=6"`
	Subject     string   `json:"subject" validate:"required"`
	Category    string   `json:"category" validate:"oneof=notes assignments papers videos code"`
	Tags        []string `json:"tags"`
	FileID      string   `json:"file_id"`
	FileType    string   `json:"file_type"`
	FileSize    int64    `json:"file_size" validate:"min=0"`
	PageCount   int      `json:"page_count"`
}

// ResourceUpdate is a partial update; nil fields are left unchanged.
type ResourceUpdate struct {
	Title       *string   `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string   `json:"description"`
	Semester    *int      `json:"semester" validate:"omitempty,min=1,max=6"`
	Subject     *string   `json:"subject" validate:"omitempty,min=1"`
	Category    *string   `json:"category" validate:"omitempty,oneof=notes assignments papers videos code"`
	Tags        *[]string `json:"tags"`
	Rating      *float64  `json:"rating" validate:"omitempty,min=0,max=5"`
	Status      *string   `json:"status" validate:"omitempty,oneof=active inactive"`
}

// UploadFile is the file part of ResourceService.Upload. Content must support
// random access so PDF pages can be counted.
type UploadFile interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// ResourceService answers resource listings and manages resource documents.
type ResourceService struct {
	store      gateway.DocumentStore
	storage    *StorageService
	collection string
	validator  *validation.Validator
	log        zerolog.Logger
}

func NewResourceService(store gateway.DocumentStore, storage *StorageService, collections gateway.Collections) *ResourceService {
	return &ResourceService{
		store:      store,
		storage:    storage,
		collection: collections.Resources,
		validator:  validation.NewValidator(),
		log:        logger.Component("resources"),
	}
}

func (f ResourceFilters) queries(withTags bool) []gateway.Query {
	queries := []gateway.Query{gateway.Equal("status", model.ResourceStatusActive)}
	if f.Semester != 0 {
		queries = append(queries, gateway.Equal("semester", f.Semester))
	}
	if f.Subject != "" {
		queries = append(queries, gateway.Equal("subject", f.Subject))
	}
	if f.Category != "" {
		queries = append(queries, gateway.Equal("category", f.Category))
	}
	// tags are stored normalized, so filters are too
	if normalized := normalizeTags(f.Tags); withTags && len(normalized) > 0 {
		tags := make([]interface{}, len(normalized))
		for i, t := range normalized {
			tags[i] = t
		}
		queries = append(queries, gateway.Contains("tags", tags...))
	}
	return queries
}

// List returns active resources, newest first.
func (s *ResourceService) List(ctx context.Context, filters ResourceFilters, limit, offset int) (*Page, error) {
	if limit < 1 {
		return nil, badRequest("limit must be at least 1")
	}
	if offset < 0 {
		return nil, badRequest("offset must not be negative")
	}
	searchesTotal.WithLabelValues("list").Inc()

	queries := append(filters.queries(true),
		gateway.OrderDesc("upload_date"),
		gateway.Limit(limit),
		gateway.Offset(offset),
	)

	var resources []model.Resource
	total, err := s.store.ListDocuments(ctx, s.collection, &resources, queries...)
	if err != nil {
		return nil, fail(s.log, "list resources", err)
	}

	return &Page{
		Resources: nonNil(resources),
		Total:     total,
		Page:      offset/limit + 1,
		Limit:     limit,
	}, nil
}

// Search matches term against resource titles. Tags are not applied and the
// result is always reported as page 1.
func (s *ResourceService) Search(ctx context.Context, term string, filters ResourceFilters, limit int) (*Page, error) {
	if limit < 1 {
		return nil, badRequest("limit must be at least 1")
	}
	if strings.TrimSpace(term) == "" {
		return nil, badRequest("Please enter a search term")
	}
	searchesTotal.WithLabelValues("search").Inc()

	queries := append(filters.queries(false),
		gateway.Search("title", term),
		gateway.OrderDesc("upload_date"),
		gateway.Limit(limit),
	)

	var resources []model.Resource
	total, err := s.store.ListDocuments(ctx, s.collection, &resources, queries...)
	if err != nil {
		return nil, fail(s.log, "search resources", err)
	}

	return &Page{
		Resources: nonNil(resources),
		Total:     total,
		Page:      1,
		Limit:     limit,
	}, nil
}

// ListBySemester returns every active resource of a semester, newest first.
func (s *ResourceService) ListBySemester(ctx context.Context, semester int) ([]model.Resource, error) {
	if semester < config.MinSemester || semester > config.MaxSemester {
		return nil, badRequest("Please select a valid semester")
	}

	var resources []model.Resource
	_, err := s.store.ListDocuments(ctx, s.collection, &resources,
		gateway.Equal("semester", semester),
		gateway.Equal("status", model.ResourceStatusActive),
		gateway.OrderDesc("upload_date"),
	)
	if err != nil {
		return nil, fail(s.log, "list resources by semester", err)
	}
	return nonNil(resources), nil
}

func (s *ResourceService) Get(ctx context.Context, id string) (*model.Resource, error) {
	var resource model.Resource
	if err := s.store.GetDocument(ctx, s.collection, id, &resource); err != nil {
		return nil, fail(s.log, "get resource", err)
	}
	return &resource, nil
}

// Create stores a new active resource with zero downloads and rating.
func (s *ResourceService) Create(ctx context.Context, input ResourceInput, uploadedBy string) (*model.Resource, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	resource := newResource(input, uploadedBy)
	if err := s.store.CreateDocument(ctx, s.collection, resource); err != nil {
		return nil, fail(s.log, "create resource", err)
	}

	s.log.Info().Str("resource_id", resource.ID).Str("subject", resource.Subject).Msg("resource created")
	return resource, nil
}

func newResource(input ResourceInput, uploadedBy string) *model.Resource {
	now := time.Now()
	return &model.Resource{
		ID:            uuid.New().String(),
		Title:         strings.TrimSpace(input.Title),
		Description:   input.Description,
		Semester:      input.Semester,
		Subject:       input.Subject,
		Category:      input.Category,
		FileID:        input.FileID,
		FileType:      input.FileType,
		FileSize:      input.FileSize,
		PageCount:     input.PageCount,
		UploadedBy:    uploadedBy,
		UploadDate:    now,
		DownloadCount: 0,
		Rating:        0,
		Tags:          normalizeTags(input.Tags),
		Status:        model.ResourceStatusActive,
	}
}

// GetActive is Get for public reads: inactive resources are reported missing.
func (s *ResourceService) GetActive(ctx context.Context, id string) (*model.Resource, error) {
	resource, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resource.IsActive() {
		return nil, &Error{Status: http.StatusNotFound, Message: "Resource not found"}
	}
	return resource, nil
}

// Upload stores file and creates its resource. The stored file is removed
// again when the document cannot be written.
func (s *ResourceService) Upload(ctx context.Context, input ResourceInput, name, mimeType string, size int64, file UploadFile, uploadedBy string) (*model.Resource, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}
	if check := s.storage.ValidateFile(size, mimeType); !check.Valid {
		return nil, badRequest(check.Reason)
	}

	if mimeType == "application/pdf" {
		pages, err := pdfvalidation.PageCount(file, size)
		if err != nil {
			return nil, badRequest("Invalid PDF file: " + err.Error())
		}
		input.PageCount = pages
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, fail(s.log, "rewind upload", err)
		}
	}

	stored, err := s.storage.UploadFile(ctx, UploadItem{Name: name, MimeType: mimeType, Size: size, Content: file}, nil)
	if err != nil {
		return nil, err
	}

	input.FileID = stored.ID
	input.FileType = mimeType
	input.FileSize = size

	resource, err := s.Create(ctx, input, uploadedBy)
	if err != nil {
		if delErr := s.storage.DeleteFile(context.WithoutCancel(ctx), stored.ID); delErr != nil {
			s.log.Warn().Err(delErr).Str("file_id", stored.ID).Msg("failed to remove orphaned file")
		}
		return nil, err
	}
	return resource, nil
}

// BatchFile is one file of UploadBatch.
type BatchFile struct {
	Name     string
	MimeType string
	Size     int64
	Content  UploadFile
}

// UploadBatch stores files in parallel and creates one resource per file,
// all sharing input's metadata. With more than one file each title gets the
// file's base name appended. Either every resource is created or none is,
// and stored files are removed again on failure.
func (s *ResourceService) UploadBatch(ctx context.Context, input ResourceInput, files []BatchFile, uploadedBy string) ([]*model.Resource, error) {
	if len(files) == 0 {
		return nil, badRequest("At least one file is required")
	}
	if len(files) > config.MaxBatchFiles {
		return nil, badRequest(fmt.Sprintf("You can upload at most %d files at once", config.MaxBatchFiles))
	}

	inputs := make([]ResourceInput, len(files))
	items := make([]UploadItem, len(files))
	for i, f := range files {
		in := input
		if len(files) > 1 {
			in.Title = strings.TrimSpace(input.Title) + " - " + strings.TrimSuffix(f.Name, path.Ext(f.Name))
		}
		if err := s.validator.Validate(in); err != nil {
			return nil, err
		}
		if check := s.storage.ValidateFile(f.Size, f.MimeType); !check.Valid {
			return nil, badRequest(f.Name + ": " + check.Reason)
		}
		if f.MimeType == "application/pdf" {
			pages, err := pdfvalidation.PageCount(f.Content, f.Size)
			if err != nil {
				return nil, badRequest(f.Name + ": Invalid PDF file: " + err.Error())
			}
			in.PageCount = pages
			if _, err := f.Content.Seek(0, io.SeekStart); err != nil {
				return nil, fail(s.log, "rewind upload", err)
			}
		}
		inputs[i] = in
		items[i] = UploadItem{Name: f.Name, MimeType: f.MimeType, Size: f.Size, Content: f.Content}
	}

	stored, err := s.storage.UploadMultipleFiles(ctx, items, func(p UploadProgress) {
		s.log.Debug().Int("index", p.Index).Str("name", p.FileName).Int("progress", p.Progress).Str("status", p.Status).Msg("batch upload")
	})
	if err != nil {
		return nil, err
	}

	resources := make([]*model.Resource, len(stored))
	err = s.store.Transaction(ctx, func(tx gateway.DocumentStore) error {
		for i, file := range stored {
			in := inputs[i]
			in.FileID = file.ID
			in.FileType = items[i].MimeType
			in.FileSize = items[i].Size
			resources[i] = newResource(in, uploadedBy)
			if err := tx.CreateDocument(ctx, s.collection, resources[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, file := range stored {
			if delErr := s.storage.DeleteFile(context.WithoutCancel(ctx), file.ID); delErr != nil {
				s.log.Warn().Err(delErr).Str("file_id", file.ID).Msg("failed to remove orphaned file")
			}
		}
		return nil, fail(s.log, "create resources", err)
	}

	s.log.Info().Int("count", len(resources)).Str("subject", input.Subject).Msg("resources uploaded")
	return resources, nil
}

// Update applies a partial update and returns the stored resource.
func (s *ResourceService) Update(ctx context.Context, id string, update ResourceUpdate) (*model.Resource, error) {
	if err := s.validator.Validate(update); err != nil {
		return nil, err
	}

	data := make(map[string]interface{})
	if update.Title != nil {
		data["title"] = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		data["description"] = *update.Description
	}
	if update.Semester != nil {
		data["semester"] = *update.Semester
	}
	if update.Subject != nil {
		data["subject"] = *update.Subject
	}
	if update.Category != nil {
		data["category"] = *update.Category
	}
	if update.Tags != nil {
		data["tags"] = datatypes.JSONSlice[string](normalizeTags(*update.Tags))
	}
	if update.Rating != nil {
		data["rating"] = *update.Rating
	}
	if update.Status != nil {
		data["status"] = *update.Status
	}
	if len(data) == 0 {
		return s.Get(ctx, id)
	}
	data["updated_at"] = time.Now()

	var resource model.Resource
	if err := s.store.UpdateDocument(ctx, s.collection, id, data, &resource); err != nil {
		return nil, fail(s.log, "update resource", err)
	}
	return &resource, nil
}

// Delete removes the resource document and then its stored file.
func (s *ResourceService) Delete(ctx context.Context, id string) error {
	resource, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteDocument(ctx, s.collection, id); err != nil {
		return fail(s.log, "delete resource", err)
	}

	if resource.FileID != "" {
		if err := s.storage.DeleteFile(ctx, resource.FileID); err != nil && StatusOf(err) != http.StatusNotFound {
			s.log.Warn().Err(err).Str("file_id", resource.FileID).Msg("resource deleted but file removal failed")
		}
	}

	s.log.Info().Str("resource_id", id).Msg("resource deleted")
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
