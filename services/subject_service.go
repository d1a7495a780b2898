package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/utils/logger"
	"github.com/sahilchouksey/bca-library/utils/validation"
)

// CreateSubjectRequest represents the request to create a subject
type CreateSubjectRequest struct {
	Name          string   `json:"name" validate:"required,max=255"`
	Code          string   `json:"code" validate:"required,max=50"`
	Semester      int      `json:"semester" validate:"min=1,max=6"`
	Credits       int      `json:"credits" validate:"min=0,max=20"`
	Description   string   `json:"description"`
	Prerequisites []string `json:"prerequisites"`
}

// SubjectService manages subjects. Listings per semester are cached in memory.
type SubjectService struct {
	store       gateway.DocumentStore
	collections gateway.Collections
	cache       *lru.LRU[int, []model.Subject]
	validator   *validation.Validator
	log         zerolog.Logger
}

// NewSubjectService creates a new subject service
func NewSubjectService(store gateway.DocumentStore, collections gateway.Collections, cacheTTL time.Duration) *SubjectService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &SubjectService{
		store:       store,
		collections: collections,
		cache:       lru.NewLRU[int, []model.Subject](config.MaxSemester, nil, cacheTTL),
		validator:   validation.NewValidator(),
		log:         logger.Component("subjects"),
	}
}

// CreateSubject stores a subject with no resources yet.
func (s *SubjectService) CreateSubject(ctx context.Context, req CreateSubjectRequest) (*model.Subject, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	now := time.Now()
	subject := &model.Subject{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(req.Name),
		Code:          strings.ToUpper(strings.TrimSpace(req.Code)),
		Semester:      req.Semester,
		Credits:       req.Credits,
		Description:   req.Description,
		Prerequisites: req.Prerequisites,
		ResourceCount: 0,
		CreatedAt:     now,
	}
	if subject.Prerequisites == nil {
		subject.Prerequisites = []string{}
	}

	if err := s.store.CreateDocument(ctx, s.collections.Subjects, subject); err != nil {
		return nil, fail(s.log, "create subject", err)
	}

	s.cache.Remove(subject.Semester)
	s.log.Info().Str("code", subject.Code).Int("semester", subject.Semester).Msg("subject created")
	return subject, nil
}

// GetSubjectsBySemester returns the semester's subjects ordered by name.
func (s *SubjectService) GetSubjectsBySemester(ctx context.Context, semester int) ([]model.Subject, error) {
	if semester < config.MinSemester || semester > config.MaxSemester {
		return nil, badRequest("Please select a valid semester")
	}

	if cached, ok := s.cache.Get(semester); ok {
		return cached, nil
	}

	var subjects []model.Subject
	_, err := s.store.ListDocuments(ctx, s.collections.Subjects, &subjects,
		gateway.Equal("semester", semester),
		gateway.OrderAsc("name"),
	)
	if err != nil {
		return nil, fail(s.log, "get subjects by semester", err)
	}

	subjects = nonNil(subjects)
	s.cache.Add(semester, subjects)
	return subjects, nil
}

// SyncResourceCounts sets every subject's resource_count to the number of
// active resources filed under its name.
func (s *SubjectService) SyncResourceCounts(ctx context.Context) (int, error) {
	buckets, err := s.store.CountBy(ctx, s.collections.Resources, "subject", 0,
		gateway.Equal("status", model.ResourceStatusActive))
	if err != nil {
		return 0, fail(s.log, "count resources by subject", err)
	}
	counts := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		counts[b.Value] = b.Count
	}

	var subjects []model.Subject
	if _, err := s.store.ListDocuments(ctx, s.collections.Subjects, &subjects); err != nil {
		return 0, fail(s.log, "list subjects", err)
	}

	updated := 0
	for _, subject := range subjects {
		count := counts[subject.Name]
		if int64(subject.ResourceCount) == count {
			continue
		}
		err := s.store.UpdateDocument(ctx, s.collections.Subjects, subject.ID,
			map[string]interface{}{"resource_count": count}, nil)
		if err != nil {
			return updated, fail(s.log, fmt.Sprintf("update subject %s", subject.Code), err)
		}
		updated++
	}

	if updated > 0 {
		s.cache.Purge()
	}
	return updated, nil
}

// SeedCatalog creates the subjects of the built-in catalogue that do not exist yet.
func (s *SubjectService) SeedCatalog(ctx context.Context, catalog *config.SubjectCatalog) (int, error) {
	created := 0
	for _, sem := range catalog.Semesters {
		for _, cs := range sem.Subjects {
			var existing []model.Subject
			total, err := s.store.ListDocuments(ctx, s.collections.Subjects, &existing,
				gateway.Equal("code", cs.Code), gateway.Limit(1))
			if err != nil {
				return created, fail(s.log, "look up subject", err)
			}
			if total > 0 {
				continue
			}

			_, err = s.CreateSubject(ctx, CreateSubjectRequest{
				Name:          cs.Name,
				Code:          cs.Code,
				Semester:      sem.Number,
				Credits:       cs.Credits,
				Description:   cs.Description,
				Prerequisites: cs.Prerequisites,
			})
			if err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}
