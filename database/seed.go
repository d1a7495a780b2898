package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/logger"
)

// Seeder handles database seeding operations
type Seeder struct {
	accounts    gateway.AccountService
	store       gateway.DocumentStore
	subjects    *services.SubjectService
	collections gateway.Collections
	log         zerolog.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(accounts gateway.AccountService, store gateway.DocumentStore, subjects *services.SubjectService, collections gateway.Collections) *Seeder {
	return &Seeder{
		accounts:    accounts,
		store:       store,
		subjects:    subjects,
		collections: collections,
		log:         logger.Component("seed"),
	}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll(ctx context.Context) error {
	if err := s.SeedAdminUser(ctx, os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedSubjects(ctx); err != nil {
		return fmt.Errorf("failed to seed subjects: %w", err)
	}

	s.log.Info().Msg("database seeding completed")
	return nil
}

// SeedAdminUser creates an admin account and profile. It is skipped when no
// credentials are given or the account already exists.
func (s *Seeder) SeedAdminUser(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		s.log.Warn().Msg("ADMIN_EMAIL and ADMIN_PASSWORD not set, skipping admin user creation")
		return nil
	}

	account, err := s.accounts.Create(ctx, "", email, password, "System Administrator")
	if gateway.IsConflict(err) {
		s.log.Info().Str("email", email).Msg("admin user already exists, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	admin := &model.User{
		ID:        account.ID,
		Name:      account.Name,
		Email:     account.Email,
		Semester:  config.MinSemester,
		Role:      model.RoleAdmin,
		Verified:  true,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateDocument(ctx, s.collections.Users, admin); err != nil {
		return err
	}

	s.log.Info().Str("email", admin.Email).Msg("created admin user")
	return nil
}

// SeedSubjects stores the built-in subject catalogue, skipping existing codes
func (s *Seeder) SeedSubjects(ctx context.Context) error {
	catalog, err := config.Catalog()
	if err != nil {
		return err
	}

	created, err := s.subjects.SeedCatalog(ctx, catalog)
	if err != nil {
		return err
	}

	s.log.Info().Int("created", created).Msg("seeded subjects")
	return nil
}
