package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sahilchouksey/bca-library/gateway/gatewaytest"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/cache"
	"github.com/sahilchouksey/bca-library/utils/validation"
)

type testEnv struct {
	backend    *gatewaytest.Backend
	storage    *services.StorageService
	resources  *services.ResourceService
	engagement *services.EngagementService
	auth       *services.AuthService
	subjects   *services.SubjectService
	stats      *services.StatsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	b := gatewaytest.New(t)
	storage := services.NewStorageService(b.Storage, 0)

	return &testEnv{
		backend:    b,
		storage:    storage,
		resources:  services.NewResourceService(b.Databases, storage, b.Collections),
		engagement: services.NewEngagementService(b.Databases, b.Collections),
		auth:       services.NewAuthService(b.Account, b.Databases, b.Collections, "http://app.test/"),
		subjects:   services.NewSubjectService(b.Databases, b.Collections, time.Minute),
		stats:      services.NewStatsService(b.Databases, cache.NewRedisCache(b.Redis, "library"), b.Collections),
	}
}

// seedResource stores an active resource uploaded at the given time.
func (e *testEnv) seedResource(t *testing.T, title string, semester int, subject, category string, uploaded time.Time, tags ...string) *model.Resource {
	t.Helper()

	r := &model.Resource{
		ID:         uuid.New().String(),
		Title:      title,
		Semester:   semester,
		Subject:    subject,
		Category:   category,
		UploadDate: uploaded,
		Tags:       tags,
		Status:     model.ResourceStatusActive,
	}
	if err := e.backend.Databases.CreateDocument(context.Background(), e.backend.Collections.Resources, r); err != nil {
		t.Fatalf("seed resource %q: %v", title, err)
	}
	return r
}

func registerForm(email string) validation.RegisterForm {
	return validation.RegisterForm{
		Name:            "Asha Verma",
		Email:           email,
		Password:        "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
		Semester:        3,
		College:         "City College",
	}
}

// register signs up a student and returns the auth result.
func (e *testEnv) register(t *testing.T, email string) *services.AuthResult {
	t.Helper()

	result, err := e.auth.Register(context.Background(), registerForm(email))
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return result
}

func assertStatus(t *testing.T, err error, want int) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error with status %d, got nil", want)
	}
	if got := services.StatusOf(err); got != want {
		t.Fatalf("status = %d, want %d (err: %v)", got, want, err)
	}
}

func assertServiceError(t *testing.T, err error, status int, message string) {
	t.Helper()

	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *services.Error, got %T: %v", err, err)
	}
	if svcErr.Status != status || svcErr.Message != message {
		t.Fatalf("error = {%d %q}, want {%d %q}", svcErr.Status, svcErr.Message, status, message)
	}
}
