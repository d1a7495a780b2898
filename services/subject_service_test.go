package services_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/services"
)

func TestSubjectService_CreateAndList(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, req := range []services.CreateSubjectRequest{
		{Name: "Operating Systems", Code: "bca301", Semester: 3, Credits: 4},
		{Name: "Java Programming", Code: "BCA302", Semester: 3, Credits: 4, Prerequisites: []string{"BCA201"}},
	} {
		if _, err := env.subjects.CreateSubject(ctx, req); err != nil {
			t.Fatalf("CreateSubject(%s) failed: %v", req.Code, err)
		}
	}

	subjects, err := env.subjects.GetSubjectsBySemester(ctx, 3)
	if err != nil {
		t.Fatalf("GetSubjectsBySemester failed: %v", err)
	}
	if len(subjects) != 2 || subjects[0].Name != "Java Programming" {
		t.Fatalf("subjects should be ordered by name: %+v", subjects)
	}
	if subjects[1].Code != "BCA301" || subjects[1].ResourceCount != 0 {
		t.Errorf("unexpected subject: %+v", subjects[1])
	}
	if len(subjects[0].Prerequisites) != 1 || subjects[0].Prerequisites[0] != "BCA201" {
		t.Errorf("prerequisites = %v", subjects[0].Prerequisites)
	}

	// creating a subject invalidates the cached listing
	if _, err := env.subjects.CreateSubject(ctx, services.CreateSubjectRequest{Name: "Computer Graphics", Code: "BCA303", Semester: 3, Credits: 3}); err != nil {
		t.Fatalf("CreateSubject failed: %v", err)
	}
	subjects, err = env.subjects.GetSubjectsBySemester(ctx, 3)
	if err != nil {
		t.Fatalf("GetSubjectsBySemester failed: %v", err)
	}
	if len(subjects) != 3 {
		t.Errorf("expected 3 subjects after create, got %d", len(subjects))
	}

	_, err = env.subjects.CreateSubject(ctx, services.CreateSubjectRequest{Name: "Duplicate", Code: "BCA301", Semester: 3})
	assertStatus(t, err, http.StatusConflict)

	_, err = env.subjects.GetSubjectsBySemester(ctx, 0)
	assertStatus(t, err, http.StatusBadRequest)
}

func TestSubjectService_SyncResourceCounts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if _, err := env.subjects.CreateSubject(ctx, services.CreateSubjectRequest{Name: "C Programming", Code: "BCA101", Semester: 1}); err != nil {
		t.Fatalf("CreateSubject failed: %v", err)
	}
	if _, err := env.subjects.CreateSubject(ctx, services.CreateSubjectRequest{Name: "Mathematics", Code: "BCA102", Semester: 1}); err != nil {
		t.Fatalf("CreateSubject failed: %v", err)
	}

	// warm the cache so the sync has to purge it
	if _, err := env.subjects.GetSubjectsBySemester(ctx, 1); err != nil {
		t.Fatalf("GetSubjectsBySemester failed: %v", err)
	}

	env.seedResource(t, "a", 1, "C Programming", model.CategoryNotes, time.Now())
	env.seedResource(t, "b", 1, "C Programming", model.CategoryCode, time.Now())

	updated, err := env.subjects.SyncResourceCounts(ctx)
	if err != nil {
		t.Fatalf("SyncResourceCounts failed: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}

	subjects, err := env.subjects.GetSubjectsBySemester(ctx, 1)
	if err != nil {
		t.Fatalf("GetSubjectsBySemester failed: %v", err)
	}
	counts := map[string]int{}
	for _, s := range subjects {
		counts[s.Name] = s.ResourceCount
	}
	if counts["C Programming"] != 2 || counts["Mathematics"] != 0 {
		t.Errorf("counts = %v", counts)
	}
}

func TestSubjectService_SeedCatalog(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	catalog, err := config.Catalog()
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}

	created, err := env.subjects.SeedCatalog(ctx, catalog)
	if err != nil {
		t.Fatalf("SeedCatalog failed: %v", err)
	}
	if created != 36 {
		t.Errorf("created = %d, want 36", created)
	}

	again, err := env.subjects.SeedCatalog(ctx, catalog)
	if err != nil {
		t.Fatalf("second SeedCatalog failed: %v", err)
	}
	if again != 0 {
		t.Errorf("seeding twice should create nothing, created %d", again)
	}

	subjects, err := env.subjects.GetSubjectsBySemester(ctx, 6)
	if err != nil {
		t.Fatalf("GetSubjectsBySemester failed: %v", err)
	}
	if len(subjects) != 6 {
		t.Errorf("semester 6 has %d subjects", len(subjects))
	}
}
