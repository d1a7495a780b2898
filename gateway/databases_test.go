package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/gateway/gatewaytest"
	"github.com/sahilchouksey/bca-library/model"
)

func newResource(title string, semester int, subject, category string, tags ...string) *model.Resource {
	return &model.Resource{
		ID:         uuid.New().String(),
		Title:      title,
		Semester:   semester,
		Subject:    subject,
		Category:   category,
		UploadDate: time.Now(),
		Tags:       tags,
		Status:     model.ResourceStatusActive,
	}
}

func seedResources(t *testing.T, store gateway.DocumentStore, resources ...*model.Resource) {
	t.Helper()
	for _, r := range resources {
		if err := store.CreateDocument(context.Background(), "resources", r); err != nil {
			t.Fatalf("CreateDocument(%s) failed: %v", r.Title, err)
		}
	}
}

func TestDatabases_CRUD(t *testing.T) {
	ctx := context.Background()
	store := gateway.NewDatabases(gatewaytest.NewDB(t))

	r := newResource("Data Structures Notes", 2, "Data Structures", model.CategoryNotes, "trees")
	seedResources(t, store, r)

	t.Run("get", func(t *testing.T) {
		var got model.Resource
		if err := store.GetDocument(ctx, "resources", r.ID, &got); err != nil {
			t.Fatalf("GetDocument failed: %v", err)
		}
		if got.Title != r.Title || len(got.Tags) != 1 || got.Tags[0] != "trees" {
			t.Errorf("unexpected document: %+v", got)
		}
	})

	t.Run("duplicate id is a conflict", func(t *testing.T) {
		err := store.CreateDocument(ctx, "resources", r)
		if !gateway.IsConflict(err) {
			t.Fatalf("expected 409, got %v", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		var got model.Resource
		err := store.UpdateDocument(ctx, "resources", r.ID, map[string]interface{}{"title": "DS Notes"}, &got)
		if err != nil {
			t.Fatalf("UpdateDocument failed: %v", err)
		}
		if got.Title != "DS Notes" {
			t.Errorf("title = %q", got.Title)
		}
	})

	t.Run("update rejects bad attribute", func(t *testing.T) {
		err := store.UpdateDocument(ctx, "resources", r.ID, map[string]interface{}{"title; drop": "x"}, nil)
		if gateway.Code(err) != http.StatusBadRequest {
			t.Fatalf("expected 400, got %v", err)
		}
	})

	t.Run("update missing", func(t *testing.T) {
		err := store.UpdateDocument(ctx, "resources", "missing", map[string]interface{}{"title": "x"}, nil)
		if !gateway.IsNotFound(err) {
			t.Fatalf("expected 404, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := store.DeleteDocument(ctx, "resources", r.ID); err != nil {
			t.Fatalf("DeleteDocument failed: %v", err)
		}
		if err := store.DeleteDocument(ctx, "resources", r.ID); !gateway.IsNotFound(err) {
			t.Fatalf("expected 404 on second delete, got %v", err)
		}
		var got model.Resource
		if err := store.GetDocument(ctx, "resources", r.ID, &got); !gateway.IsNotFound(err) {
			t.Fatalf("expected 404 after delete, got %v", err)
		}
	})
}

func TestDatabases_ListDocuments(t *testing.T) {
	ctx := context.Background()
	store := gateway.NewDatabases(gatewaytest.NewDB(t))

	now := time.Now()
	a := newResource("Pointers in C", 1, "C Programming", model.CategoryNotes, "pointers", "memory")
	a.UploadDate = now.Add(-3 * time.Hour)
	b := newResource("C Lab Assignment", 1, "C Programming", model.CategoryAssignments, "lab")
	b.UploadDate = now.Add(-2 * time.Hour)
	c := newResource("Java Threads", 3, "Java Programming", model.CategoryNotes, "threads", "memory")
	c.UploadDate = now.Add(-1 * time.Hour)
	d := newResource("Old C Paper", 1, "C Programming", model.CategoryPapers)
	d.Status = model.ResourceStatusInactive
	seedResources(t, store, a, b, c, d)

	list := func(t *testing.T, queries ...gateway.Query) ([]model.Resource, int64) {
		t.Helper()
		var out []model.Resource
		total, err := store.ListDocuments(ctx, "resources", &out, queries...)
		if err != nil {
			t.Fatalf("ListDocuments%v failed: %v", queries, err)
		}
		return out, total
	}

	t.Run("equal and order", func(t *testing.T) {
		out, total := list(t,
			gateway.Equal("status", model.ResourceStatusActive),
			gateway.Equal("semester", 1),
			gateway.OrderDesc("upload_date"),
		)
		if total != 2 || len(out) != 2 {
			t.Fatalf("expected 2 results, got total=%d len=%d", total, len(out))
		}
		if out[0].ID != b.ID || out[1].ID != a.ID {
			t.Errorf("wrong order: %s, %s", out[0].Title, out[1].Title)
		}
	})

	t.Run("equal any of", func(t *testing.T) {
		_, total := list(t, gateway.Equal("category", model.CategoryNotes, model.CategoryPapers))
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
	})

	t.Run("contains matches any tag", func(t *testing.T) {
		_, total := list(t, gateway.Contains("tags", "memory", "lab"))
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		_, total = list(t, gateway.Contains("tags", "threads"))
		if total != 1 {
			t.Errorf("total = %d, want 1", total)
		}
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		out, total := list(t, gateway.Search("title", "c lab"))
		if total != 1 || out[0].ID != b.ID {
			t.Errorf("unexpected search result: total=%d", total)
		}
	})

	t.Run("blank search is rejected", func(t *testing.T) {
		var out []model.Resource
		_, err := store.ListDocuments(ctx, "resources", &out, gateway.Search("title", "  "))
		if gateway.Code(err) != http.StatusBadRequest {
			t.Fatalf("expected 400, got %v", err)
		}
	})

	t.Run("search escapes like wildcards", func(t *testing.T) {
		for _, term := range []string{"%", "_", "c%lab"} {
			if _, total := list(t, gateway.Search("title", term)); total != 0 {
				t.Errorf("Search(%q) total = %d, want 0", term, total)
			}
		}
	})

	t.Run("window keeps total", func(t *testing.T) {
		out, total := list(t, gateway.OrderDesc("upload_date"), gateway.Limit(1), gateway.Offset(1))
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
		// d was created last, so the second newest is c
		if len(out) != 1 || out[0].ID != c.ID {
			t.Errorf("unexpected page: %+v", out)
		}
	})

	t.Run("negative window is rejected", func(t *testing.T) {
		var out []model.Resource
		_, err := store.ListDocuments(ctx, "resources", &out, gateway.Limit(-1))
		if gateway.Code(err) != http.StatusBadRequest {
			t.Fatalf("expected 400, got %v", err)
		}
		_, err = store.ListDocuments(ctx, "resources", &out, gateway.Offset(-5))
		if gateway.Code(err) != http.StatusBadRequest {
			t.Fatalf("expected 400, got %v", err)
		}
	})

	t.Run("bad attribute is rejected", func(t *testing.T) {
		var out []model.Resource
		_, err := store.ListDocuments(ctx, "resources", &out, gateway.Equal("1=1 OR status", "x"))
		if gateway.Code(err) != http.StatusBadRequest {
			t.Fatalf("expected 400, got %v", err)
		}
	})
}

func TestDatabases_IncrementAttributeConcurrent(t *testing.T) {
	ctx := context.Background()
	store := gateway.NewDatabases(gatewaytest.NewDB(t))

	r := newResource("Networks", 4, "Computer Networks", model.CategoryNotes)
	seedResources(t, store, r)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.IncrementAttribute(ctx, "resources", r.ID, "download_count", 1)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("IncrementAttribute failed: %v", err)
		}
	}

	var got model.Resource
	if err := store.GetDocument(ctx, "resources", r.ID, &got); err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.DownloadCount != n {
		t.Errorf("download_count = %d, want %d", got.DownloadCount, n)
	}

	if err := store.IncrementAttribute(ctx, "resources", "missing", "download_count", 1); !gateway.IsNotFound(err) {
		t.Errorf("expected 404 for missing document, got %v", err)
	}
}

func seedDownloads(t *testing.T, store gateway.DocumentStore, resourceID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		d := &model.Download{ID: uuid.New().String(), UserID: "u1", ResourceID: resourceID, DownloadDate: time.Now()}
		if err := store.CreateDocument(context.Background(), "downloads", d); err != nil {
			t.Fatalf("CreateDocument failed: %v", err)
		}
	}
}

func TestDatabases_SyncCount(t *testing.T) {
	ctx := context.Background()
	store := gateway.NewDatabases(gatewaytest.NewDB(t))

	r := newResource("Graphics", 5, "Computer Graphics", model.CategoryNotes)
	r.DownloadCount = 9
	seedResources(t, store, r)
	seedDownloads(t, store, r.ID, 4)
	seedDownloads(t, store, "other-resource", 2)

	before, after, err := store.SyncCount(ctx, "resources", r.ID, "download_count", "downloads", gateway.Equal("resource_id", r.ID))
	if err != nil {
		t.Fatalf("SyncCount failed: %v", err)
	}
	if before != 9 || after != 4 {
		t.Errorf("SyncCount = %d, %d, want 9, 4", before, after)
	}

	var got model.Resource
	if err := store.GetDocument(ctx, "resources", r.ID, &got); err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.DownloadCount != 4 {
		t.Errorf("download_count = %d, want 4", got.DownloadCount)
	}

	before, after, err = store.SyncCount(ctx, "resources", r.ID, "download_count", "downloads", gateway.Equal("resource_id", r.ID))
	if err != nil || before != 4 || after != 4 {
		t.Errorf("second SyncCount = %d, %d, %v, want 4, 4, nil", before, after, err)
	}

	if _, _, err := store.SyncCount(ctx, "resources", "missing", "download_count", "downloads", gateway.Equal("resource_id", "missing")); !gateway.IsNotFound(err) {
		t.Errorf("expected 404 for missing document, got %v", err)
	}
	if _, _, err := store.SyncCount(ctx, "resources", r.ID, "download_count; --", "downloads", gateway.Equal("resource_id", r.ID)); gateway.Code(err) != http.StatusBadRequest {
		t.Errorf("expected 400 for bad attribute, got %v", err)
	}
	if _, _, err := store.SyncCount(ctx, "resources", r.ID, "download_count", "downloads"); gateway.Code(err) != http.StatusBadRequest {
		t.Errorf("expected 400 without a filter, got %v", err)
	}
}

func TestDatabases_SyncCountKeepsConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := gateway.NewDatabases(gatewaytest.NewDB(t))

	r := newResource("Compilers", 6, "Compiler Design", model.CategoryNotes)
	seedResources(t, store, r)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := store.Transaction(ctx, func(tx gateway.DocumentStore) error {
				d := &model.Download{ID: uuid.New().String(), UserID: "u1", ResourceID: r.ID, DownloadDate: time.Now()}
				if err := tx.CreateDocument(ctx, "downloads", d); err != nil {
					return err
				}
				return tx.IncrementAttribute(ctx, "resources", r.ID, "download_count", 1)
			})
			if err != nil {
				t.Errorf("record download failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, _, err := store.SyncCount(ctx, "resources", r.ID, "download_count", "downloads", gateway.Equal("resource_id", r.ID)); err != nil {
				t.Errorf("SyncCount failed: %v", err)
			}
		}()
	}
	wg.Wait()

	var got model.Resource
	if err := store.GetDocument(ctx, "resources", r.ID, &got); err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.DownloadCount != n {
		t.Errorf("download_count = %d, want %d", got.DownloadCount, n)
	}
}

func TestDatabases_CountBy(t *testing.T) {
	ctx := context.Background()
	store := gateway.NewDatabases(gatewaytest.NewDB(t))

	seedResources(t, store,
		newResource("a", 1, "C Programming", model.CategoryNotes),
		newResource("b", 1, "C Programming", model.CategoryNotes),
		newResource("c", 1, "C Programming", model.CategoryNotes),
		newResource("d", 2, "Data Structures", model.CategoryNotes),
		newResource("e", 2, "Data Structures", model.CategoryNotes),
		newResource("f", 3, "Java Programming", model.CategoryNotes),
	)

	buckets, err := store.CountBy(ctx, "resources", "subject", 2, gateway.Equal("status", model.ResourceStatusActive))
	if err != nil {
		t.Fatalf("CountBy failed: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].Value != "C Programming" || buckets[0].Count != 3 {
		t.Errorf("first bucket = %+v", buckets[0])
	}
	if buckets[1].Value != "Data Structures" || buckets[1].Count != 2 {
		t.Errorf("second bucket = %+v", buckets[1])
	}

	total, err := store.CountDocuments(ctx, "resources", gateway.Equal("semester", 1, 2))
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if total != 5 {
		t.Errorf("CountDocuments = %d, want 5", total)
	}
}

func TestDatabases_DeleteDocuments(t *testing.T) {
	ctx := context.Background()
	store := gateway.NewDatabases(gatewaytest.NewDB(t))

	seedResources(t, store,
		newResource("a", 1, "C Programming", model.CategoryNotes),
		newResource("b", 1, "C Programming", model.CategoryCode),
		newResource("c", 2, "Data Structures", model.CategoryNotes),
	)

	if _, err := store.DeleteDocuments(ctx, "resources"); gateway.Code(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 without filter, got %v", err)
	}

	n, err := store.DeleteDocuments(ctx, "resources", gateway.Equal("semester", 1))
	if err != nil {
		t.Fatalf("DeleteDocuments failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}
}

func TestDatabases_TransactionRollback(t *testing.T) {
	ctx := context.Background()
	store := gateway.NewDatabases(gatewaytest.NewDB(t))

	r := newResource("a", 1, "C Programming", model.CategoryNotes)
	err := store.Transaction(ctx, func(tx gateway.DocumentStore) error {
		if err := tx.CreateDocument(ctx, "resources", r); err != nil {
			return err
		}
		return tx.IncrementAttribute(ctx, "resources", "missing", "download_count", 1)
	})
	if !gateway.IsNotFound(err) {
		t.Fatalf("expected 404 from transaction, got %v", err)
	}

	var got model.Resource
	if err := store.GetDocument(ctx, "resources", r.ID, &got); !gateway.IsNotFound(err) {
		t.Fatalf("expected rolled back document to be missing, got %v", err)
	}
}

func TestDatabases_DecodeRejectsMalformedDocument(t *testing.T) {
	ctx := context.Background()
	db := gatewaytest.NewDB(t)
	store := gateway.NewDatabases(db)

	r := newResource("a", 1, "C Programming", model.CategoryNotes)
	seedResources(t, store, r)
	if err := db.Exec("UPDATE resources SET category = ? WHERE id = ?", "memes", r.ID).Error; err != nil {
		t.Fatalf("raw update failed: %v", err)
	}

	var got model.Resource
	err := store.GetDocument(ctx, "resources", r.ID, &got)
	if gateway.Code(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}

	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) || gwErr.Type != gateway.TypeInvalidDocument {
		t.Errorf("expected %s, got %v", gateway.TypeInvalidDocument, err)
	}
}

func TestQuery_String(t *testing.T) {
	tests := []struct {
		q    gateway.Query
		want string
	}{
		{gateway.Equal("semester", 2), `equal("semester", [2])`},
		{gateway.OrderDesc("upload_date"), `orderDesc("upload_date")`},
		{gateway.Limit(12), `limit(12)`},
	}
	for _, tt := range tests {
		if got := tt.q.String(); got != tt.want {
			t.Errorf("String() = %s, want %s", got, tt.want)
		}
	}
}
