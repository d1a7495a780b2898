package gateway_test

import (
	"context"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/gateway/gatewaytest"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupPostgres runs postgres in Docker. Set TEST_INTEGRATION to enable.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("library_test"),
		postgres.WithUsername("library"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := gateway.Migrate(db, gateway.DefaultCollections()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestPostgres_DocumentStore(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	store := gateway.NewDatabases(db)

	r := newResource("Operating Systems", 4, "Operating Systems", model.CategoryNotes, "scheduling", "memory")
	seedResources(t, store, r, newResource("Paging", 4, "Operating Systems", model.CategoryPapers, "memory"))

	t.Run("full text search", func(t *testing.T) {
		var out []model.Resource
		total, err := store.ListDocuments(ctx, "resources", &out, gateway.Search("title", "operating"))
		if err != nil {
			t.Fatalf("ListDocuments failed: %v", err)
		}
		if total != 1 {
			t.Errorf("total = %d, want 1", total)
		}
	})

	t.Run("tags contains", func(t *testing.T) {
		var out []model.Resource
		total, err := store.ListDocuments(ctx, "resources", &out, gateway.Contains("tags", "memory"))
		if err != nil {
			t.Fatalf("ListDocuments failed: %v", err)
		}
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
	})

	t.Run("concurrent increments", func(t *testing.T) {
		const n = 50
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := store.IncrementAttribute(ctx, "resources", r.ID, "download_count", 1); err != nil {
					t.Errorf("IncrementAttribute failed: %v", err)
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
	})

	t.Run("unique bookmark", func(t *testing.T) {
		b := &model.Bookmark{ID: "b1", UserID: "u1", ResourceID: r.ID, CreatedAt: time.Now()}
		if err := store.CreateDocument(ctx, "bookmarks", b); err != nil {
			t.Fatalf("CreateDocument failed: %v", err)
		}
		dup := &model.Bookmark{ID: "b2", UserID: "u1", ResourceID: r.ID, CreatedAt: time.Now()}
		if err := store.CreateDocument(ctx, "bookmarks", dup); !gateway.IsConflict(err) {
			t.Fatalf("expected 409, got %v", err)
		}
	})
}

func TestPostgres_SyncCountKeepsConcurrentIncrements(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	store := gateway.NewDatabases(db)

	r := newResource("Compilers", 6, "Compiler Design", model.CategoryNotes)
	seedResources(t, store, r)

	const n = 40
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

func TestPostgres_RecoverySecretClaimedOnce(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	rdb, _ := gatewaytest.NewRedis(t)
	mailer := &gatewaytest.Mailer{}
	account := gateway.NewAccount(db, rdb, mailer, gateway.AccountConfig{ProjectID: "test", Secret: "test-secret"})

	if _, err := account.Create(ctx, "", "dev@example.com", "Secret123", "Dev"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := account.CreateRecovery(ctx, "dev@example.com", "https://library.test/reset-password"); err != nil {
		t.Fatalf("CreateRecovery failed: %v", err)
	}
	userID, secret := mailer.LinkParams(t)

	const n = 16
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := account.UpdateRecovery(ctx, userID, secret, "NewSecret1", "NewSecret1")
			if err == nil {
				succeeded.Add(1)
			} else if gateway.Code(err) != http.StatusUnauthorized {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := succeeded.Load(); got != 1 {
		t.Fatalf("%d recoveries succeeded with one secret, want 1", got)
	}
}
