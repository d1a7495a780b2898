package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/gateway/gatewaytest"
)

func TestStorage_FileLifecycle(t *testing.T) {
	ctx := context.Background()
	objects := gatewaytest.NewMemoryStore()
	storage := gateway.NewStorage(objects, "resources", time.Hour)

	content := "%PDF-1.4 fake"
	file, err := storage.CreateFile(ctx, "file-1", "Unit 1 – Notes.pdf", strings.NewReader(content), int64(len(content)), "application/pdf")
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if file.BucketID != "resources" || file.Size != int64(len(content)) {
		t.Errorf("unexpected file: %+v", file)
	}

	got, err := storage.GetFile(ctx, "file-1")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if got.Name != "Unit 1 – Notes.pdf" {
		t.Errorf("name = %q", got.Name)
	}
	if got.MimeType != "application/pdf" {
		t.Errorf("mime = %q", got.MimeType)
	}

	t.Run("download url carries attachment disposition", func(t *testing.T) {
		raw, err := storage.FileDownloadURL(ctx, "file-1")
		if err != nil {
			t.Fatalf("FileDownloadURL failed: %v", err)
		}
		u, _ := url.Parse(raw)
		if d := u.Query().Get("response-content-disposition"); !strings.HasPrefix(d, "attachment") {
			t.Errorf("disposition = %q", d)
		}
	})

	t.Run("view and preview are inline", func(t *testing.T) {
		for _, fn := range []func() (string, error){
			func() (string, error) { return storage.FileViewURL(ctx, "file-1") },
			func() (string, error) { return storage.FilePreviewURL(ctx, "file-1", 300, 200) },
		} {
			raw, err := fn()
			if err != nil {
				t.Fatalf("url failed: %v", err)
			}
			u, _ := url.Parse(raw)
			if d := u.Query().Get("response-content-disposition"); d != "inline" {
				t.Errorf("disposition = %q", d)
			}
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := storage.DeleteFile(ctx, "file-1"); err != nil {
			t.Fatalf("DeleteFile failed: %v", err)
		}
		if _, err := storage.GetFile(ctx, "file-1"); gateway.Code(err) != http.StatusNotFound {
			t.Fatalf("expected 404, got %v", err)
		}
	})
}

func TestStorage_Errors(t *testing.T) {
	ctx := context.Background()
	objects := gatewaytest.NewMemoryStore()
	storage := gateway.NewStorage(objects, "resources", 0)

	if _, err := storage.GetFile(ctx, "../etc/passwd"); gateway.Code(err) != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid id, got %v", err)
	}

	if _, err := storage.CreateFile(ctx, "zip", "a.zip", strings.NewReader("PK"), 2, "application/zip"); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if _, err := storage.FilePreviewURL(ctx, "zip", 0, 0); gateway.Code(err) != http.StatusBadRequest {
		t.Errorf("expected 400 preview for zip, got %v", err)
	}
	if _, err := storage.FilePreviewURL(ctx, "zip", -1, 0); gateway.Code(err) != http.StatusBadRequest {
		t.Errorf("expected 400 for negative width, got %v", err)
	}

	objects.PutErr = errors.New("bucket offline")
	_, err := storage.CreateFile(ctx, "x", "x.pdf", strings.NewReader("x"), 1, "application/pdf")
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) || gwErr.Type != gateway.TypeStorage {
		t.Errorf("expected storage error, got %v", err)
	}
}
