package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by ObjectStore implementations for missing keys.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	Metadata     map[string]string
	LastModified time.Time
}

// ObjectStore is an S3-style bucket.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, metadata map[string]string) error
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time limited GET URL served with the given
	// Content-Disposition.
	PresignGet(ctx context.Context, key string, expiry time.Duration, disposition string) (string, error)
}

// File is the metadata of a stored file.
type File struct {
	ID        string    `json:"id"`
	BucketID  string    `json:"bucket_id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Storage is the file API of the gateway over one bucket.
type Storage struct {
	store     ObjectStore
	bucketID  string
	urlExpiry time.Duration
}

func NewStorage(store ObjectStore, bucketID string, urlExpiry time.Duration) *Storage {
	if urlExpiry <= 0 {
		urlExpiry = 15 * time.Minute
	}
	return &Storage{store: store, bucketID: bucketID, urlExpiry: urlExpiry}
}

const metaFilename = "filename"

var fileIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

func (s *Storage) key(fileID string) (string, error) {
	if !fileIDPattern.MatchString(fileID) {
		return "", NewError(http.StatusBadRequest, TypeInvalidArgument, "Invalid `fileId` param: Parameter must contain at most 64 chars. Valid chars are a-z, A-Z, 0-9, hyphen and underscore")
	}
	return "files/" + fileID, nil
}

func storageError(op string, err error) error {
	if errors.Is(err, ErrObjectNotFound) {
		return NewError(http.StatusNotFound, TypeFileNotFound, "The requested file could not be found.")
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Translate(err)
	}
	return NewError(http.StatusInternalServerError, TypeStorage, fmt.Sprintf("%s: %v", op, err))
}

func (s *Storage) CreateFile(ctx context.Context, fileID, name string, r io.Reader, size int64, mimeType string) (*File, error) {
	key, err := s.key(fileID)
	if err != nil {
		return nil, err
	}

	meta := map[string]string{metaFilename: url.QueryEscape(name)}
	if err := s.store.Put(ctx, key, r, size, mimeType, meta); err != nil {
		return nil, storageError("put object", err)
	}

	return &File{
		ID:        fileID,
		BucketID:  s.bucketID,
		Name:      name,
		MimeType:  mimeType,
		Size:      size,
		CreatedAt: time.Now(),
	}, nil
}

func (s *Storage) GetFile(ctx context.Context, fileID string) (*File, error) {
	key, err := s.key(fileID)
	if err != nil {
		return nil, err
	}

	info, err := s.store.Stat(ctx, key)
	if err != nil {
		return nil, storageError("stat object", err)
	}

	name := fileID
	for k, v := range info.Metadata {
		if strings.EqualFold(k, metaFilename) {
			if unescaped, err := url.QueryUnescape(v); err == nil {
				name = unescaped
			}
		}
	}

	return &File{
		ID:        fileID,
		BucketID:  s.bucketID,
		Name:      name,
		MimeType:  info.ContentType,
		Size:      info.Size,
		CreatedAt: info.LastModified,
	}, nil
}

func (s *Storage) DeleteFile(ctx context.Context, fileID string) error {
	key, err := s.key(fileID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return storageError("delete object", err)
	}
	return nil
}

// FileDownloadURL returns a URL that downloads the file under its original name.
func (s *Storage) FileDownloadURL(ctx context.Context, fileID string) (string, error) {
	file, err := s.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.Name})
	return s.presign(ctx, fileID, disposition)
}

// FilePreviewURL returns an inline URL for images and PDFs. Width and height
// are accepted for API compatibility; files are served at original size.
func (s *Storage) FilePreviewURL(ctx context.Context, fileID string, width, height int) (string, error) {
	if width < 0 || height < 0 {
		return "", NewError(http.StatusBadRequest, TypeInvalidArgument, "Invalid preview dimensions")
	}

	file, err := s.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(file.MimeType, "image/") && file.MimeType != "application/pdf" {
		return "", NewError(http.StatusBadRequest, TypeInvalidArgument, "Preview is not available for this file type.")
	}
	return s.presign(ctx, fileID, "inline")
}

// FileViewURL returns a URL that opens the file in the browser.
func (s *Storage) FileViewURL(ctx context.Context, fileID string) (string, error) {
	if _, err := s.GetFile(ctx, fileID); err != nil {
		return "", err
	}
	return s.presign(ctx, fileID, "inline")
}

func (s *Storage) presign(ctx context.Context, fileID, disposition string) (string, error) {
	key, err := s.key(fileID)
	if err != nil {
		return "", err
	}
	u, err := s.store.PresignGet(ctx, key, s.urlExpiry, disposition)
	if err != nil {
		return "", storageError("presign url", err)
	}
	return u, nil
}
