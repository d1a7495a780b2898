package services

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/utils/logger"
	"golang.org/x/sync/errgroup"
)

// FileCheck is the outcome of ValidateFile.
type FileCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"error,omitempty"`
}

// UploadItem is one file to store.
type UploadItem struct {
	Name     string
	MimeType string
	Size     int64
	Content  io.Reader
}

// Upload progress statuses
const (
	UploadStatusUploading = "uploading"
	UploadStatusCompleted = "completed"
	UploadStatusError     = "error"
)

// UploadProgress reports the state of one file during UploadMultipleFiles.
type UploadProgress struct {
	Index    int    `json:"index"`
	FileName string `json:"fileName"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// StorageService validates and stores resource files.
type StorageService struct {
	storage *gateway.Storage
	maxSize int64
	log     zerolog.Logger
}

func NewStorageService(storage *gateway.Storage, maxSize int64) *StorageService {
	if maxSize <= 0 {
		maxSize = config.MaxFileSize
	}
	return &StorageService{
		storage: storage,
		maxSize: maxSize,
		log:     logger.Component("storage"),
	}
}

// MaxSize is the largest accepted upload in bytes.
func (s *StorageService) MaxSize() int64 {
	return s.maxSize
}

// ValidateFile checks an upload against the size limit and the type allow-list.
func (s *StorageService) ValidateFile(size int64, mimeType string) FileCheck {
	if size > s.maxSize {
		limit := units.CustomSize("%.4g%s", float64(s.maxSize), 1024.0, []string{"B", "KB", "MB", "GB"})
		return FileCheck{Reason: "File size must be less than " + limit}
	}

	if !IsAcceptedFileType(mimeType) {
		return FileCheck{Reason: "File type not supported. Please upload PDF, DOC, PPT, MP4, ZIP, or image files."}
	}

	return FileCheck{Valid: true}
}

// IsAcceptedFileType reports whether uploads of mimeType are allowed.
func IsAcceptedFileType(mimeType string) bool {
	for _, t := range config.AcceptedFileTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}

// FormatFileSize renders bytes with base 1024 units and at most two decimals,
// e.g. "0 Bytes", "1.5 KB", "100 MB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	formatted := units.CustomSize("%.2f %s", float64(bytes), 1024.0, []string{"Bytes", "KB", "MB", "GB"})
	number, unit, _ := strings.Cut(formatted, " ")
	if f, err := strconv.ParseFloat(number, 64); err == nil {
		number = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return number + " " + unit
}

// FileTypeLabel returns the short label of a MIME type ("PDF", "DOCX", ...).
func FileTypeLabel(mimeType string) string {
	if label, ok := config.DisplayFileTypes[mimeType]; ok {
		return label
	}
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && strings.HasPrefix(mimeType, "image/") {
		return strings.ToUpper(sub)
	}
	return "FILE"
}

// progressReader reports the percentage of bytes read.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	last     int
	onUpdate func(percent int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 && p.onUpdate != nil {
		percent := int(p.read * 100 / p.total)
		if percent > 100 {
			percent = 100
		}
		if percent != p.last {
			p.last = percent
			p.onUpdate(percent)
		}
	}
	return n, err
}

// UploadFile validates and stores one file under a new ID.
func (s *StorageService) UploadFile(ctx context.Context, item UploadItem, onProgress func(percent int)) (*gateway.File, error) {
	if check := s.ValidateFile(item.Size, item.MimeType); !check.Valid {
		return nil, badRequest(check.Reason)
	}

	content := item.Content
	if onProgress != nil {
		content = &progressReader{r: item.Content, total: item.Size, onUpdate: onProgress}
	}

	file, err := s.storage.CreateFile(ctx, uuid.New().String(), item.Name, content, item.Size, item.MimeType)
	if err != nil {
		return nil, fail(s.log, "upload file", err)
	}

	uploadBytes.Observe(float64(item.Size))
	s.log.Info().Str("file_id", file.ID).Str("name", item.Name).Int64("size", item.Size).Msg("file uploaded")
	return file, nil
}

// UploadMultipleFiles stores files in parallel. The first failure cancels the
// remaining uploads and is returned; files stored before it are removed.
func (s *StorageService) UploadMultipleFiles(ctx context.Context, items []UploadItem, onProgress func(UploadProgress)) ([]*gateway.File, error) {
	files := make([]*gateway.File, len(items))

	var mu sync.Mutex
	report := func(p UploadProgress) {
		if onProgress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onProgress(p)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, item := range items {
		g.Go(func() error {
			report(UploadProgress{Index: i, FileName: item.Name, Status: UploadStatusUploading})

			file, err := s.UploadFile(gctx, item, func(percent int) {
				report(UploadProgress{Index: i, FileName: item.Name, Progress: percent, Status: UploadStatusUploading})
			})
			if err != nil {
				s.log.Error().Err(err).Str("name", item.Name).Msg("failed to upload file")
				report(UploadProgress{Index: i, FileName: item.Name, Status: UploadStatusError, Error: err.Error()})
				return err
			}

			files[i] = file
			report(UploadProgress{Index: i, FileName: item.Name, Progress: 100, Status: UploadStatusCompleted})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, f := range files {
			if f == nil {
				continue
			}
			if delErr := s.storage.DeleteFile(context.WithoutCancel(ctx), f.ID); delErr != nil {
				s.log.Warn().Err(delErr).Str("file_id", f.ID).Msg("failed to clean up uploaded file")
			}
		}
		return nil, err
	}

	return files, nil
}

func (s *StorageService) GetFile(ctx context.Context, fileID string) (*gateway.File, error) {
	file, err := s.storage.GetFile(ctx, fileID)
	if err != nil {
		return nil, fail(s.log, "get file", err)
	}
	return file, nil
}

func (s *StorageService) DeleteFile(ctx context.Context, fileID string) error {
	if err := s.storage.DeleteFile(ctx, fileID); err != nil {
		return fail(s.log, "delete file", err)
	}
	return nil
}

// DownloadURL returns a link that downloads the file as an attachment.
func (s *StorageService) DownloadURL(ctx context.Context, fileID string) (string, error) {
	u, err := s.storage.FileDownloadURL(ctx, fileID)
	if err != nil {
		return "", fail(s.log, "file download url", err)
	}
	return u, nil
}

// PreviewURL returns an inline link for images and PDFs.
func (s *StorageService) PreviewURL(ctx context.Context, fileID string, width, height int) (string, error) {
	u, err := s.storage.FilePreviewURL(ctx, fileID, width, height)
	if err != nil {
		return "", fail(s.log, "file preview url", err)
	}
	return u, nil
}

// ViewURL returns an inline link for any file.
func (s *StorageService) ViewURL(ctx context.Context, fileID string) (string, error) {
	u, err := s.storage.FileViewURL(ctx, fileID)
	if err != nil {
		return "", fail(s.log, "file view url", err)
	}
	return u, nil
}
