package services

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/utils/logger"
)

type clientIPKey struct{}

// WithClientIP returns a context carrying the caller's IP address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the IP stored by WithClientIP, or "unknown".
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return "unknown"
}

// EngagementService records downloads and manages bookmarks.
type EngagementService struct {
	store       gateway.DocumentStore
	collections gateway.Collections
	log         zerolog.Logger
}

func NewEngagementService(store gateway.DocumentStore, collections gateway.Collections) *EngagementService {
	return &EngagementService{
		store:       store,
		collections: collections,
		log:         logger.Component("engagement"),
	}
}

// RecordDownload appends a download row and increments the resource's
// download_count in one transaction.
func (s *EngagementService) RecordDownload(ctx context.Context, userID, resourceID string, fileSize int64) (*model.Download, error) {
	download := &model.Download{
		ID:           uuid.New().String(),
		UserID:       userID,
		ResourceID:   resourceID,
		DownloadDate: time.Now(),
		FileSize:     fileSize,
		IPAddress:    ClientIP(ctx),
	}

	err := s.store.Transaction(ctx, func(tx gateway.DocumentStore) error {
		if err := tx.CreateDocument(ctx, s.collections.Downloads, download); err != nil {
			return err
		}
		return tx.IncrementAttribute(ctx, s.collections.Resources, resourceID, "download_count", 1)
	})
	if err != nil {
		return nil, fail(s.log, "record download", err)
	}

	downloadsTotal.Inc()
	return download, nil
}

// GetUserDownloads returns the user's most recent downloads.
func (s *EngagementService) GetUserDownloads(ctx context.Context, userID string, limit int) ([]model.Download, error) {
	if limit < 1 {
		limit = config.DefaultDownloadsLimit
	}

	var downloads []model.Download
	_, err := s.store.ListDocuments(ctx, s.collections.Downloads, &downloads,
		gateway.Equal("user_id", userID),
		gateway.OrderDesc("download_date"),
		gateway.Limit(limit),
	)
	if err != nil {
		return nil, fail(s.log, "get user downloads", err)
	}
	return nonNil(downloads), nil
}

// AddBookmark bookmarks a resource. Bookmarking twice returns the existing bookmark.
func (s *EngagementService) AddBookmark(ctx context.Context, userID, resourceID string) (*model.Bookmark, error) {
	bookmark := &model.Bookmark{
		ID:         uuid.New().String(),
		UserID:     userID,
		ResourceID: resourceID,
		CreatedAt:  time.Now(),
	}

	err := s.store.CreateDocument(ctx, s.collections.Bookmarks, bookmark)
	if gateway.IsConflict(err) {
		existing, findErr := s.findBookmark(ctx, userID, resourceID)
		if findErr == nil && existing != nil {
			bookmarkOps.WithLabelValues("duplicate").Inc()
			return existing, nil
		}
		if findErr != nil {
			err = findErr
		}
	}
	if err != nil {
		return nil, fail(s.log, "add bookmark", err)
	}

	bookmarkOps.WithLabelValues("add").Inc()
	return bookmark, nil
}

// RemoveBookmark deletes every bookmark of the user for the resource.
// Removing a bookmark that does not exist succeeds.
func (s *EngagementService) RemoveBookmark(ctx context.Context, userID, resourceID string) error {
	n, err := s.store.DeleteDocuments(ctx, s.collections.Bookmarks,
		gateway.Equal("user_id", userID),
		gateway.Equal("resource_id", resourceID),
	)
	if err != nil {
		return fail(s.log, "remove bookmark", err)
	}
	if n == 0 {
		return nil
	}

	bookmarkOps.WithLabelValues("remove").Inc()
	return nil
}

// GetUserBookmarks returns the user's bookmarks, newest first.
func (s *EngagementService) GetUserBookmarks(ctx context.Context, userID string) ([]model.Bookmark, error) {
	var bookmarks []model.Bookmark
	_, err := s.store.ListDocuments(ctx, s.collections.Bookmarks, &bookmarks,
		gateway.Equal("user_id", userID),
		gateway.OrderDesc("created_at"),
	)
	if err != nil {
		return nil, fail(s.log, "get user bookmarks", err)
	}
	return nonNil(bookmarks), nil
}

// IsBookmarked reports whether the user bookmarked the resource. Lookup
// failures are logged and reported as false.
func (s *EngagementService) IsBookmarked(ctx context.Context, userID, resourceID string) bool {
	bookmark, err := s.findBookmark(ctx, userID, resourceID)
	if err != nil {
		s.log.Warn().Err(err).Str("resource_id", resourceID).Msg("check bookmark failed")
		return false
	}
	return bookmark != nil
}

func (s *EngagementService) findBookmark(ctx context.Context, userID, resourceID string) (*model.Bookmark, error) {
	var bookmarks []model.Bookmark
	_, err := s.store.ListDocuments(ctx, s.collections.Bookmarks, &bookmarks,
		gateway.Equal("user_id", userID),
		gateway.Equal("resource_id", resourceID),
		gateway.Limit(1),
	)
	if err != nil {
		return nil, err
	}
	if len(bookmarks) == 0 {
		return nil, nil
	}
	return &bookmarks[0], nil
}

const reconcileBatchSize = 100

// ReconcileDownloadCounts resets download_count of every resource whose
// counter drifted from its number of download rows. Returns the number fixed.
// The grouped count only picks candidates; each candidate is recounted with
// its row locked so downloads recorded meanwhile are not lost.
func (s *EngagementService) ReconcileDownloadCounts(ctx context.Context) (int, error) {
	buckets, err := s.store.CountBy(ctx, s.collections.Downloads, "resource_id", 0)
	if err != nil {
		return 0, fail(s.log, "count downloads", err)
	}
	counts := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		counts[b.Value] = b.Count
	}

	fixed := 0
	for offset := 0; ; offset += reconcileBatchSize {
		var resources []model.Resource
		_, err := s.store.ListDocuments(ctx, s.collections.Resources, &resources,
			gateway.OrderAsc("id"),
			gateway.Limit(reconcileBatchSize),
			gateway.Offset(offset),
		)
		if err != nil {
			return fixed, fail(s.log, "list resources", err)
		}

		for _, r := range resources {
			if r.DownloadCount == counts[r.ID] {
				continue
			}
			was, now, err := s.store.SyncCount(ctx, s.collections.Resources, r.ID, "download_count",
				s.collections.Downloads, gateway.Equal("resource_id", r.ID))
			if gateway.Code(err) == http.StatusNotFound {
				continue
			}
			if err != nil {
				return fixed, fail(s.log, "reset download count", err)
			}
			if was == now {
				continue
			}
			s.log.Info().Str("resource_id", r.ID).Int64("was", was).Int64("now", now).Msg("download count reconciled")
			fixed++
		}

		if len(resources) < reconcileBatchSize {
			return fixed, nil
		}
	}
}
