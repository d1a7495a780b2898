package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/utils/cache"
	"github.com/sahilchouksey/bca-library/utils/logger"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardStatsKey = "stats:dashboard"
	statsCacheTTL     = 5 * time.Minute
)

// DashboardStats is the library overview shown on the dashboard.
type DashboardStats struct {
	TotalResources  int64            `json:"total_resources"`
	TotalStudents   int64            `json:"total_students"`
	TotalDownloads  int64            `json:"total_downloads"`
	PopularSubjects []gateway.Bucket `json:"popular_subjects"`
	RecentUploads   []model.Resource `json:"recent_uploads"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

type StatsService struct {
	store       gateway.DocumentStore
	cache       *cache.RedisCache
	collections gateway.Collections
	log         zerolog.Logger
}

func NewStatsService(store gateway.DocumentStore, cache *cache.RedisCache, collections gateway.Collections) *StatsService {
	return &StatsService{
		store:       store,
		cache:       cache,
		collections: collections,
		log:         logger.Component("stats"),
	}
}

// GetDashboardStats returns the cached stats, computing them on a miss.
func (s *StatsService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	err := s.cache.GetJSON(ctx, dashboardStatsKey, &stats)
	if err == nil {
		return &stats, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		s.log.Warn().Err(err).Msg("stats cache read failed")
	}

	return s.Refresh(ctx)
}

// Refresh recomputes the stats and stores them in the cache.
func (s *StatsService) Refresh(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{GeneratedAt: time.Now()}
	active := gateway.Equal("status", model.ResourceStatusActive)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.CountDocuments(gctx, s.collections.Resources, active)
		stats.TotalResources = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountDocuments(gctx, s.collections.Users)
		stats.TotalStudents = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountDocuments(gctx, s.collections.Downloads)
		stats.TotalDownloads = n
		return err
	})
	g.Go(func() error {
		buckets, err := s.store.CountBy(gctx, s.collections.Resources, "subject", config.PopularSubjectsLimit, active)
		stats.PopularSubjects = nonNil(buckets)
		return err
	})
	g.Go(func() error {
		var resources []model.Resource
		_, err := s.store.ListDocuments(gctx, s.collections.Resources, &resources,
			active,
			gateway.OrderDesc("upload_date"),
			gateway.Limit(config.RecentUploadsLimit),
		)
		stats.RecentUploads = nonNil(resources)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fail(s.log, "dashboard stats", err)
	}

	if err := s.cache.SetJSON(ctx, dashboardStatsKey, stats, statsCacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("stats cache write failed")
	}
	return stats, nil
}

// Invalidate drops the cached stats.
func (s *StatsService) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, dashboardStatsKey); err != nil {
		s.log.Warn().Err(err).Msg("stats cache delete failed")
	}
}
