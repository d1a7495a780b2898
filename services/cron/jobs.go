package cron

import (
	"context"
	"fmt"
	"time"
)

// RefreshDashboardStats recomputes the cached dashboard stats
// Runs every 5 minutes so the dashboard never serves stale totals for long
func (m *CronManager) RefreshDashboardStats() {
	m.run("refresh_dashboard_stats", time.Minute, func(ctx context.Context) (string, error) {
		stats, err := m.deps.Stats.Refresh(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d resources, %d students, %d downloads",
			stats.TotalResources, stats.TotalStudents, stats.TotalDownloads), nil
	})
}

// ReconcileDownloadCounts repairs download_count drift against download rows
// Runs every hour
func (m *CronManager) ReconcileDownloadCounts() {
	m.run("reconcile_download_counts", 10*time.Minute, func(ctx context.Context) (string, error) {
		fixed, err := m.deps.Engagement.ReconcileDownloadCounts(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Reconciled %d resources", fixed), nil
	})
}

// SyncSubjectResourceCounts updates subject resource_count from active resources
// Runs every hour
func (m *CronManager) SyncSubjectResourceCounts() {
	m.run("sync_subject_resource_counts", 5*time.Minute, func(ctx context.Context) (string, error) {
		updated, err := m.deps.Subjects.SyncResourceCounts(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Updated %d subjects", updated), nil
	})
}

// PurgeExpiredTokens deletes expired recovery and verification tokens
// Runs daily at 3 AM
func (m *CronManager) PurgeExpiredTokens() {
	m.run("purge_expired_tokens", 5*time.Minute, func(ctx context.Context) (string, error) {
		n, err := m.deps.Tokens.PurgeExpiredTokens(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Purged %d expired tokens", n), nil
	})
}
