package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/model"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TokenPurger removes expired recovery and verification tokens.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// Dependencies are the services the scheduled jobs operate on.
type Dependencies struct {
	Stats      *services.StatsService
	Engagement *services.EngagementService
	Subjects   *services.SubjectService
	Tokens     TokenPurger
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron *cron.Cron
	db   *gorm.DB
	deps Dependencies
	log  zerolog.Logger
}

// NewCronManager creates a new cron manager. Job runs are recorded in db.
func NewCronManager(db *gorm.DB, deps Dependencies) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron: c,
		db:   db,
		deps: deps,
		log:  logger.Component("cron"),
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	m.log.Info().Msg("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	m.log.Info().Int("jobs", len(m.cron.Entries())).Msg("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs and waits for running ones
func (m *CronManager) Stop() {
	m.log.Info().Msg("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.log.Info().Msg("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Every 5 minutes: refresh dashboard stats
	if _, err := m.cron.AddFunc("0 */5 * * * *", m.RefreshDashboardStats); err != nil {
		return err
	}

	// 2. Every hour: reconcile download counters
	if _, err := m.cron.AddFunc("0 0 * * * *", m.ReconcileDownloadCounts); err != nil {
		return err
	}

	// 3. Every hour at :30: sync subject resource counts
	if _, err := m.cron.AddFunc("0 30 * * * *", m.SyncSubjectResourceCounts); err != nil {
		return err
	}

	// 4. Daily at 3 AM: purge expired account tokens
	if _, err := m.cron.AddFunc("0 0 3 * * *", m.PurgeExpiredTokens); err != nil {
		return err
	}

	return nil
}

// run executes one job with a timeout and records it in cron_job_logs
func (m *CronManager) run(jobName string, timeout time.Duration, job func(ctx context.Context) (string, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	entry := m.logJobStart(jobName)
	message, err := job(ctx)
	if err != nil {
		m.logJobError(entry, err)
		return
	}
	m.logJobComplete(entry, message)
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) *model.CronJobLog {
	m.log.Info().Str("job", jobName).Msg("Starting job")

	entry := &model.CronJobLog{
		JobName:   jobName,
		Status:    StatusRunning,
		StartedAt: time.Now(),
		Metadata:  datatypes.JSON("{}"),
	}
	if err := m.db.Create(entry).Error; err != nil {
		m.log.Warn().Err(err).Str("job", jobName).Msg("failed to record job start")
	}
	return entry
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(entry *model.CronJobLog, message string) {
	m.log.Info().Str("job", entry.JobName).Str("result", message).Msg("Completed job")
	m.finish(entry, map[string]interface{}{
		"status":  StatusCompleted,
		"message": message,
	})
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(entry *model.CronJobLog, err error) {
	m.log.Error().Err(err).Str("job", entry.JobName).Msg("Error in job")
	m.finish(entry, map[string]interface{}{
		"status":    StatusFailed,
		"error_msg": err.Error(),
	})
}

func (m *CronManager) finish(entry *model.CronJobLog, updates map[string]interface{}) {
	if entry.ID == 0 {
		return
	}

	now := time.Now()
	updates["completed_at"] = now
	updates["duration"] = now.Sub(entry.StartedAt).Milliseconds()

	if err := m.db.Model(&model.CronJobLog{}).Where("id = ?", entry.ID).Updates(updates).Error; err != nil {
		m.log.Warn().Err(err).Str("job", entry.JobName).Msg("failed to record job result")
	}
}
