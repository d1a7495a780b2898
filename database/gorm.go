package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/model"
	applogger "github.com/sahilchouksey/bca-library/utils/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GORMStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

// gormWriter sends gorm's log lines through zerolog
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Info().Msgf(format, args...)
}

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM(env *config.EnvironmentVariable) (*GORMStore, error) {
	log := applogger.Component("database")

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		env.DB_HOST,
		env.DB_USER_NAME,
		env.DB_PASSWORD,
		env.DB_NAME,
		env.DB_PORT,
		env.DB_SSL_MODE,
	)

	logLevel := logger.Warn
	if env.IsProduction() {
		logLevel = logger.Error
	}
	gormLogger := logger.New(gormWriter{log: log}, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to PostgreSQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info().Str("host", env.DB_HOST).Str("database", env.DB_NAME).Msg("connected to PostgreSQL")
	return &GORMStore{db: db, log: log}, nil
}

// Init migrates the gateway tables, every collection and the cron job log
func (s *GORMStore) Init(collections gateway.Collections) error {
	if err := gateway.Migrate(s.db, collections); err != nil {
		return err
	}
	if err := s.db.AutoMigrate(&model.CronJobLog{}); err != nil {
		return fmt.Errorf("failed to migrate cron job logs: %w", err)
	}

	s.log.Info().Msg("migrations completed")
	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the GORM DB instance
func (s *GORMStore) GetDB() *gorm.DB {
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
