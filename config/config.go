package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
)

// This function will Load the ENVIRONMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

// MissingVariableError is returned by Get when one of the gateway settings is absent.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return "Missing required environment variable: " + e.Name
}

// Mandatory gateway settings, checked in this order.
var requiredVariables = []string{
	"GATEWAY_ENDPOINT",
	"GATEWAY_PROJECT_ID",
	"GATEWAY_DATABASE_ID",
	"GATEWAY_STORAGE_BUCKET_ID",
}

type EnvironmentVariable struct {
	GO_ENV          string
	PORT            int
	APP_URL         string
	ALLOWED_ORIGINS string
	LOG_LEVEL       string
	LOG_PRETTY      bool

	// Gateway
	GATEWAY_ENDPOINT          string
	GATEWAY_PROJECT_ID        string
	GATEWAY_DATABASE_ID       string
	GATEWAY_STORAGE_BUCKET_ID string

	// Collection ids
	USERS_COLLECTION_ID     string
	RESOURCES_COLLECTION_ID string
	SUBJECTS_COLLECTION_ID  string
	DOWNLOADS_COLLECTION_ID string
	BOOKMARKS_COLLECTION_ID string

	// Database
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string

	// Sessions
	REDIS_URL   string
	JWT_SECRET  string
	SESSION_TTL time.Duration

	// Object storage
	STORAGE_DRIVER     string
	STORAGE_REGION     string
	STORAGE_ACCESS_KEY string
	STORAGE_SECRET_KEY string
	STORAGE_USE_SSL    bool

	// Limits
	MAX_UPLOAD_SIZE int64
	MAX_PAGE_LIMIT  int

	CRON_ENABLED bool

	// SMTP
	SMTP_HOST     string
	SMTP_PORT     string
	SMTP_USERNAME string
	SMTP_PASSWORD string
	SMTP_FROM     string
}

func Get() (*EnvironmentVariable, error) {
	for _, name := range requiredVariables {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			return nil, &MissingVariableError{Name: name}
		}
	}

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	sessionTTL := 7 * 24 * time.Hour
	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		sessionTTL, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL %q: %w", raw, err)
		}
	}

	maxUpload := int64(MaxFileSize)
	if raw := os.Getenv("MAX_UPLOAD_SIZE"); raw != "" {
		maxUpload, err = units.RAMInBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE %q: %w", raw, err)
		}
	}

	maxPageLimit, err := strconv.Atoi(os.Getenv("MAX_PAGE_LIMIT"))
	if err != nil || maxPageLimit < 1 {
		maxPageLimit = 100
	}

	envVariables := &EnvironmentVariable{
		GO_ENV:          os.Getenv("GO_ENV"),
		PORT:            port,
		APP_URL:         strings.TrimRight(getOrDefault("APP_URL", "http://localhost:3000"), "/"),
		ALLOWED_ORIGINS: getOrDefault("ALLOWED_ORIGINS", "http://localhost:3000"),
		LOG_LEVEL:       getOrDefault("LOG_LEVEL", "info"),
		LOG_PRETTY:      os.Getenv("LOG_PRETTY") == "true",

		GATEWAY_ENDPOINT:          os.Getenv("GATEWAY_ENDPOINT"),
		GATEWAY_PROJECT_ID:        os.Getenv("GATEWAY_PROJECT_ID"),
		GATEWAY_DATABASE_ID:       os.Getenv("GATEWAY_DATABASE_ID"),
		GATEWAY_STORAGE_BUCKET_ID: os.Getenv("GATEWAY_STORAGE_BUCKET_ID"),

		USERS_COLLECTION_ID:     getOrDefault("GATEWAY_USERS_COLLECTION_ID", "users"),
		RESOURCES_COLLECTION_ID: getOrDefault("GATEWAY_RESOURCES_COLLECTION_ID", "resources"),
		SUBJECTS_COLLECTION_ID:  getOrDefault("GATEWAY_SUBJECTS_COLLECTION_ID", "subjects"),
		DOWNLOADS_COLLECTION_ID: getOrDefault("GATEWAY_DOWNLOADS_COLLECTION_ID", "downloads"),
		BOOKMARKS_COLLECTION_ID: getOrDefault("GATEWAY_BOOKMARKS_COLLECTION_ID", "bookmarks"),

		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		// the gateway database id names the postgres database unless overridden
		DB_NAME:     getOrDefault("DB_NAME", os.Getenv("GATEWAY_DATABASE_ID")),
		DB_HOST:     getOrDefault("DB_HOST", "localhost"),
		DB_PORT:     getOrDefault("DB_PORT", "5432"),
		DB_SSL_MODE: getOrDefault("DB_SSL_MODE", "disable"),

		REDIS_URL:   getOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		JWT_SECRET:  os.Getenv("JWT_SECRET"),
		SESSION_TTL: sessionTTL,

		STORAGE_DRIVER:     getOrDefault("STORAGE_DRIVER", "spaces"),
		STORAGE_REGION:     getOrDefault("STORAGE_REGION", "us-east-1"),
		STORAGE_ACCESS_KEY: os.Getenv("STORAGE_ACCESS_KEY"),
		STORAGE_SECRET_KEY: os.Getenv("STORAGE_SECRET_KEY"),
		STORAGE_USE_SSL:    os.Getenv("STORAGE_USE_SSL") != "false",

		MAX_UPLOAD_SIZE: maxUpload,
		MAX_PAGE_LIMIT:  maxPageLimit,

		CRON_ENABLED: os.Getenv("CRON_ENABLED") != "false",

		SMTP_HOST:     getOrDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTP_PORT:     getOrDefault("SMTP_PORT", "587"),
		SMTP_USERNAME: os.Getenv("SMTP_USERNAME"),
		SMTP_PASSWORD: os.Getenv("SMTP_PASSWORD"),
		SMTP_FROM:     os.Getenv("SMTP_FROM"),
	}

	if envVariables.JWT_SECRET == "" {
		if envVariables.GO_ENV == "production" {
			return nil, &MissingVariableError{Name: "JWT_SECRET"}
		}
		envVariables.JWT_SECRET = "development-secret-change-me"
	}

	return envVariables, nil
}

// IsProduction reports whether GO_ENV is production.
func (e *EnvironmentVariable) IsProduction() bool {
	return e.GO_ENV == "production"
}

func getOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
