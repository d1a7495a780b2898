package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/bca-library/api"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/database"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/router"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/services/cron"
	"github.com/sahilchouksey/bca-library/utils/cache"
	"github.com/sahilchouksey/bca-library/utils/logger"
	"github.com/sahilchouksey/bca-library/utils/middleware"
)

const shutdownTimeout = 10 * time.Second

// Collections maps the configured collection ids
func Collections(env *config.EnvironmentVariable) gateway.Collections {
	return gateway.Collections{
		Users:     env.USERS_COLLECTION_ID,
		Resources: env.RESOURCES_COLLECTION_ID,
		Subjects:  env.SUBJECTS_COLLECTION_ID,
		Downloads: env.DOWNLOADS_COLLECTION_ID,
		Bookmarks: env.BOOKMARKS_COLLECTION_ID,
	}
}

// Gateway is the connected persistence gateway
type Gateway struct {
	Store     *database.GORMStore
	Redis     *redis.Client
	Databases *gateway.Databases
	Account   *gateway.Account
	Storage   *gateway.Storage
}

// Close releases the database and redis connections
func (g *Gateway) Close() {
	if g.Redis != nil {
		g.Redis.Close()
	}
	if g.Store != nil {
		g.Store.Close()
	}
}

// ConnectGateway opens postgres, redis and the object store and migrates the
// collections.
func ConnectGateway(ctx context.Context, env *config.EnvironmentVariable) (*Gateway, error) {
	store, err := database.StartGORM(env)
	if err != nil {
		return nil, fmt.Errorf("check whether Postgres is running: %w", err)
	}
	g := &Gateway{Store: store}

	if err := store.Init(Collections(env)); err != nil {
		g.Close()
		return nil, err
	}

	g.Redis, err = cache.Connect(env.REDIS_URL)
	if err != nil {
		g.Close()
		return nil, err
	}

	objects, err := newObjectStore(ctx, env)
	if err != nil {
		g.Close()
		return nil, err
	}

	db := store.GetDB()
	g.Databases = gateway.NewDatabases(db)
	g.Account = gateway.NewAccount(db, g.Redis, services.NewEmailService(env), gateway.AccountConfig{
		ProjectID:  env.GATEWAY_PROJECT_ID,
		Secret:     env.JWT_SECRET,
		SessionTTL: env.SESSION_TTL,
	})
	g.Storage = gateway.NewStorage(objects, env.GATEWAY_STORAGE_BUCKET_ID, 0)
	return g, nil
}

// newObjectStore selects the object store backend from STORAGE_DRIVER
func newObjectStore(ctx context.Context, env *config.EnvironmentVariable) (gateway.ObjectStore, error) {
	switch env.STORAGE_DRIVER {
	case "minio":
		endpoint := env.GATEWAY_ENDPOINT
		useSSL := env.STORAGE_USE_SSL
		// minio wants host:port; a scheme decides TLS instead
		if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
			endpoint = u.Host
			useSSL = u.Scheme == "https"
		}
		return gateway.NewMinioStore(ctx, endpoint, env.STORAGE_ACCESS_KEY, env.STORAGE_SECRET_KEY,
			env.GATEWAY_STORAGE_BUCKET_ID, useSSL)
	case "spaces", "s3":
		return gateway.NewSpacesStore(gateway.SpacesConfig{
			AccessKey: env.STORAGE_ACCESS_KEY,
			SecretKey: env.STORAGE_SECRET_KEY,
			Bucket:    env.GATEWAY_STORAGE_BUCKET_ID,
			Region:    env.STORAGE_REGION,
			Endpoint:  env.GATEWAY_ENDPOINT,
			PathStyle: env.STORAGE_DRIVER == "s3",
		})
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", env.STORAGE_DRIVER)
	}
}

func SetupAndRunServer() error {
	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	env, err := config.Get()
	if err != nil {
		return err
	}

	logger.Configure(logger.Config{Level: env.LOG_LEVEL, Pretty: env.LOG_PRETTY})
	log := logger.Component("app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := ConnectGateway(ctx, env)
	if err != nil {
		return err
	}
	defer gw.Close()

	collections := Collections(env)
	storageService := services.NewStorageService(gw.Storage, env.MAX_UPLOAD_SIZE)
	resourceService := services.NewResourceService(gw.Databases, storageService, collections)
	engagementService := services.NewEngagementService(gw.Databases, collections)
	authService := services.NewAuthService(gw.Account, gw.Databases, collections, env.APP_URL)
	subjectService := services.NewSubjectService(gw.Databases, collections, 10*time.Minute)
	statsService := services.NewStatsService(gw.Databases, cache.NewRedisCache(gw.Redis, "library"), collections)

	var cronManager *cron.CronManager
	if env.CRON_ENABLED {
		cronManager = cron.NewCronManager(gw.Store.GetDB(), cron.Dependencies{
			Stats:      statsService,
			Engagement: engagementService,
			Subjects:   subjectService,
			Tokens:     gw.Account,
		})
		if err := cronManager.Start(); err != nil {
			// the API still serves without scheduled jobs
			log.Warn().Err(err).Msg("failed to start cron jobs")
			cronManager = nil
		}
	}
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
	}()

	server := api.NewAPIServer(fmt.Sprintf(":%d", env.PORT), env.MAX_UPLOAD_SIZE)
	router.SetupRoutes(server.GetEngine(), router.Dependencies{
		DB:                gw.Store.GetDB(),
		Redis:             gw.Redis,
		Auth:              authService,
		Resources:         resourceService,
		Storage:           storageService,
		Engagement:        engagementService,
		Subjects:          subjectService,
		Stats:             statsService,
		BruteForce:        middleware.NewBruteForceProtection(cache.NewRedisCache(gw.Redis, "")),
		AllowedOrigins:    env.ALLOWED_ORIGINS,
		RateLimitRequests: 100,
		MaxPageLimit:      env.MAX_PAGE_LIMIT,
		AccessLog:         !env.IsProduction(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
