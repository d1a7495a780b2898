package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/bca-library/handlers"
	auth_handlers "github.com/sahilchouksey/bca-library/handlers/auth"
	engagement_handlers "github.com/sahilchouksey/bca-library/handlers/engagement"
	resource_handlers "github.com/sahilchouksey/bca-library/handlers/resource"
	stats_handlers "github.com/sahilchouksey/bca-library/handlers/stats"
	subject_handlers "github.com/sahilchouksey/bca-library/handlers/subject"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/middleware"
	"gorm.io/gorm"
)

// Dependencies are the services the routes are served by
type Dependencies struct {
	DB    *gorm.DB
	Redis *redis.Client

	Auth       *services.AuthService
	Resources  *services.ResourceService
	Storage    *services.StorageService
	Engagement *services.EngagementService
	Subjects   *services.SubjectService
	Stats      *services.StatsService

	// BruteForce may be nil, which disables login lockouts
	BruteForce *middleware.BruteForceProtection

	AllowedOrigins    string
	RateLimitRequests int
	MaxPageLimit      int
	AccessLog         bool
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    deps.AllowedOrigins,
		RateLimitRequests: deps.RateLimitRequests,
		RateLimitWindow:   1 * time.Minute,
		AccessLog:         deps.AccessLog,
	})
	app.Use(middleware.Metrics())

	authMiddleware := middleware.NewAuthMiddleware(deps.Auth)

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis)
	authHandler := auth_handlers.NewAuthHandler(deps.Auth, deps.BruteForce)
	resourceHandler := resource_handlers.NewResourceHandler(deps.Resources, deps.Storage, deps.Engagement, deps.MaxPageLimit)
	engagementHandler := engagement_handlers.NewEngagementHandler(deps.Engagement, deps.Resources)
	subjectHandler := subject_handlers.NewSubjectHandler(deps.Subjects)
	statsHandler := stats_handlers.NewStatsHandler(deps.Stats)

	// API v1 group
	api := app.Group("/api/v1")

	api.Get("/ping", healthHandler.Ping)
	api.Get("/health", healthHandler.Check)
	api.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	api.Get("/catalog", handlers.CatalogHandler(deps.Storage.MaxSize()))

	// every route below sees the session of its bearer token, if any
	api.Use(authMiddleware.Session())

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/password-strength", authHandler.PasswordStrength)
	authGroup.Post("/login", deps.BruteForce.CheckAndRecordAttempt(), authHandler.Login)
	authGroup.Post("/logout", authMiddleware.SessionRequired(), authHandler.Logout)
	authGroup.Get("/me", authHandler.Me)
	authGroup.Put("/profile", authMiddleware.Required(), authHandler.UpdateProfile)
	authGroup.Post("/profile/repair", authMiddleware.SessionRequired(), authHandler.RepairProfile)
	authGroup.Post("/forgot-password", authHandler.ForgotPassword)
	authGroup.Post("/reset-password", authHandler.ResetPassword)
	authGroup.Post("/verify", authHandler.VerifyEmail)
	authGroup.Post("/verify/send", authMiddleware.SessionRequired(), authHandler.SendVerification)

	// Resources routes
	resources := api.Group("/resources")
	resources.Get("/", resourceHandler.ListResources)
	resources.Get("/search", resourceHandler.SearchResources)
	resources.Post("/", authMiddleware.Required(), resourceHandler.CreateResource)
	resources.Post("/batch", authMiddleware.Required(), resourceHandler.UploadBatch)
	resources.Get("/:id", resourceHandler.GetResource)
	resources.Put("/:id", authMiddleware.Required(), resourceHandler.UpdateResource)
	resources.Delete("/:id", authMiddleware.Required(), resourceHandler.DeleteResource)
	resources.Get("/:id/download", authMiddleware.Required(), resourceHandler.DownloadResource)
	resources.Get("/:id/preview", resourceHandler.PreviewResource)
	resources.Get("/:id/view", resourceHandler.ViewResource)

	// Bookmarks (protected)
	resources.Post("/:id/bookmark", authMiddleware.Required(), engagementHandler.AddBookmark)
	resources.Delete("/:id/bookmark", authMiddleware.Required(), engagementHandler.RemoveBookmark)
	resources.Get("/:id/bookmark", authMiddleware.Required(), engagementHandler.IsBookmarked)

	// Current user's history (protected)
	me := api.Group("/me", authMiddleware.Required())
	me.Get("/downloads", engagementHandler.ListDownloads)
	me.Get("/bookmarks", engagementHandler.ListBookmarks)

	// Semesters
	semesters := api.Group("/semesters/:semester")
	semesters.Get("/resources", resourceHandler.ListBySemester)
	semesters.Get("/subjects", subjectHandler.ListSubjects)

	api.Post("/subjects", authMiddleware.Required(), middleware.RequireAdmin(), subjectHandler.CreateSubject)

	api.Get("/stats/dashboard", statsHandler.GetDashboard)
}
