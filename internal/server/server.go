// Package server contains the HTML handlers, routes and error boundary of the web app.
package server

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"mtum/internal/config"
	"mtum/internal/middleware"
	"mtum/internal/models"
	"mtum/internal/notifications"
	"mtum/internal/observability"
	"mtum/internal/repository"
	"mtum/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	sessions       *middleware.SessionManager
	userRepo       repository.UserRepository
	accounts       *service.AccountService
	posts          *service.PostService
	social         *service.SocialService
	blogs          *service.BlogService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; sessions then cannot be revoked server-side and notifications are dropped.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	tagRepo := repository.NewTagRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	followRepo := repository.NewFollowRepository(db)

	// Initialize Prometheus metrics
	prom := middleware.InitMetrics(observability.ServiceName)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		sessions:       middleware.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL(), cfg.IsProduction(), redisClient),
		userRepo:       userRepo,
		accounts:       service.NewAccountService(userRepo),
		posts:          service.NewPostService(postRepo, userRepo),
		blogs:          service.NewBlogService(userRepo, postRepo, tagRepo, likeRepo, followRepo),
	}

	var publisher service.Publisher
	if redisClient != nil {
		publisher = notifications.NewNotifier(redisClient)
	}
	s.social = service.NewSocialService(postRepo, userRepo, likeRepo, followRepo, publisher)

	return s, nil
}

// App builds the Fiber application with views, middleware and routes.
func (s *Server) App() (*fiber.App, error) {
	views, err := newViews()
	if err != nil {
		return nil, err
	}
	app := fiber.New(fiber.Config{
		AppName:      "mtum",
		Views:        views,
		ViewsLayout:  "layouts/main",
		ErrorHandler: s.ErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			middleware.Logger.ErrorContext(c.UserContext(), "panic recovered",
				"path", c.Path(), "panic", fmt.Sprint(e), "stack", string(debug.Stack()))
		},
	}))

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics, outside the logger so they see the status after error handling
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Structured Logging middleware (after requestid and context middleware). It wraps the
	// session loader so lookup failures are logged too.
	app.Use(middleware.StructuredLogger())

	// Session cookie, when present, resolves the current user
	app.Use(s.sessions.LoadSession(s.userRepo.GetByID))

	// Security headers. Media posts embed third-party images and videos.
	app.Use(helmet.New(helmet.Config{
		CrossOriginEmbedderPolicy: "unsafe-none",
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Global rate limiting (300 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return s.renderError(c, fiber.StatusTooManyRequests, "Too many requests, please try again later.")
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "mtum metrics",
	}))

	// Accounts
	app.Get("/register", s.ShowRegister)
	app.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	app.Get("/login", s.ShowLogin)
	app.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	app.Get("/logout", s.Logout)
	app.Get("/forgot_password", s.ForgotPassword)

	// Public listings
	app.Get("/", s.Index)
	app.Get("/search", s.Search)
	app.Get("/tagged/:keyword", s.Tagged)

	blog := app.Group("/blog/:slug")
	blog.Get("/", s.Blog)
	blog.Get("/tagged/:tag", s.BlogTagged)
	blog.Get("/random", s.RandomPost)
	blog.Get("/search", s.BlogSearchRedirect)
	blog.Get("/search/:keyword", s.BlogSearch)
	blog.Get("/post/:id/:postSlug?", s.PostDetail)

	// Protected routes
	auth := middleware.AuthRequired()

	app.Get("/delete_account", auth, s.ShowDeleteAccount)
	app.Post("/delete_account", auth, s.DeleteAccount)

	app.Get("/dashboard", auth, s.Dashboard(service.DashboardAll))
	app.Get("/mine", auth, s.Dashboard(service.DashboardMine))
	app.Get("/likes", auth, s.Dashboard(service.DashboardLikes))
	app.Get("/following", auth, s.Dashboard(service.DashboardFollowing))

	app.Get("/new/:kind", auth, s.ShowNewPost)
	app.Post("/new/:kind", auth, middleware.RateLimit(s.redis, 30, 10*time.Minute, "create_post"), s.CreatePost)
	app.Get("/delete/:id", auth, s.DeletePost)

	app.Get("/like/:id", auth, s.Like)
	app.Get("/unlike/:id", auth, s.Unlike)
	app.Get("/reblog/:id", auth, s.Reblog)
	app.Get("/follow/:slug", auth, s.Follow)
	app.Get("/unfollow/:slug", auth, s.Unfollow)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so only the database gates readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	app, err := s.App()
	if err != nil {
		return err
	}
	s.app = app

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}

// viewer returns the signed-in user, or nil for anonymous requests.
func (s *Server) viewer(c *fiber.Ctx) *models.User {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return nil
	}
	user, err := s.userRepo.GetByID(c.UserContext(), uid)
	if err != nil {
		return nil
	}
	return user
}
