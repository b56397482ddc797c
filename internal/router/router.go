package router

import (
	"fmt"
	"log"
	"time"

	"github.com/campus-skillshare/backend/internal/handlers"
	"github.com/campus-skillshare/backend/internal/identity"
	"github.com/campus-skillshare/backend/internal/middleware"
	"github.com/campus-skillshare/backend/internal/models"
	"github.com/campus-skillshare/backend/internal/reconciler"
	"github.com/campus-skillshare/backend/internal/repositories"
	"github.com/campus-skillshare/backend/internal/session"
	"github.com/campus-skillshare/backend/internal/store"
	"github.com/campus-skillshare/backend/internal/validators"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Settings are the tunables SetupRoutes needs from the configuration.
type Settings struct {
	JWTSecret         string
	TokenTTL          time.Duration
	ToastTimeout      time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitBurst    int
	EventHeartbeat    time.Duration
}

// Dependencies are the connections the routes are built on. Firebase may be nil,
// in which case firebase-login answers 503.
type Dependencies struct {
	Postgres *gorm.DB
	Store    store.Store
	Firebase identity.FirebaseVerifier
	Logger   *zap.Logger
	Settings Settings
}

// App is what main needs to keep after wiring: the live sessions to close on shutdown.
type App struct {
	Sessions *session.Manager
	Identity *identity.Local
	detach   func()
}

// Close ends every live session.
func (a *App) Close() {
	a.detach()
	a.Sessions.CloseAll()
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e.Validator = validators.NewValidator()
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	e.Use(middleware.RequestLogger(logger))
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) (*App, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// AutoMigrate PostgreSQL models
	if err := deps.Postgres.AutoMigrate(&models.Credential{}, &models.Activity{}, &models.RevokedSession{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	credentialRepo := repositories.NewPostgresCredentialRepository(deps.Postgres)
	revocationRepo := repositories.NewPostgresRevocationRepository(deps.Postgres)
	activityRepo := repositories.NewPostgresActivityRepository(deps.Postgres)
	userRepo := repositories.NewDocumentUserRepository(deps.Store)
	relationshipRepo := repositories.NewDocumentRelationshipRepository(deps.Store)
	conversationRepo := repositories.NewDocumentConversationRepository(deps.Store)

	rec := reconciler.New(deps.Store, reconciler.WithJournal(activityRepo), reconciler.WithLogger(logger))

	opts := []identity.Option{identity.WithLogger(logger)}
	if deps.Firebase != nil {
		opts = append(opts, identity.WithFirebase(deps.Firebase))
	}
	provider := identity.NewLocal(credentialRepo, revocationRepo, userRepo, identity.Config{
		Secret: deps.Settings.JWTSecret,
		TTL:    deps.Settings.TokenTTL,
	}, opts...)

	sessions := session.NewManager(session.Deps{
		Users:         userRepo,
		Relationships: relationshipRepo,
		Conversations: conversationRepo,
		Reconciler:    rec,
		Journal:       activityRepo,
		Logger:        logger,
		ToastTimeout:  deps.Settings.ToastTimeout,
	})
	detach := sessions.Attach(provider)

	limiter := middleware.NewRateLimiter(deps.Settings.RateLimitRequests, deps.Settings.RateLimitWindow, deps.Settings.RateLimitBurst, 10*time.Minute)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(provider, limiter)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// --- Protected routes (require a session token) ---
	api := e.Group("/api/v1")
	api.Use(middleware.SessionAuth(provider, sessions))
	api.Use(middleware.RateLimit(limiter, "api"))
	log.Println("Session authentication middleware applied to /api/v1 group.")

	authHandler.RegisterSessionRoutes(api)
	log.Println("Session routes configured.")

	handlers.NewUserHandler().RegisterProfileRoutes(api)
	log.Println("User profile routes configured.")

	handlers.NewRelationshipHandler().RegisterRelationshipRoutes(api)
	log.Println("Relationship routes configured.")

	handlers.NewConversationHandler(deps.Settings.EventHeartbeat).RegisterConversationRoutes(api)
	log.Println("Conversation routes configured.")

	handlers.NewToastHandler(deps.Settings.EventHeartbeat).RegisterToastRoutes(api)
	log.Println("Toast routes configured.")

	handlers.NewActivityHandler(activityRepo).RegisterActivityRoutes(api)
	log.Println("Activity routes configured.")

	log.Println("All routes configured.")
	return &App{Sessions: sessions, Identity: provider, detach: detach}, nil
}
