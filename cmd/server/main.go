package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/campus-skillshare/backend/internal/identity"
	"github.com/campus-skillshare/backend/internal/router"
	"github.com/campus-skillshare/backend/internal/store"
	"github.com/campus-skillshare/backend/pkg/config"
	"github.com/campus-skillshare/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile, port string
	cmd := &cobra.Command{
		Use:           "skillshare",
		Short:         "Campus Skill Share API server",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg := config.Load(files...)
			if port != "" {
				cfg.Port = port
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "environment file to load (default .env)")
	cmd.Flags().StringVar(&port, "port", "", "listen port, overrides PORT")
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when run exits

	// Initialize Firebase; optional when the mongo store is used
	var fb *firebase.App
	if cfg.FirebaseCredentialsPath != "" {
		fb, err = firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID)
		if err != nil {
			return fmt.Errorf("failed to initialize Firebase: %w", err)
		}
	}

	docs, err := openStore(ctx, cfg, db, fb)
	if err != nil {
		return err
	}
	defer docs.Close()

	var verifier identity.FirebaseVerifier
	if fb != nil {
		verifier = fb.AuthClient
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Setup global middleware
	router.SetupMiddleware(e, logger)

	// Setup routes and dependencies
	app, err := router.SetupRoutes(e, router.Dependencies{
		Postgres: db.Postgres,
		Store:    docs,
		Firebase: verifier,
		Logger:   logger,
		Settings: router.Settings{
			JWTSecret:         cfg.JWTSecret,
			TokenTTL:          cfg.TokenTTL,
			ToastTimeout:      cfg.ToastTimeout,
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   cfg.RateLimitWindow,
			RateLimitBurst:    cfg.RateLimitBurst,
		},
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// Open event streams only end with their session, so sessions close first.
		app.Close()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, db *config.DB, fb *firebase.App) (store.Store, error) {
	switch cfg.StoreDriver {
	case "mongo":
		client := db.ReleaseMongo()
		s := store.NewMongoStore(client, client.Database(cfg.MongoDatabase))
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		log.Println("Mongo document store ready.")
		return s, nil
	default:
		if fb == nil {
			return nil, errors.New("firestore store needs Firebase credentials")
		}
		client, err := fb.OpenFirestore(ctx)
		if err != nil {
			return nil, err
		}
		log.Println("Firestore document store ready.")
		return store.NewFirestoreStore(client), nil
	}
}
