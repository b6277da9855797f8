// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/member-portal/internal/account"
	"github.com/carterperez-dev/member-portal/internal/admin"
	"github.com/carterperez-dev/member-portal/internal/authz"
	"github.com/carterperez-dev/member-portal/internal/blob"
	"github.com/carterperez-dev/member-portal/internal/config"
	"github.com/carterperez-dev/member-portal/internal/core"
	"github.com/carterperez-dev/member-portal/internal/health"
	"github.com/carterperez-dev/member-portal/internal/identity"
	"github.com/carterperez-dev/member-portal/internal/middleware"
	"github.com/carterperez-dev/member-portal/internal/notify"
	"github.com/carterperez-dev/member-portal/internal/participation"
	"github.com/carterperez-dev/member-portal/internal/pending"
	"github.com/carterperez-dev/member-portal/internal/server"
	"github.com/carterperez-dev/member-portal/internal/token"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("database schema applied")
	}

	// Entries outlive the code so a late attempt reads as expired rather
	// than unknown.
	pendingStore, err := pending.Dial(ctx, cfg.Redis, 2*cfg.Security.OTPTTL)
	if err != nil {
		return err
	}
	logger.Info("pending registration store connected",
		"pool_size", cfg.Redis.PoolSize,
		"retention", 2*cfg.Security.OTPTTL,
	)

	clock := core.SystemClock()

	credentials, err := core.NewCredentialStore(cfg.Security.BcryptCost)
	if err != nil {
		return err
	}
	logger.Info("credential store initialized",
		"bcrypt_cost", credentials.Cost(),
	)

	issuer, err := token.NewIssuer(token.ConfigFrom(cfg.Session, cfg.Security), clock)
	if err != nil {
		return err
	}
	logger.Info("token issuer initialized",
		"algorithm", "HS256",
		"session_ttl", cfg.Session.Expire,
	)

	blobs, err := blob.NewLocalStore(cfg.Blob)
	if err != nil {
		return err
	}

	identities := identity.NewPostgresRepository(db.DB)

	accountSvc := account.NewService(account.Deps{
		Repo:        identities,
		Pending:     pendingStore,
		Issuer:      issuer,
		Credentials: credentials,
		Notifier:    notify.NewSender(cfg.SMTP, logger),
		Blobs:       blobs,
		Links:       cfg.Links,
		Clock:       clock,
		Logger:      logger,
	})
	accountHandler := account.NewHandler(accountSvc, cfg.Server.MaxUploadBytes)

	participationSvc := participation.NewService(
		participation.NewPostgresRepository(db.DB),
		clock,
		cfg.App.Location(),
		logger,
	)
	participationHandler := participation.NewHandler(participationSvc)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Accounts: accountSvc,
		DBStats:  db.Stats,
		Pending:  pendingStore,
	})

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: pendingStore},
		health.Dependency{Name: "blob", Checker: blobs},
	)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Handle("/uploads/*", http.StripPrefix(
		"/uploads/",
		http.FileServer(http.Dir(blobs.Dir())),
	))

	authenticator := middleware.Authenticator(
		authz.NewResolver(issuer, identities, clock),
	)
	adminOnly := middleware.RequireAdmin

	router.Route("/v1", func(r chi.Router) {
		accountHandler.RegisterRoutes(r, authenticator)
		participationHandler.RegisterRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := pendingStore.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
