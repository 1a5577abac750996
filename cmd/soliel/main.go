package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/soliel-ai/soliel/db"
	"github.com/soliel-ai/soliel/internal/app"
	"github.com/soliel-ai/soliel/internal/auth"
	"github.com/soliel-ai/soliel/internal/authz"
	"github.com/soliel-ai/soliel/internal/companies"
	"github.com/soliel-ai/soliel/internal/courses"
	"github.com/soliel-ai/soliel/internal/invitations"
	"github.com/soliel-ai/soliel/internal/observability"
	"github.com/soliel-ai/soliel/internal/platform/cache"
	platformdb "github.com/soliel-ai/soliel/internal/platform/db"
	"github.com/soliel-ai/soliel/internal/shared"
	"github.com/soliel-ai/soliel/internal/users"
	"github.com/soliel-ai/soliel/internal/view"
	"github.com/soliel-ai/soliel/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	pool, err := platformdb.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "soliel_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	resolver := auth.NewResolver(authRepo)

	profileRepo := authz.NewProfileRepository(pool)
	authorizer := authz.NewAuthorizer(profileRepo)
	guard := authz.NewGuard(logger, resolver, authorizer, metrics)

	homeFor := func(r *http.Request, userID int64) string {
		role, err := authorizer.RoleOf(r.Context(), userID)
		if err != nil {
			return "/"
		}
		return authz.HomePath(role)
	}

	companyRepo := companies.NewRepository(pool)
	companyService := companies.NewService(companyRepo, auditLogger, logger)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	invitationRepo := invitations.NewRepository(pool)
	invitationService := invitations.NewService(invitationRepo, companyService, auditLogger, asynqClient, logger, metrics, invitations.ServiceConfig{
		TTL:       cfg.InvitationTTL,
		Retention: cfg.InvitationRetention,
		BaseURL:   cfg.AppBaseURL,
	})

	courseRepo := courses.NewRepository(pool)
	courseService := courses.NewService(courseRepo)

	userRepo := users.NewPGRepository(pool)
	userService := users.NewService(logger, userRepo, profileRepo, auditLogger)

	pdfClient := report.NewClient(cfg.GotenbergURL)

	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, homeFor)
	invitationHandler := invitations.NewHandler(logger, invitationService, authService, resolver, templates, sessionManager, csrfManager)
	courseHandler := courses.NewHandler(logger, courseService, templates, csrfManager, pdfClient)
	companyHandler := companies.NewHandler(logger, companyService, invitationService, templates, csrfManager)
	usersHandler := users.NewHandler(logger, userService, templates, csrfManager)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Templates:         templates,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		Guard:             guard,
		HomeFor:           homeFor,
		AuthHandler:       authHandler,
		InvitationHandler: invitationHandler,
		CourseHandler:     courseHandler,
		CompanyHandler:    companyHandler,
		UsersHandler:      usersHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
