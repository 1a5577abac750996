package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/soliel-ai/soliel/internal/app"
	"github.com/soliel-ai/soliel/internal/invitations"
	jobmetrics "github.com/soliel-ai/soliel/internal/jobs"
	platformdb "github.com/soliel-ai/soliel/internal/platform/db"
	"github.com/soliel-ai/soliel/internal/shared"
	"github.com/soliel-ai/soliel/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := platformdb.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)
	invitationRepo := invitations.NewRepository(pool)
	invitationService := invitations.NewService(invitationRepo, nil, auditLogger, nil, logger, nil, invitations.ServiceConfig{
		TTL:       cfg.InvitationTTL,
		Retention: cfg.InvitationRetention,
		BaseURL:   cfg.AppBaseURL,
	})

	sender := jobs.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	metrics := jobmetrics.NewMetrics(nil)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeInvitationEmail, Handler: metrics.Instrument("invitation_email", jobs.NewInvitationEmailHandler(sender, logger))},
			{Type: jobs.TaskTypeInvitationSweep, Handler: metrics.Instrument("invitation_sweep", jobs.NewInvitationSweepHandler(invitationService, logger))},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 3 * * *", Task: jobs.NewInvitationSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
