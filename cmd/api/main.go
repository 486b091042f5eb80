package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grupofy/grupofy-backend/api/routes"
	"github.com/grupofy/grupofy-backend/internal/connection"
	"github.com/grupofy/grupofy-backend/internal/cron"
	"github.com/grupofy/grupofy-backend/internal/membership"
	"github.com/grupofy/grupofy-backend/internal/messenger/meow"
	"github.com/grupofy/grupofy-backend/internal/projects"
	"github.com/grupofy/grupofy-backend/internal/purchases"
	"github.com/grupofy/grupofy-backend/internal/reconcile"
	purchasewebhook "github.com/grupofy/grupofy-backend/internal/webhooks/purchase"
	"github.com/grupofy/grupofy-backend/pkg/config"
	"github.com/grupofy/grupofy-backend/pkg/db"
	"github.com/grupofy/grupofy-backend/pkg/logger"
	"github.com/grupofy/grupofy-backend/pkg/metrics"
	"github.com/grupofy/grupofy-backend/pkg/migrate"
	"github.com/grupofy/grupofy-backend/pkg/phone"
	"github.com/grupofy/grupofy-backend/pkg/redis"
)

const webhookIdempotencyTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "grupofy"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "grupofy",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, using database-only idempotency and in-process locking")
	}

	domainMetrics := metrics.NewDomainMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	projectRepo, err := projects.NewRepo(dbClient)
	if err != nil {
		fatal(logg, "project repo", err)
	}
	memberRepo, err := membership.NewRepo(dbClient)
	if err != nil {
		fatal(logg, "membership repo", err)
	}
	purchaseRepo, err := purchases.NewRepo(dbClient)
	if err != nil {
		fatal(logg, "purchase repo", err)
	}
	reconcileStore, err := reconcile.NewStore(dbClient)
	if err != nil {
		fatal(logg, "reconcile store", err)
	}
	credentialRepo, err := connection.NewCredentialRepo(dbClient)
	if err != nil {
		fatal(logg, "credential repo", err)
	}
	webhookLogRepo, err := purchasewebhook.NewLogRepo(dbClient)
	if err != nil {
		fatal(logg, "webhook log repo", err)
	}

	reconciler, err := reconcile.NewService(reconcile.ServiceParams{
		Members:   reconcileStore,
		Projects:  reconcileStore,
		Purchases: reconcileStore,
		Matcher:   phone.NewMatcher(cfg.Match.Strategy),
		Logger:    logg,
		Metrics:   domainMetrics,
	})
	if err != nil {
		fatal(logg, "reconcile service", err)
	}

	credentials, err := connection.NewCredentialStore(cfg.Messenger, credentialRepo, logg)
	if err != nil {
		fatal(logg, "credential store", err)
	}
	dialer, err := meow.NewDialer(cfg.Messenger, logg)
	if err != nil {
		fatal(logg, "messenger dialer", err)
	}
	manager, err := connection.NewManager(connection.ManagerParams{
		Config:      cfg.Messenger,
		Dialer:      dialer,
		Credentials: credentials,
		Logger:      logg,
		Metrics:     domainMetrics,
	})
	if err != nil {
		fatal(logg, "connection manager", err)
	}
	manager.SetParticipantsHandler(reconciler.HandleJoins)

	membershipService, err := membership.NewService(membership.ServiceParams{
		Manager:    manager,
		Repo:       memberRepo,
		Groups:     projectRepo,
		Reconciler: reconciler,
		Logger:     logg,
		Metrics:    domainMetrics,
		SyncConfig: cfg.Sync,
	})
	if err != nil {
		fatal(logg, "membership service", err)
	}

	projectService, err := projects.NewService(projectRepo, logg)
	if err != nil {
		fatal(logg, "project service", err)
	}
	purchaseService, err := purchases.NewService(purchaseRepo, reconciler, logg)
	if err != nil {
		fatal(logg, "purchase service", err)
	}

	var webhookGuard *purchasewebhook.IdempotencyGuard
	if redisClient != nil {
		webhookGuard, err = purchasewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "webhook")
		if err != nil {
			fatal(logg, "webhook idempotency guard", err)
		}
	}
	webhookService, err := purchasewebhook.NewService(purchasewebhook.ServiceParams{
		Projects:   projectService,
		Purchases:  purchaseRepo,
		Logs:       webhookLogRepo,
		Reconciler: reconciler,
		Guard:      webhookGuard,
		Metrics:    domainMetrics,
		Logger:     logg,
	})
	if err != nil {
		fatal(logg, "webhook service", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go manager.Connect(ctx)
	defer manager.Disconnect(context.Background())

	go runWorker(ctx, cfg, logg, redisClient, cronMetrics, projectRepo, membershipService)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	srvCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(srvCtx, "starting grupofy server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			RedisClient: redisClient,
			Manager:     manager,
			Roster:      membershipService,
			Projects:    projectService,
			Membership:  membershipService,
			Purchases:   purchaseService,
			Webhook:     webhookService,
			WebhookLogs: webhookService,
		}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(srvCtx, "server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(srvCtx, "grupofy server shut down")
}

func runWorker(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	cronMetrics *metrics.CronJobMetrics,
	projectRepo projects.Repo,
	membershipService *membership.Service,
) {
	var lock cron.Lock
	if redisClient != nil {
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("worker"), cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create worker lock", err)
			return
		}
		lock = redisLock
	} else {
		lock = cron.NewLocalLock()
	}

	registry := cron.NewRegistry()
	syncJob, err := cron.NewMembershipSyncJob(cron.MembershipSyncJobParams{
		Logger:   logg,
		Projects: projectRepo,
		Syncer:   membershipService,
		Interval: cfg.Sync.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create membership sync job", err)
		return
	}
	registry.Register(syncJob)

	if cfg.KeepAlive.BaseURL != "" {
		keepAlive, err := cron.NewKeepAliveJob(cron.KeepAliveJobParams{
			Logger:  logg,
			BaseURL: cfg.KeepAlive.BaseURL,
		})
		if err != nil {
			logg.Error(ctx, "failed to create keepalive job", err)
			return
		}
		registry.Register(keepAlive)
	}

	worker, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create background worker", err)
		return
	}
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		logg.Error(ctx, "background worker stopped unexpectedly", err)
	}
}

func fatal(logg *logger.Logger, what string, err error) {
	logg.Error(context.Background(), "failed to create "+what, err)
	os.Exit(1)
}
