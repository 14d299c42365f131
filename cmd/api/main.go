package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/time/rate"

	"voice-campaigns/internal/audit"
	"voice-campaigns/internal/auth"
	"voice-campaigns/internal/calls"
	"voice-campaigns/internal/campaigns"
	"voice-campaigns/internal/config"
	"voice-campaigns/internal/contacts"
	"voice-campaigns/internal/db"
	"voice-campaigns/internal/httpkit"
	"voice-campaigns/internal/telephony"
	"voice-campaigns/internal/tenancy"
	"voice-campaigns/internal/toolcalls"
	"voice-campaigns/internal/transcripts"
	"voice-campaigns/internal/webhook"
	"voice-campaigns/pkg/logger"
	"voice-campaigns/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	sqlDB, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if cfg.App.MigrationsAuto {
		if err := db.Migrate(rootCtx, sqlDB); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		v, _ := db.Version(rootCtx, sqlDB)
		log.Info("migrations applied", "version", v)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	orgCache, err := tenancy.NewCache(10_000, cfg.Tenancy.CacheTTL)
	if err != nil {
		log.Error("tenancy cache init failed", "err", err)
		os.Exit(1)
	}
	defer orgCache.Close()

	// Stores
	callRepo := calls.NewPostgresRepo(sqlDB)
	campaignRepo := campaigns.NewPostgresRepo(sqlDB)
	contactRepo := contacts.NewPostgresRepo(sqlDB)
	tenancyRepo := tenancy.NewPostgresRepo(sqlDB)
	auditSvc := audit.NewService(audit.NewPostgresRepo(sqlDB))

	// Campaign scheduling
	queueOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password}
	taskClient := campaigns.NewTaskClient(queueOpt, cfg.Campaign.Queue)
	defer taskClient.Close()

	region := cfg.Tenancy.PhoneDefaultRegion
	campaignSvc := campaigns.NewService(campaignRepo, callRepo, taskClient, auditSvc, campaigns.Options{
		InterCallGap:   cfg.Campaign.InterCallGap,
		RecentActivity: cfg.Campaign.RecentActivity,
		DefaultRegion:  region,
	})
	slots := campaigns.NewRedisSlots(rdb, cfg.Campaign.MaxConcurrentCalls, cfg.Campaign.SlotTTL)

	// Event ingestion
	reconciler := calls.NewReconciler(callRepo, slots, campaignSvc)
	tools := toolcalls.NewTools(contactRepo, region)
	gateway := webhook.NewGateway(
		tenancy.NewResolver(tenancyRepo, orgCache, region),
		reconciler,
		transcripts.NewAccumulator(reconciler),
		toolcalls.NewDispatcher(tools.Registry(), cfg.Tools.Timeout, cfg.Tools.Concurrency),
		region,
	)

	if cfg.App.WorkerEnabled {
		provider := telephony.NewClient(telephony.ClientConfig{
			BaseURL:       cfg.Provider.APIURL,
			APIKey:        cfg.Provider.APIKey,
			PhoneNumberID: cfg.Provider.PhoneNumberID,
		})
		dialer := campaigns.NewDialer(campaignRepo, callRepo, reconciler, provider, slots)
		worker := campaigns.NewWorker(queueOpt, campaigns.WorkerConfig{
			Queue:        cfg.Campaign.Queue,
			Concurrency:  cfg.Campaign.WorkerConcurrency,
			InterCallGap: cfg.Campaign.InterCallGap,
		}, campaignSvc, dialer, taskClient, log)
		go worker.Run(rootCtx)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		authMW:        auth.RequireAccessToken(authManager),
		limiter:       httpkit.NewIPRateLimiter(rate.Limit(20), 40),
		webhook:       webhook.NewHandler(gateway),
		webhookSecret: cfg.Provider.WebhookSecret,
		campaigns:     campaigns.NewHandler(campaignSvc),
		ready: func(ctx context.Context) error {
			if err := utils.HealthCheck(ctx, sqlDB, 2*time.Second); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "worker", cfg.App.WorkerEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
