// File: cmd/app/main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"ai-image-studio/internal/config"
	"ai-image-studio/internal/domain/model"
	aiAdapters "ai-image-studio/internal/infra/adapters/ai"
	payAdapters "ai-image-studio/internal/infra/adapters/payment"
	pg "ai-image-studio/internal/infra/db/postgres"
	"ai-image-studio/internal/infra/logging"
	"ai-image-studio/internal/infra/metrics"
	red "ai-image-studio/internal/infra/redis"
	"ai-image-studio/internal/infra/sched"
	"ai-image-studio/internal/infra/security"
	"ai-image-studio/internal/infra/storage"
	"ai-image-studio/internal/infra/web"
	"ai-image-studio/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	subRepo := pg.NewSubscriptionRepo(pool)
	projectRepo := pg.NewProjectRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Redis (optional; generation runs unthrottled without it) ----
	var rateLimiter usecase.RateLimiter
	redisClient, err := red.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, rate limiting disabled")
	} else {
		defer redisClient.Close()
		rateLimiter = red.NewRateLimiter(redisClient)
	}

	// ---- Object storage ----
	store, err := storage.NewS3Store(cfg.Storage)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	// ---- Adapters ----
	gateway, err := payAdapters.NewStripeGateway(cfg.Billing.StripeAPIKey, cfg.Billing.StripeWebhookSecret, logger)
	if err != nil {
		log.Fatalf("stripe gateway: %v", err)
	}
	imageModel, err := aiAdapters.NewReplicateAdapter(cfg.Model.ReplicateToken, logger)
	if err != nil {
		log.Fatalf("replicate adapter: %v", err)
	}
	verifier, err := security.NewJWTVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		log.Fatalf("jwt verifier: %v", err)
	}

	// ---- Plan catalog ----
	plans := make([]model.Plan, 0, len(cfg.Billing.Plans))
	for _, p := range cfg.Billing.Plans {
		plans = append(plans, model.Plan{
			Name:     p.Name,
			PriceID:  p.PriceID,
			Quota:    p.Quota,
			PriceUSD: p.PriceUSD,
		})
	}
	catalog, err := model.NewCatalog(plans...)
	if err != nil {
		log.Fatalf("plan catalog: %v", err)
	}

	// ---- Use cases ----
	billingUC := usecase.NewBillingUseCase(subRepo, gateway, catalog, txManager, usecase.BillingURLs{
		CheckoutSuccess: cfg.Billing.CheckoutSuccessURL,
		CheckoutCancel:  cfg.Billing.CheckoutCancelURL,
		PortalReturn:    cfg.Billing.PortalReturnURL,
	}, logger)
	generationUC := usecase.NewGenerationUseCase(
		subRepo, projectRepo, imageModel, store, rateLimiter,
		cfg.Model.ModelID, cfg.RateLimit.Requests, cfg.RateLimit.Window, logger,
	)
	projectUC := usecase.NewProjectUseCase(projectRepo, store, logger)

	// ---- Past-due sweeper ----
	sweeper := sched.NewPastDueSweeper(cfg.Sweeper.Interval, cfg.Sweeper.Grace, subRepo, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- HTTP server ----
	server := web.NewServer(generationUC, projectUC, billingUC, verifier, web.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		ModelID:         cfg.Model.ModelID,
	}, logger)

	if err := server.ListenAndServe(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped")
	}
}
