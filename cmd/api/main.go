package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"phone-rental-gateway/config"
	httpHandler "phone-rental-gateway/internal/adapter/http/handler"
	pgStorage "phone-rental-gateway/internal/adapter/storage/postgres"
	redisStorage "phone-rental-gateway/internal/adapter/storage/redis"
	"phone-rental-gateway/internal/antispam"
	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/internal/proxypool"
	"phone-rental-gateway/internal/rentqueue"
	"phone-rental-gateway/internal/service"
	"phone-rental-gateway/internal/upstream"
	"phone-rental-gateway/internal/upstream/provider"
	"phone-rental-gateway/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Phone Rental Gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	rentalRepo := pgStorage.NewRentalRepo(pool)
	voucherRepo := pgStorage.NewVoucherRepo(pool)
	rapidRepo := pgStorage.NewRapidRepo(pool)
	proxyRepo := pgStorage.NewProxyRepo(pool)
	priceRepo := pgStorage.NewPriceRepo(pool)
	activityRepo := pgStorage.NewActivityRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	catalogueCache := redisStorage.NewCatalogueCache(rdb)
	pollThrottle := redisStorage.NewPollThrottle(rdb)

	// Outbound HTTP stack: SSRF-guarded client, proxy pool, platform client,
	// SMS provider registry.
	client := upstream.NewClient(log).WithHostValidator(upstream.ValidateHost)
	proxies := proxypool.New(proxyRepo, log).WithHealthCheck(
		func(ctx context.Context, e *domain.ProxyEntry) error {
			return client.CheckProxy(ctx, cfg.Platform.BaseURL, e)
		})
	if err := proxies.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial proxy pool load failed")
	}
	go proxies.Run(ctx, proxypool.DefaultRefreshInterval)

	platform := upstream.NewPlatform(client, proxies, cfg.Platform.BaseURL,
		cfg.Platform.DataTimeout, cfg.Platform.AuthTimeout, log)
	providers := provider.NewRegistry(client, cfg.Providers, log)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(activityRepo, log)

	// Initialize business services
	authSvc := service.NewAuthService(userRepo, hashSvc, tokenSvc, auditSvc, log)
	walletSvc := service.NewWalletService(userRepo, txRepo, idempotencyRepo, idempotencyCache, transactor, auditSvc, log)
	priceSvc := service.NewPriceService(priceRepo, log)

	queue := rentqueue.New(cfg.Rental.QueueCapacity, cfg.Rental.QueueUserGap)
	rentalSvc := service.NewRentalService(
		rentalRepo, walletSvc, priceSvc, providers, platform, pollThrottle,
		queue, transactor, auditSvc,
		cfg.Rental.SessionTTL, cfg.Rental.OtpPollInterval, log,
	)
	voucherSvc := service.NewVoucherService(voucherRepo, walletSvc, priceSvc, platform, catalogueCache, transactor, auditSvc, log)
	rapidSvc := service.NewRapidCheckService(rapidRepo, walletSvc, priceSvc, platform, transactor, log)
	accountSvc := service.NewAccountService(platform, log)

	// Session reaper
	reaper := service.NewReaper(rentalRepo, rentalSvc, cfg.Rental.ReaperInterval, log)
	go reaper.Run(ctx)

	// Anti-spam limiter
	limiter := antispam.New()
	defer limiter.Stop()

	// Health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:      authSvc,
		RentalSvc:    rentalSvc,
		VoucherSvc:   voucherSvc,
		RapidSvc:     rapidSvc,
		AccountSvc:   accountSvc,
		WalletSvc:    walletSvc,
		TokenSvc:     tokenSvc,
		UserRepo:     userRepo,
		TxRepo:       txRepo,
		ActivityRepo: activityRepo,
		ProxyPool:    proxies,
		Providers:    providers,
		Limiter:      limiter,
		AuditSvc:     auditSvc,
		WebhookToken: cfg.Webhook.Token,
		Checkers:     []ports.HealthChecker{pgHealth, redisHealth},
		Logger:       log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
