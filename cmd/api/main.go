package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"nsimbi-wallet/config"
	httpHandler "nsimbi-wallet/internal/adapter/http/handler"
	"nsimbi-wallet/internal/adapter/http/middleware"
	pgStorage "nsimbi-wallet/internal/adapter/storage/postgres"
	redisStorage "nsimbi-wallet/internal/adapter/storage/redis"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/internal/service"
	"nsimbi-wallet/pkg/logger"
	"nsimbi-wallet/pkg/metrics"
	"nsimbi-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("NSW_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Nsimbi wallet")

	ctx := context.Background()

	// Schema migrations run before the pool is opened
	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(cfg.Database.MigrateURL(), log); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	healthCheckers := []ports.HealthChecker{pgStorage.NewHealthCheck(pool)}

	// Redis backs the idempotency cache and the shared rate limiter. Without
	// it idempotency is database only and limits are per process.
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimiter      ports.RateLimiter = middleware.NewLocalRateLimiter()
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimiter = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled, using in-process rate limiting")
	}

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	inventoryRepo := pgStorage.NewInventoryRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool, cfg.Database.LockTimeout)

	// Initialize core services
	hashSvc := service.NewBcryptHashService(service.DefaultBcryptCost)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	directory := service.NewDirectoryService(userRepo, hashSvc, logger.Component(log, "directory"))

	// Initialize business services
	authSvc := service.NewAuthService(userRepo, walletRepo, hashSvc, tokenSvc, transactor, logger.Component(log, "auth"))
	walletSvc := service.NewWalletService(
		walletRepo,
		ledgerRepo,
		inventoryRepo,
		idempotencyRepo,
		idempotencyCache,
		directory,
		transactor,
		logger.Component(log, "wallet"),
	)
	inventorySvc := service.NewInventoryService(inventoryRepo)
	reportingSvc := service.NewReportingService(ledgerRepo)
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))

	if cfg.Bootstrap.SuperAdminPassword != "" {
		created, err := authSvc.EnsureSuperAdmin(ctx, cfg.Bootstrap.SuperAdminName, cfg.Bootstrap.SuperAdminEmail, cfg.Bootstrap.SuperAdminPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to bootstrap super admin")
		}
		if created {
			log.Info().Str("email", cfg.Bootstrap.SuperAdminEmail).Msg("Super admin created")
		}
	}

	// Load OpenAPI spec for Swagger UI
	specBytes, err := os.ReadFile("docs/api/openapi.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
		specBytes = nil
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		WalletSvc:      walletSvc,
		ReportingSvc:   reportingSvc,
		InventorySvc:   inventorySvc,
		UserAdminSvc:   directory,
		TokenSvc:       tokenSvc,
		RateLimiter:    rateLimiter,
		RateLimits:     middleware.RateLimitRules(cfg.RateLimit),
		HealthCheckers: healthCheckers,
		AuditSvc:       auditSvc,
		Metrics:        metrics.New(),
		OpenAPISpec:    specBytes,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Logger:         log,
	})

	handler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", httpHandler.HeaderIdempotencyKey, middleware.HeaderRequestID},
		ExposedHeaders: []string{
			middleware.HeaderRequestID,
			response.HeaderReplayed,
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		MaxAge: cfg.CORS.MaxAge,
	})(router)

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
