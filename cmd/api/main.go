package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"fastpay/config"
	httpHandler "fastpay/internal/adapter/http/handler"
	"fastpay/internal/adapter/http/middleware"
	memStorage "fastpay/internal/adapter/storage/memory"
	pgStorage "fastpay/internal/adapter/storage/postgres"
	redisStorage "fastpay/internal/adapter/storage/redis"
	"fastpay/internal/core/domain"
	"fastpay/internal/core/ports"
	"fastpay/internal/service"
	"fastpay/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("FASTPAY_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting FastPay")

	ctx := context.Background()

	// Initialize storage
	var (
		accountRepo    ports.AccountRepository
		txRepo         ports.TransactionRepository
		transactor     ports.DBTransactor
		healthCheckers []ports.HealthChecker
	)

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		store := memStorage.NewStore()
		accountRepo = memStorage.NewAccountRepo(store)
		txRepo = memStorage.NewTransactionRepo(store)
		transactor = memStorage.NewTransactor(store)
		healthCheckers = append(healthCheckers, memStorage.NewHealthCheck())
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
	default:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		log.Info().Msg("PostgreSQL connected")

		accountRepo = pgStorage.NewAccountRepo(pool)
		txRepo = pgStorage.NewTransactionRepo(pool)
		transactor = pgStorage.NewTransactor(pool)
		healthCheckers = append(healthCheckers, pgStorage.NewHealthCheck(pool))
	}

	// Seed demo accounts
	seed, err := seedAccounts(cfg.Seed)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid seed configuration")
	}
	if n, err := service.SeedAccounts(ctx, accountRepo, seed, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed accounts")
	} else if n > 0 {
		log.Info().Int("count", n).Msg("Seed accounts created")
	}

	// Initialize Redis (optional)
	var (
		balanceCache   ports.BalanceCache
		rateLimitStore *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		balanceCache = redisStorage.NewBalanceCache(rdb, cfg.Cache.BalanceTTL)
		if cfg.RateLimit.Enabled {
			rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		}
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	// Initialize business services
	txSvc := service.NewTransactionService(accountRepo, txRepo, transactor, balanceCache, log)
	querySvc := service.NewQueryService(accountRepo, txRepo, balanceCache, service.HistoryLimits{
		Default: cfg.History.DefaultLimit,
		Max:     cfg.History.MaxLimit,
	}, log)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TransactionSvc: txSvc,
		QuerySvc:       querySvc,
		RateLimitStore: rateLimitStore,
		RateLimit: middleware.RateLimitRule{
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
		},
		HealthCheckers: healthCheckers,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: httpHandler.WithCORS(router, cfg.CORS.AllowedOrigins),
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// seedAccounts converts the configured seed list into domain accounts.
func seedAccounts(cfg config.SeedConfig) ([]domain.Account, error) {
	accounts := make([]domain.Account, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		balance := decimal.Zero
		if a.Balance != "" {
			var err error
			balance, err = decimal.NewFromString(a.Balance)
			if err != nil {
				return nil, fmt.Errorf("seed account %s: invalid balance %q: %w", a.ID, a.Balance, err)
			}
		}
		accounts = append(accounts, domain.Account{
			ID:      a.ID,
			Name:    a.Name,
			Email:   a.Email,
			Balance: balance,
		})
	}
	return accounts, nil
}
