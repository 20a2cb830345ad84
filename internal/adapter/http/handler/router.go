package handler

import (
	"net/http"

	"fastpay/internal/adapter/http/middleware"
	redisStore "fastpay/internal/adapter/storage/redis"
	"fastpay/internal/core/ports"
	"fastpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	TransactionSvc ports.TransactionService
	QuerySvc       ports.QueryService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	RateLimit      middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
// The gin mode is set by the caller.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	api := r.Group("/api")
	if deps.RateLimitStore != nil {
		api.Use(middleware.RateLimiter(deps.RateLimitStore, "api", deps.RateLimit, deps.Logger))
	}

	txHandler := NewTransactionHandler(deps.TransactionSvc)
	accountHandler := NewAccountHandler(deps.QuerySvc)
	{
		api.GET("/balance/:accountId", accountHandler.GetBalance)
		api.GET("/transactions/:accountId", accountHandler.GetHistory)
		api.GET("/accounts/:accountId", accountHandler.GetAccount)
		api.POST("/transaction", txHandler.ApplyTransaction)
		api.POST("/transfer", txHandler.Transfer)
	}

	return r
}

// WithCORS wraps h so browsers on allowedOrigins may call the API.
func WithCORS(h http.Handler, allowedOrigins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", response.HeaderRequestID},
		ExposedHeaders: []string{
			response.HeaderRequestID,
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
	}).Handler(h)
}
