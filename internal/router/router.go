package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paygate/config"
	"paygate/internal/handler"
	"paygate/internal/middleware"
	"paygate/internal/repository"
	"paygate/internal/service"
	"paygate/pkg/relay"
)

// Setup wires repositories, services, and handlers onto the engine. The
// verifier, transfer executor, and redis client are built in main so their
// lifecycles (dial once, close on shutdown) stay out of request handling.
func Setup(cfg *config.Config, db *gorm.DB, log *zap.Logger, verifier service.ChainVerifier, transfer service.Transferer, rdb *redis.Client) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLog(log))
	r.Use(middleware.Metrics())
	if rdb != nil && cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimit(rdb, cfg.RateLimit.PerMinute))
	}

	// Repositories
	providerRepo := repository.NewProviderRepository(db)
	apiRepo := repository.NewApiRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	// One dispatcher per process: it owns the upstream HTTP client and the
	// per-host circuit breakers.
	dispatcher := relay.NewDispatcher(cfg.Relay.InternalBaseURL, cfg.Relay.InternalSecret, relay.Options{
		Timeout:         cfg.Relay.Timeout,
		BreakerFailures: cfg.Relay.BreakerFailures,
		BreakerTimeout:  cfg.Relay.BreakerTimeout,
	})

	// Services
	settlementSvc := service.NewSettlementService(paymentRepo, transfer, log)
	paymentSvc := service.NewPaymentService(
		paymentRepo, apiRepo, providerRepo,
		verifier, settlementSvc,
		cfg.Settlement.FeeBps,
		cfg.Token.ValidityWindow,
		cfg.Token.NotBeforeSkew,
		log,
	)
	tokenSvc := service.NewTokenService(tokenRepo, apiRepo, log)
	usageSvc := service.NewUsageService(usageRepo, apiRepo, providerRepo, log)
	providerSvc := service.NewProviderService(cfg, providerRepo, apiRepo)

	// Handlers
	paymentHandler := handler.NewPaymentHandler(paymentSvc, paymentRepo, tokenRepo, log)
	callHandler := handler.NewCallHandler(tokenSvc, usageSvc, dispatcher, log)
	tokenHandler := handler.NewTokenHandler(tokenSvc, log)
	internalRelayHandler := handler.NewInternalRelayHandler(apiRepo, dispatcher, log)
	providerHandler := handler.NewProviderHandler(providerSvc, providerRepo, apiRepo, usageRepo, log)

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Second hop of the double relay; shared secret checked before anything
	// else runs.
	internal := r.Group("/internal")
	internal.Use(middleware.InternalAuth(cfg.Relay.InternalSecret))
	internal.POST("/relay", internalRelayHandler.Relay)

	api := r.Group("/api/v1")
	{
		api.POST("/payments/process", paymentHandler.Process)
		api.GET("/payments/:txHash", paymentHandler.Get)
		api.POST("/tokens/validate", tokenHandler.Validate)
		api.POST("/apis/:id/call", middleware.RequireDeveloperAddress(), callHandler.Call)

		api.POST("/providers/register", providerHandler.Register)
		api.POST("/providers/login", providerHandler.Login)

		dashboard := api.Group("")
		dashboard.Use(middleware.ProviderAuth(&cfg.JWT))
		{
			dashboard.POST("/apis", providerHandler.CreateApi)
			dashboard.GET("/apis", providerHandler.ListApis)
			dashboard.PATCH("/apis/:id/deactivate", providerHandler.DeactivateApi)
			dashboard.GET("/apis/:id/stats", providerHandler.ApiStats)
			dashboard.GET("/providers/me", providerHandler.Me)
		}
	}

	return r
}
