package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"pittmc/backend/internal/config"
	"pittmc/backend/internal/health"
	"pittmc/backend/internal/middleware"
	"pittmc/backend/internal/monitoring"
	"pittmc/backend/internal/service"
)

// RouterDependencies holds everything NewRouter wires together.
type RouterDependencies struct {
	Config       *config.Config
	Verification *service.VerificationService
	Whitelist    *service.WhitelistService
	Progress     *service.ProgressService
	Health       *health.Checker
	Metrics      *monitoring.Metrics
	RateLimiter  *middleware.RateLimiter // nil disables per-IP limiting
	Logger       *zap.Logger
}

// NewRouter creates the gin engine serving the public API.
func NewRouter(deps RouterDependencies) *gin.Engine {
	registerValidators()

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(ginzap.RecoveryWithZap(log, true))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.HTTPMetrics(deps.Metrics))
	router.Use(middleware.BodySizeLimit(deps.Config.Server.MaxBodyBytes))

	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.WebhookSecretHeader},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// A wildcard origin cannot be combined with credentials.
	allowAll := len(corsConfig.AllowOrigins) == 0
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			allowAll = true
			break
		}
	}
	if allowAll {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(gincors.New(corsConfig))

	handler := NewHandler(deps.Verification, deps.Whitelist, deps.Progress, log)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	if deps.Health != nil {
		router.GET("/health", func(c *gin.Context) {
			checks, ok := deps.Health.Report()
			resp := healthResponse{Status: "ok", Checks: checks}
			status := http.StatusOK
			if !ok {
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, resp)
		})
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}

	api := router.Group("/api")
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.Limit())
	}
	{
		api.POST("/send-verification", handler.SendVerification)
		api.POST("/request-session", handler.RequestSession)
		api.POST("/verify-code", handler.VerifyCode)
		api.POST("/check-verification", handler.CheckVerification)
		api.POST("/email-webhook", middleware.RequireWebhookSecret(deps.Config.Verification.WebhookSecret), handler.EmailWebhook)

		api.POST("/whitelist-request", handler.WhitelistRequest)
		api.POST("/whitelist-user", handler.WhitelistRequest) // legacy wizard path
		api.POST("/check-username", handler.CheckUsername)

		api.POST("/update-device", handler.UpdateDevice)
		api.POST("/update-username", handler.UpdateUsername)
	}

	return router
}
