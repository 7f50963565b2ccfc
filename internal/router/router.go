package router

import (
	"context"
	"time"

	"gestorpos/internal/config"
	"gestorpos/internal/handler"
	"gestorpos/internal/infra"
	"gestorpos/internal/middleware"
	"gestorpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Deps are the already wired collaborators of the HTTP layer.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client // nil when sale events are disabled
	EventsCB *infra.CircuitBreaker
	Sales    service.SaleService
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
	limiter.StartPurge(ctx)

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.Origins()))
	r.Use(middleware.ErrorHandler())

	salesH := handler.NewSalesHandler(deps.Sales)

	r.GET("/health", handler.Health(deps.DB, deps.Redis, deps.EventsCB))

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), limiter.Handler())
	{
		sales := v1.Group("/sales")
		sales.POST("/balance", salesH.Balance)
		sales.POST("", salesH.Register)
		sales.GET("/:ref", salesH.Get)
		sales.PUT("/:ref", salesH.Update)
		sales.POST("/:ref/cancel", salesH.Cancel)
		sales.PATCH("/:ref/operator", middleware.RequireRole("supervisor", "admin"), salesH.ChangeOperator)
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
