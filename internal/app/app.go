package app

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/uniedit/album/cmd/server/docs"
	"github.com/uniedit/album/internal/infra/config"
	"github.com/uniedit/album/internal/module/album"
	"github.com/uniedit/album/internal/module/auth"
	"github.com/uniedit/album/internal/shared/logger"
	"github.com/uniedit/album/internal/utils/metrics"
	"github.com/uniedit/album/internal/utils/middleware"
)

// Dependencies holds all injected dependencies.
type Dependencies struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      goredis.UniversalClient
	HTTPClient *http.Client
	Logger     *logger.Logger
	ZapLogger  *zap.Logger
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics

	// HTTP Handlers
	AlbumHandler *album.Handler
	AuthHandler  *auth.Handler
}

// App represents the application.
type App struct {
	deps    *Dependencies
	router  *gin.Engine
	cleanup func()
}

// New creates a new application instance from a validated config.
func New(cfg *config.Config) (*App, error) {
	deps, cleanup, err := InitializeDependencies(cfg)
	if err != nil {
		return nil, fmt.Errorf("init dependencies: %w", err)
	}

	app := &App{
		deps:    deps,
		cleanup: cleanup,
	}
	app.router = app.setupRouter()
	app.registerRoutes()

	deps.ZapLogger.Info("application initialized",
		zap.String("bucket", cfg.Storage.Bucket),
		zap.String("region", cfg.Storage.Region),
		zap.Bool("redis", deps.Redis != nil),
		zap.Bool("audit_db", deps.DB != nil),
	)

	return app, nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.deps.Config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Apply global middleware
	r.Use(middleware.Recovery(a.deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.deps.Logger))
	r.Use(middleware.Metrics(a.deps.Metrics))
	r.Use(middleware.CORS(a.deps.Config.Server.AllowOrigins))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.deps.Registry, promhttp.HandlerOpts{})))

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	return r
}

// registerRoutes registers routes for all modules.
func (a *App) registerRoutes() {
	api := a.router.Group("")
	api.Use(middleware.Timeout(a.deps.Config.Server.RequestTimeout))

	a.deps.AuthHandler.RegisterRoutes(api)
	a.deps.AlbumHandler.RegisterRoutes(api, a.deps.AuthHandler.RequireSession())
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop releases resources in reverse order of creation.
func (a *App) Stop() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
