package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tubelens/core/internal/config"
	"github.com/tubelens/core/internal/database"
	"github.com/tubelens/core/internal/middleware"
	"github.com/tubelens/core/internal/modules/analysis/remote"
	"github.com/tubelens/core/internal/modules/analysis/results"
	"github.com/tubelens/core/internal/modules/analysis/stats"
	"github.com/tubelens/core/internal/modules/bridge/bridge"
	"github.com/tubelens/core/internal/modules/gateway/gateway"
	"github.com/tubelens/core/internal/modules/gateway/notify"
	"github.com/tubelens/core/internal/modules/gateway/webhook"
	"github.com/tubelens/core/internal/modules/storage/backup"
	"github.com/tubelens/core/internal/modules/system/core/settings"
	"github.com/tubelens/core/internal/pkg/bark"
	"github.com/tubelens/core/internal/pkg/cluster"
	pkgcron "github.com/tubelens/core/internal/pkg/cron"
	pkgredis "github.com/tubelens/core/internal/pkg/redis"
	"github.com/tubelens/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	hub    *gateway.Hub
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler

	settingsSvc *settings.Service
	resultsSvc  *results.Service
	statsSvc    *stats.Service
	webhookSvc  *webhook.Service
	notifySvc   *notify.Service
	barkSvc     *bark.Service
	remote      *remote.Client
	backupH     *backup.Handler
	bridgeSvc   *bridge.Service
	bridgeRtr   *bridge.Router
	runsSvc     *taskqueue.Service
}

// New initializes the application: config → DB → Redis → services → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg, false)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
		if !cluster.ShouldLogDevDiagnostics() {
			gin.DebugPrintRouteFunc = func(string, string, string, int) {}
			gin.DebugPrintFunc = func(string, ...interface{}) {}
		}
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-idempotence"},
		ExposeHeaders:    []string{"Content-Length", "x-tubelens-cache", "x-tubelens-served-by"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	router.Use(cors.New(corsConfig))

	app := &App{cfg: cfg, router: router, db: db, rc: rc, logger: logger}
	app.buildServices()

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	if cfg.Gateway.Enable {
		app.hub = gateway.NewHub(rc, logger, func(token string) bool {
			_, err := middleware.ValidateToken(db, token)
			return err == nil
		})
		go app.hub.Run(ctx)
	}

	// Completion and settings events fan out to sockets, webhooks and
	// operator alerts from one place.
	fan := &eventFanout{hub: app.hub, notify: app.notifySvc}
	app.settingsSvc.SetEvents(fan)
	app.bridgeSvc.SetEvents(fan)

	// Jobs are registered on every instance so any worker can list and
	// trigger them, but only one instance runs the schedule.
	app.sched = pkgcron.New()
	app.registerCronJobs()
	if cluster.ShouldRunCron() {
		go app.sched.Start(ctx)
	}

	app.registerRoutes(rc)

	return app, nil
}

// buildServices wires the service graph once; routes and cron jobs share
// the same instances.
func (a *App) buildServices() {
	a.settingsSvc = settings.NewService(a.db)
	a.remote = remote.New(remote.WithTimeout(a.cfg.RemoteTimeout()))
	a.resultsSvc = results.NewService(a.db, a.rc)
	a.statsSvc = stats.NewService(a.db)
	a.webhookSvc = webhook.NewService(a.db)

	// Bark keys come from runtime config, re-read on every push so a
	// config reload does not require a restart.
	cfg := a.cfg
	a.barkSvc = bark.New(func() (key, serverURL, siteTitle string) {
		if !cfg.Notify.Bark.Enable {
			return "", "", ""
		}
		return cfg.Notify.Bark.Key, cfg.Notify.Bark.ServerURL, "TubeLens"
	})
	a.notifySvc = notify.New(a.db, cfg, a.webhookSvc, a.barkSvc)

	a.backupH = backup.NewHandler(a.db, cfg, a.settingsSvc, a.rc, backup.WithLogger(a.logger))

	a.bridgeRtr = bridge.NewRouter(a.logger)
	a.bridgeSvc = bridge.NewService(a.settingsSvc, a.remote, a.resultsSvc, a.logger)
	a.bridgeSvc.RegisterAll(a.bridgeRtr)

	a.runsSvc = taskqueue.NewService(a.rc)
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown cleans up background goroutines.
func (a *App) Shutdown() { a.cancel() }

// processStart anchors the uptime endpoint.
var processStart = time.Now()
