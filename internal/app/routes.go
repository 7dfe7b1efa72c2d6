package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tubelens/core/internal/middleware"
	"github.com/tubelens/core/internal/modules/analysis/results"
	"github.com/tubelens/core/internal/modules/analysis/stats"
	"github.com/tubelens/core/internal/modules/auth"
	"github.com/tubelens/core/internal/modules/bridge/bridge"
	"github.com/tubelens/core/internal/modules/dashboard/page"
	"github.com/tubelens/core/internal/modules/debug"
	"github.com/tubelens/core/internal/modules/gateway/gateway"
	"github.com/tubelens/core/internal/modules/gateway/webhook"
	"github.com/tubelens/core/internal/modules/system/core/health"
	"github.com/tubelens/core/internal/modules/system/core/settings"
	"github.com/tubelens/core/internal/modules/tasks/crontask"
	pkgredis "github.com/tubelens/core/internal/pkg/redis"
	"github.com/tubelens/core/internal/pkg/response"
)

func (a *App) registerRoutes(rc *pkgredis.Client) {
	r := a.router
	db := a.db
	authMW := middleware.Auth(db)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":     "tubelens-core",
		"version":  "1.0.0",
		"homepage": "https://github.com/tubelens/core",
		"issues":   "https://github.com/tubelens/core/issues",
	}

	apiPrefix := "/api/v1"

	// Rate limiting and idempotence run on every route (requires Redis).
	r.Use(middleware.RateLimit(rc.Raw(), a.barkSvc))
	r.Use(middleware.Idempotence(rc.Raw()))

	// Root-level endpoints
	root := r.Group("")
	page.NewHandler(a.resultsSvc, a.settingsSvc, a.cfg).RegisterRoutes(root)
	if a.hub != nil {
		gateway.RegisterRoutes(root, a.hub)
	}

	// Versioned API
	api := r.Group(apiPrefix)
	api.Use(middleware.OptionalAuth(db))
	api.Use(middleware.HTTPCache(rc.Raw(), middleware.HTTPCacheOptions{
		TTL:             15 * time.Second,
		EnableCDNHeader: true,
		Disable:         a.cfg.IsDev(),
		SkipPaths:       httpCacheSkipPaths(apiPrefix),
	}))

	// App info endpoint
	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/info", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		uptimeMs := time.Since(processStart).Milliseconds()
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptimeMs,
			"humanize":  humanizeDuration(time.Duration(uptimeMs) * time.Millisecond),
		})
	})

	// Infrastructure
	health.NewHandler(db, rc, a.remote, a.settingsSvc, a.cfg).RegisterRoutes(api, authMW)
	crontask.NewHandler(a.sched, a.runsSvc, a.logger).RegisterRoutes(api, authMW)

	// Page extension bridge (public, always answers with an envelope)
	bridge.NewHandler(a.bridgeRtr, a.statsSvc).RegisterRoutes(api, authMW)

	// Settings
	settings.NewHandler(a.settingsSvc).RegisterRoutes(api, authMW)

	// Analysis results and usage stats
	results.NewHandler(a.resultsSvc).RegisterRoutes(api, authMW)
	stats.NewHandler(a.statsSvc).RegisterRoutes(api, authMW)

	// Owner auth
	auth.NewHandler(auth.NewService(db)).RegisterRoutes(api, authMW)

	// Webhooks
	webhook.NewHandler(a.webhookSvc).RegisterRoutes(api, authMW)

	// Backups
	a.backupH.RegisterRoutes(api, authMW)

	// Manual gateway event push for extension development
	debug.NewHandler(a.hub).RegisterRoutes(api, authMW)

	cleanCache := func(c *gin.Context) {
		a.settingsSvc.Invalidate()
		deleted, err := middleware.PurgeHTTPCache(c.Request.Context(), rc.Raw())
		if err != nil {
			response.InternalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": deleted})
	}
	api.GET("/clean_cache", authMW, cleanCache)
	api.GET("/clean_redis", authMW, func(c *gin.Context) {
		rc.Raw().FlushDB(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// Socket gateway stats
	api.GET("/gateway/stats", func(c *gin.Context) {
		if a.hub == nil {
			c.JSON(http.StatusOK, gin.H{"enabled": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"enabled":    true,
			"public":     a.hub.ClientCount(gateway.RoomPublic),
			"admin":      a.hub.ClientCount(gateway.RoomAdmin),
			"total":      a.hub.ClientCount(""),
			"videoRooms": a.hub.VideoRoomCount(),
		})
	})
}

func httpCacheSkipPaths(apiPrefix string) []string {
	p := strings.TrimSuffix(strings.TrimSpace(apiPrefix), "/")
	if p == "" {
		p = "/api/v1"
	}
	return []string{
		p + "/uptime",
		p + "/health",
		p + "/health/*",
		p + "/clean_cache",
		p + "/clean_redis",
		p + "/gateway/stats",
		p + "/auth/registered",
		p + "/auth/session",
	}
}
