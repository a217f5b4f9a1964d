// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, caller identity and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Telegram secrets never reach the access log
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/tg-analytics-gateway/internal/config"
	"github.com/tbourn/tg-analytics-gateway/internal/domain"
	"github.com/tbourn/tg-analytics-gateway/internal/http/handlers"
	"github.com/tbourn/tg-analytics-gateway/internal/http/middleware"
	"github.com/tbourn/tg-analytics-gateway/internal/repo"
	"github.com/tbourn/tg-analytics-gateway/internal/services"
)

// maxDialogsLimit caps the page size a caller may request from GET /dialogs.
const maxDialogsLimit = 500

// signInRepoShim adapts the repository free functions to the
// services.SignInRepo interface expected by the AuthService.
type signInRepoShim struct{}

// SavePendingSignIn proxies repo.SavePendingSignIn.
func (signInRepoShim) SavePendingSignIn(ctx context.Context, db *gorm.DB, userID, phone, hash string) (*domain.PendingSignIn, error) {
	return repo.SavePendingSignIn(ctx, db, userID, phone, hash)
}

// GetPendingSignIn proxies repo.GetPendingSignIn.
func (signInRepoShim) GetPendingSignIn(ctx context.Context, db *gorm.DB, userID string) (*domain.PendingSignIn, error) {
	return repo.GetPendingSignIn(ctx, db, userID)
}

// DeletePendingSignIn proxies repo.DeletePendingSignIn.
func (signInRepoShim) DeletePendingSignIn(ctx context.Context, db *gorm.DB, userID string) error {
	return repo.DeletePendingSignIn(ctx, db, userID)
}

// snapshotRepoShim adapts the repository free functions to the
// services.SnapshotRepo interface expected by the AnalyticsService.
type snapshotRepoShim struct{}

// UpsertSnapshots proxies repo.UpsertSnapshots.
func (snapshotRepoShim) UpsertSnapshots(ctx context.Context, db *gorm.DB, userID string, recs map[repo.SnapshotKey]domain.AnalyticsRecord) error {
	return repo.UpsertSnapshots(ctx, db, userID, recs)
}

// CountSnapshots proxies repo.CountSnapshots (pagination support).
func (snapshotRepoShim) CountSnapshots(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountSnapshots(ctx, db, userID)
}

// ListSnapshotsPage proxies repo.ListSnapshotsPage (pagination support).
func (snapshotRepoShim) ListSnapshotsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.AnalyticsSnapshot, error) {
	return repo.ListSnapshotsPage(ctx, db, userID, offset, limit)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), caller identity and
// rate limiting, CORS and security headers, health and metrics endpoints, and
// then mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. UserID: resolve the tenant before anything logs or limits
//  4. RedactingLogger: access log with secrets and PII scrubbed
//  5. Logger: request-scoped logger, reports hidden 5xx causes
//  6. Recovery: capture panics after the loggers
//  7. Body size limiter
//  8. Metrics
//  9. Rate limiter (per user, else per IP)
//  10. CORS, security headers and gzip
func RegisterRoutes(r *gin.Engine, db *gorm.DB, registry *services.ClientRegistry, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.UserID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Api-Hash"},
		MaskQuery:   []string{"phone"},
	}))
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	// Global body size limit (1 MiB); batch bodies are the largest payload.
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))

	// Analytics are point-in-time reads; only the snapshot listing is
	// cacheable, and it revalidates through its ETag.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		NoStore:       false,
		EnablePolicy:  true,
		ExposeHeaders: []string{"ETag", "Retry-After"},
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/registry
	authSvc := services.NewAuthService(db, signInRepoShim{}, registry)
	analyticsSvc := &services.AnalyticsService{
		DB:               db,
		Snapshots:        snapshotRepoShim{},
		Registry:         registry,
		BatchConcurrency: cfg.BatchConcurrency,
		BatchRPS:         cfg.BatchRPS,
	}
	dialogSvc := &services.DialogService{
		Registry:     registry,
		DefaultLimit: cfg.DialogsLimit,
		MaxLimit:     maxDialogsLimit,
	}
	h := handlers.New(authSvc, analyticsSvc, dialogSvc, cfg.OTEL.ServiceName)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/", h.Status)

		// Login flow
		api.POST("/auth/setup", h.Setup)
		api.POST("/auth/request-code", h.RequestCode)
		api.POST("/auth/sign-in", h.SignIn)
		api.GET("/auth/me", h.Me)
		api.POST("/auth/logout", h.Logout)

		// Conversations
		api.GET("/dialogs", h.ListDialogs)

		// Analytics
		api.GET("/analytics", h.GetAnalytics)
		api.POST("/analytics/batch", h.BatchAnalytics)
		api.GET("/analytics/snapshots", h.ListSnapshots)
	}
}

// corsMiddleware builds the CORS posture: any origin when no allowlist is
// configured, otherwise only the listed origins. Credentials are never
// allowed; callers authenticate with X-User-Id, not cookies.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderUserID, "X-Request-ID", "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Retry-After", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
