// Package httpapi assembles the Gin engine for the click API: the middleware
// chain, the public routes under the configured base path, and the health,
// metrics, and docs endpoints. Everything the handlers need is injected here;
// nothing in this package holds state of its own.
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
	"github.com/tbourn/go-click-backend/internal/config"
	"github.com/tbourn/go-click-backend/internal/domain"
	"github.com/tbourn/go-click-backend/internal/http/handlers"
	"github.com/tbourn/go-click-backend/internal/http/middleware"
	"github.com/tbourn/go-click-backend/internal/repo"
	"github.com/tbourn/go-click-backend/internal/services"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

// userRepoShim bridges the repo package's free functions to the
// services.UserRepo interface, so the user service stays testable against a
// fake while production code reuses the existing repository.
type userRepoShim struct{}

func (userRepoShim) CreateUser(ctx context.Context, db *gorm.DB, name string) (*domain.User, error) {
	return repo.CreateUser(ctx, db, name)
}

func (userRepoShim) GetUserByName(ctx context.Context, db *gorm.DB, name string) (*domain.User, error) {
	return repo.GetUserByName(ctx, db, name)
}

func (userRepoShim) ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	return repo.ListUsers(ctx, db)
}

func (userRepoShim) GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}

func (userRepoShim) UpdateUserName(ctx context.Context, db *gorm.DB, id uint, name string) error {
	return repo.UpdateUserName(ctx, db, id, name)
}

func (userRepoShim) DeleteUser(ctx context.Context, db *gorm.DB, id uint) error {
	return repo.DeleteUser(ctx, db, id)
}

// RegisterRoutes attaches the full middleware chain and every endpoint to r.
//
// Ordering carries the semantics. Tracing wraps everything; request IDs come
// next so the access logger and every error envelope can carry one; recovery
// sits after the logger so a panic still leaves a correlated 500. Behind
// those run the body-size cap, gzip, and Prometheus instrumentation. The
// Idempotency-Key validator precedes the rate limiter: a replayed click must
// reach its stored response without being charged tokens. CORS and security
// headers close the chain.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // masked in case a fronting proxy injects credentials
		},
	}))
	r.Use(middleware.Recovery())

	// 1 MiB request bodies; a click payload is a few dozen bytes.
	r.Use(limitBody(1 << 20))
	// Prometheus scrapes negotiate their own encoding.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{},
		func(ctx context.Context, key string, now time.Time) (bool, error) {
			return repo.HasIdempotencyKey(ctx, db, key, now)
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	r.Use(corsOriginShim(cfg.CORS.AllowedOrigins))
	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))

	// HSTS stays conditional on config and HTTPS; the rest of the headers
	// are unconditional.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Click Challenge API", "version": "1.0.0"})
	})

	// Interactive API docs, off unless explicitly enabled.
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	userSvc := services.NewUserService(db, userRepoShim{})
	clickSvc := &services.ClickService{
		DB:          db,
		BurstWindow: cfg.ClickWindow,
		BurstCount:  cfg.ClickBurst,
	}
	statsSvc := &services.StatsService{DB: db}
	h := handlers.New(userSvc, clickSvc, statsSvc, cfg.IdempotencyTTL)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Users
		api.POST("/users", h.CreateUser)
		api.GET("/users", h.ListUsers)
		api.GET("/users/:id", h.GetUser)
		api.PUT("/users/:id", h.UpdateUser)
		api.DELETE("/users/:id", h.DeleteUser)

		// Clicks
		api.POST("/clicks", h.RecordClick)
		api.GET("/clicks", h.ListClicks)
		api.GET("/clicks/:id", h.GetClick)

		// Stats
		api.GET("/leaderboard", h.Leaderboard)
		api.GET("/stats/:userName", h.UserStats)
	}
}

// corsConfig builds the shared CORS posture. With no configured origins the
// API is public and answers any origin; credentials stay off either way, so
// the wildcard is safe.
func corsConfig(origins []string) cors.Config {
	out := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		out.AllowAllOrigins = true
	} else {
		out.AllowOrigins = origins
	}
	return out
}

// corsOriginShim complements gin-contrib/cors, which only writes
// Access-Control-Allow-Origin when the request carries an Origin header.
// Plain clients (curl, health probes) still get a deterministic header:
// the wildcard in open mode, an echo of allowlisted origins otherwise.
func corsOriginShim(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	}
}

// limitBody caps request bodies at maxBytes; reads past the cap fail in the
// handler's ShouldBindJSON.
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
