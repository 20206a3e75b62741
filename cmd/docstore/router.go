package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/docstore/handlers"
	"github.com/gogotex/docstore/internal/config"
	"github.com/gogotex/docstore/internal/document/handler"
	"github.com/gogotex/docstore/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// apiPrefix is where the document routes are mounted.
const apiPrefix = "/api/v1"

// components are the collaborators the HTTP layer is assembled from.
// verifier, revoked and redis may be nil.
type components struct {
	cfg      *config.Config
	docs     handler.DocumentService
	access   middleware.AccessManager
	verifier middleware.Verifier
	revoked  middleware.RevocationList
	redis    *redis.Client
	// ping reports whether the document store is reachable.
	ping func(ctx context.Context) error
}

var startTime = time.Now()

func newRouter(cp components) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), gin.Logger(), gin.Recovery(), cors())

	if cp.cfg.RateLimit.Enabled {
		if cp.cfg.RateLimit.UseRedis && cp.redis != nil {
			win := time.Duration(cp.cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(cp.redis, cp.cfg.RateLimit.RPS, cp.cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cp.cfg.RateLimit.RPS, cp.cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", readiness(cp))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	r.POST("/_logout", middleware.AuthMiddleware(cp.verifier, nil, cp.revoked), middleware.LogoutHandler(cp.revoked, cp.cfg.JWT.RevokeTTL))

	handler.RegisterDocumentRoutes(r.Group(apiPrefix), cp.docs,
		middleware.AuthMiddleware(cp.verifier, cp.access, cp.revoked),
		middleware.AccessMiddleware(cp.access),
	)
	return r
}

// readiness returns 200 only when the document store (and Redis, when
// configured) answer a ping.
func readiness(cp components) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		deps := map[string]bool{"storage": true, "redis": true, "auth": cp.verifier != nil}
		ready := true
		if cp.ping != nil {
			if err := cp.ping(ctx); err != nil {
				deps["storage"] = false
				ready = false
			}
		}
		if cp.redis != nil {
			if err := cp.redis.Ping(ctx).Err(); err != nil {
				deps["redis"] = false
				ready = false
			}
		}

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	}
}

// cors allows browser clients to send conditional requests and read the
// version headers.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, If-Match, If-None-Match, "+middleware.RequestIDHeader)
		h.Set("Access-Control-Expose-Headers", "ETag, Location, "+middleware.RequestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
