package ingress

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/ratelimit"

	"github.com/iff-guardian/nanoguard/internal/auth"
	"github.com/iff-guardian/nanoguard/pkg/health"
	"github.com/iff-guardian/nanoguard/pkg/logger"
	"github.com/iff-guardian/nanoguard/pkg/metrics"
)

// ThrottleSubmit rate-limits the event submission endpoint with a leaky
// bucket, independent of the domain rate-limit nanobot's own deque-based
// assessment over per-source request history.
func ThrottleSubmit(requestsPerSecond int) gin.HandlerFunc {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 500
	}
	limiter := ratelimit.New(requestsPerSecond)
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost && c.FullPath() == "/v1/events" {
			limiter.Take()
		}
		c.Next()
	}
}

// corsMiddleware adapts rs/cors to gin so browser-based operator consoles
// can reach the read-only query surface.
func corsMiddleware() gin.HandlerFunc {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           int(10 * time.Minute / time.Second),
	})
	handler := c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	return func(ctx *gin.Context) {
		handler.ServeHTTP(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}

// NewRouter builds the gin engine for the main gateway process: health,
// metrics, CORS, submit throttling, request logging, and the ingress
// service's routes behind operator auth for admin endpoints.
func NewRouter(svc *Service, tokens *auth.TokenManager, checker *health.Checker,
	collector *metrics.Collector, log logger.Logger, submitRPS int) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(ThrottleSubmit(submitRPS))
	router.Use(LoggingMiddleware(log))
	router.Use(MetricsMiddleware(collector))

	router.GET("/healthz", health.HandlerFunc(checker))
	router.GET("/readyz", health.ReadinessHandlerFunc(checker))
	router.GET("/metrics", metrics.HandlerFunc())

	svc.RegisterRoutes(router, tokens)
	return router
}
