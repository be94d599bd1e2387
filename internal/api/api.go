// Package api implements the HTTP API for the audit service.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/seo-audit/internal/logger"
)

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(log logger.Interface, handler *AuditHandler) *gin.Engine {
	// Disable Gin's default logging
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	auditGroup := v1.Group("/audit")
	auditGroup.GET("/status", handler.Status)
	auditGroup.POST("/start", handler.Start)
	auditGroup.POST("/step", handler.Step)
	auditGroup.POST("/pause", handler.Pause)
	auditGroup.POST("/resume", handler.Resume)
	auditGroup.POST("/posts/include", handler.IncludePosts)
	auditGroup.POST("/posts/exclude", handler.ExcludePosts)
	auditGroup.GET("/items", handler.ListItems)

	return router
}

// loggingMiddleware creates a middleware that logs HTTP requests.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
