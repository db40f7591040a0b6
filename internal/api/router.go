package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/limaJavier/shiftsync/internal/generation"
)

// NewRouter wires every route onto a fresh engine
func NewRouter(service *generation.Service, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	handler := &Handler{service: service, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/validate", handler.Validate)

		institutions := v1.Group("/institutions/:institution")
		institutions.POST("/generate", handler.Generate)
		institutions.GET("/generations", handler.History)
		institutions.DELETE("/generations", handler.Purge)
		institutions.GET("/active", handler.Active)

		generations := v1.Group("/generations/:id")
		generations.POST("/activate", handler.Activate)
		generations.DELETE("", handler.Delete)
		generations.GET("/rows", handler.Rows)
		generations.GET("/occupancy", handler.Occupancy)
		generations.GET("/utilization", handler.Utilization)
		generations.GET("/grid", handler.Grid)
		generations.GET("/substitutes", handler.Substitutes)
		generations.GET("/fatigue", handler.Fatigue)
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
