package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/terrain/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestIDHeader = "X-Request-ID"

func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled bool) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	r.Use(requestID())

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware("guide-helper-terrain"))
	}

	r.Use(ginZapLogger(l))

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)
	v1.GET("/tiles", handler.Tiles)
	v1.GET("/tile/:z/:x/:y/:layer", handler.Tile)
	v1.PUT("/observer", handler.UpdateObserver)
	v1.GET("/altitude", handler.Altitude)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestLogger := l
		if id := c.GetString("request_id"); id != "" {
			requestLogger = logger.With(l, "request_id", id)
		}
		c.Set("logger", requestLogger)
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), requestLogger))

		start := time.Now()

		c.Next()

		latency := time.Since(start)

		requestLogger.Info("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", latency,
			"size", c.Writer.Size(),
		)
	}
}
