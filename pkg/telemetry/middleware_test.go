package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracing(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
	})
	return recorder
}

func attributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	result := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		result[kv.Key] = kv.Value
	}
	return result
}

func TestGinMiddlewareRecordsTileSpan(t *testing.T) {
	recorder := setupTracing(t)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-1")
		c.Next()
	})
	r.Use(GinMiddleware("terrain-test"))
	r.GET("/api/v1/tile/:z/:x/:y/:layer", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})
	r.GET("/api/v1/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/tile/3/5/1/albedo", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "GET /api/v1/tile/:z/:x/:y/:layer", span.Name())
	assert.Equal(t, codes.Unset, span.Status().Code)

	attrs := attributes(span)
	assert.Equal(t, int64(3), attrs["tile.level"].AsInt64())
	assert.Equal(t, int64(5), attrs["tile.x"].AsInt64())
	assert.Equal(t, int64(1), attrs["tile.y"].AsInt64())
	assert.Equal(t, "albedo", attrs["terrain.layer"].AsString())
	assert.Equal(t, "req-1", attrs["http.request_id"].AsString())
	assert.Equal(t, int64(http.StatusNotFound), attrs["http.response.status_code"].AsInt64())
}

func TestGinMiddlewareMarksServerErrors(t *testing.T) {
	recorder := setupTracing(t)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(GinMiddleware("terrain-test"))
	r.GET("/api/v1/tiles", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/tiles", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
