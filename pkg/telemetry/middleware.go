package telemetry

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/jaennil/guide_helper/backend/terrain"
)

var untracedPaths = map[string]bool{
	"/api/v1/healthz": true,
	"/metrics":        true,
}

// tileParams maps route parameters to the span attributes used for tile loads.
var tileParams = map[string]string{
	"z": "tile.level",
	"x": "tile.x",
	"y": "tile.y",
}

// Tracer returns the tracer shared by the service's spans.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// GinMiddleware starts a server span per request. Tile coordinates in the
// route become integer attributes so request spans line up with tile.load
// spans.
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if untracedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		propagator := otel.GetTextMapPropagator()
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		attrs := []attribute.KeyValue{
			semconv.ServiceName(serviceName),
			semconv.HTTPRequestMethodKey.String(c.Request.Method),
			semconv.URLPath(c.Request.URL.Path),
			semconv.HTTPRoute(c.FullPath()),
			semconv.ClientAddress(c.ClientIP()),
		}
		if id := c.GetString("request_id"); id != "" {
			attrs = append(attrs, attribute.String("http.request_id", id))
		}
		for _, p := range c.Params {
			if key, ok := tileParams[p.Key]; ok {
				if v, err := strconv.Atoi(p.Value); err == nil {
					attrs = append(attrs, attribute.Int(key, v))
					continue
				}
			}
			attrs = append(attrs, attribute.String("terrain."+p.Key, p.Value))
		}

		// The provider may be installed after the router is built.
		ctx, span := Tracer().Start(ctx, c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		propagator.Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))

		switch {
		case status >= 500:
			span.SetStatus(codes.Error, c.Errors.String())
			if len(c.Errors) > 0 {
				span.RecordError(c.Errors.Last())
			}
		case status >= 400:
			span.SetStatus(codes.Unset, "")
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}
