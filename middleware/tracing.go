package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware provides OpenTelemetry tracing for Gin
func TracingMiddleware() gin.HandlerFunc {
	return otelgin.Middleware("document-qa-platform")
}

// EnrichTrace enriches traces with custom attributes
func EnrichTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())

		if userID := GetUserID(c); userID != "" {
			span.SetAttributes(attribute.String("user.id", userID))
		}
		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request.id", requestID))
		}

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.url", c.Request.URL.String()),
			attribute.String("http.client_ip", c.ClientIP()),
		)

		c.Next()

		span.SetAttributes(
			attribute.Int("http.response.status_code", c.Writer.Status()),
			attribute.Int("http.response.size", c.Writer.Size()),
		)
	}
}
