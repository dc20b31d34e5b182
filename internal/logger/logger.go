package logger

import (
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CorrelationIDHeader carries the request correlation identifier.
const CorrelationIDHeader = "X-Correlation-ID"

const correlationContextKey = "securedriveCorrelationID"

// Init builds the process-wide zap logger, honoring LOG_LEVEL.
func Init() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if level != "" {
		var parsed zapcore.Level
		if err := parsed.Set(level); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	return cfg.Build()
}

// Middleware assigns a correlation ID to each request, reusing the inbound
// header value when the caller supplied one.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationContextKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Next()
	}
}

// CorrelationID extracts the request's correlation identifier, if present.
func CorrelationID(c *gin.Context) string {
	value, ok := c.Get(correlationContextKey)
	if !ok {
		return ""
	}
	id, _ := value.(string)
	return id
}

// RequestLogger emits one structured line per completed request.
func RequestLogger(logg *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logg.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("correlation_id", CorrelationID(c)),
		)
	}
}
