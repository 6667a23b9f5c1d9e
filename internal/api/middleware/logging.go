package middleware

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	loggerpkg "gymmaster/pkg/logger"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "request_id"
	loggedBodyLimit     = 8 << 10
)

// RequestLogger writes one line per request. Health probes are logged at
// debug so liveness checks do not drown the access log.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		startedAt := time.Now()

		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Set(requestIDContextKey, requestID)
		c.Header(requestIDHeader, requestID)

		body := peekJSONBody(c)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Any("query", map[string][]string(c.Request.URL.Query())),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", status),
			zap.Int("size", c.Writer.Size()),
			zap.Duration("latency", time.Since(startedAt)),
		}
		if claims, ok := GetClaims(c); ok {
			fields = append(fields, zap.String("user_id", claims.UserID), zap.String("role", claims.Role))
		}
		if body != nil {
			fields = append(fields, zap.Any("request_body", body))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		fields = loggerpkg.SanitizeFields(fields)

		switch {
		case status >= 500:
			logger.Error("http request", fields...)
		case status >= 400:
			logger.Warn("http request", fields...)
		case strings.HasPrefix(c.Request.URL.Path, "/health"):
			logger.Debug("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	}
}

// RequestID returns the id assigned by RequestLogger, if any.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDContextKey)
}

// peekJSONBody decodes a small JSON request body for logging and restores the
// stream for the handler. Anything else is skipped.
func peekJSONBody(c *gin.Context) any {
	if c.Request == nil || c.Request.Body == nil {
		return nil
	}
	if !strings.Contains(c.GetHeader("Content-Type"), "application/json") {
		return nil
	}

	raw := bufferRequestBody(c)
	if len(raw) == 0 || len(raw) > loggedBodyLimit {
		return nil
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}
