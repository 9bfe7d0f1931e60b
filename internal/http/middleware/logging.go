// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file owns request correlation and panic safety:
//
//   - RequestID() guarantees every request carries an X-Request-ID. A
//     client-supplied value is reused, so retried click submissions keep one
//     correlation id across attempts.
//   - Recovery() converts panics into a JSON 500 envelope that still carries
//     the correlation id, and logs the stack trace.
//   - LoggerFrom() hands the request-scoped zerolog logger to handlers and
//     services; RedactingLogger (redact_logger.go) attaches it.
//
// Install RequestID before the access logger and Recovery after it, so both
// the access line and any panic record carry the correlation id.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key holding the correlation id.
	requestIDKey = "requestID"
	// requestIDHeader propagates the correlation id to clients and proxies.
	requestIDHeader = "X-Request-ID"
	// loggerKey is the Gin context key for the request-scoped logger.
	loggerKey = "logger"
	// maxQueryLogLength caps how many bytes of a query string reach the logs.
	maxQueryLogLength = 2048
)

// RequestID reuses the client-supplied X-Request-ID or mints a UUIDv4, then
// mirrors the id on the response header and stashes it in the Gin context
// under "requestID". Header lookup is case-insensitive.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Recovery intercepts panics, logs the stack with the correlation id, and
// answers with the standard JSON error envelope:
//
//	{ "request_id": "...", "code": "internal_error", "message": "internal server error" }
//
// When part of a response has already been written the body cannot be
// replaced, so only the 500 status is forced.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", asString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header("Content-Type", "application/json")
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog logger attached by the access
// logger, or a plain logger when none is attached. The result is never nil,
// so callers can chain without checks:
//
//	middleware.LoggerFrom(c).Warn().Str("user_name", name).Msg("burst limited")
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// routePath prefers the matched route pattern (e.g. /api/users/:id), which
// keeps log and metric cardinality bounded, and falls back to the raw URL
// path for unmatched requests.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// asString narrows a context value to string, yielding "" for other types.
func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate clips s to max bytes and marks the cut with an ellipsis.
// A max <= 0 disables clipping. Byte-level clipping is fine for log fields.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
