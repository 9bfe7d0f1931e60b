// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger of the API. Every
// request produces one structured JSON line with sensitive values scrubbed,
// and the middleware attaches a request-scoped logger (see LoggerFrom) so
// handlers and services can emit enriched lines tied to the same request.
//
// Scrubbing rules:
//   - Request and response bodies are never logged.
//   - Header values and the query string pass through pattern redaction for
//     emails, phone numbers, and UUID-like identifiers.
//   - Authorization, Cookie, and Set-Cookie are always fully masked; extra
//     headers can be masked via RedactOptions.MaskHeaders.
//
// Scrubbing reduces but does not eliminate leak risk: clients should still
// keep personal data out of query strings and headers.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Pattern redaction, applied to query strings and unmasked header values.
// UUIDs must be replaced before phone numbers: the phone pattern would
// otherwise match the digit/hyphen segments inside a UUID.
var (
	uuidPattern  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// scrub substitutes recognizable identifiers in s with typed placeholders.
func scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidPattern.ReplaceAllString(s, "[REDACTED:id]")
	s = emailPattern.ReplaceAllString(s, "[REDACTED:email]")
	s = phonePattern.ReplaceAllString(s, "[REDACTED:phone]")
	return s
}

// RedactOptions configures additional masking for RedactingLogger.
//
// MaskHeaders lists extra header names whose values are replaced wholesale
// with "[REDACTED]". Names are matched case-insensitively and merged with the
// built-in set (Authorization, Cookie, Set-Cookie).
type RedactOptions struct {
	MaskHeaders []string
}

// RedactingLogger returns the access-log middleware.
//
// Per request it:
//   - attaches a request-scoped logger carrying request_id, method, path,
//     remote_ip, and (on /stats routes) the user_name path parameter;
//   - after the handler chain, emits one "http_request" line with status,
//     bytes written, latency, the scrubbed query string, scrubbed headers,
//     and whether an Idempotency-Key accompanied the request.
//
// Severity follows the response: info below 400, warn for 4xx, error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := routePath(c)

		// Request-scoped logger for handlers and services.
		rid, _ := c.Get(requestIDKey)
		lgCtx := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP())
		if name := c.Param("userName"); name != "" {
			lgCtx = lgCtx.Str("user_name", name)
		}
		lg := lgCtx.Logger()
		c.Set(loggerKey, &lg)

		safeQuery := truncate(scrub(c.Request.URL.RawQuery), maxQueryLogLength)
		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, hide := masked[strings.ToLower(k)]; hide {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = scrub(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		ev = ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Bool("has_idempotency_key", c.GetHeader(HeaderIdempotencyKey) != "").
			Interface("headers", safeHeaders)
		if IsReplay(c) {
			ev = ev.Bool("idempotency_replay", true)
		}
		if name := c.Param("userName"); name != "" {
			ev = ev.Str("user_name", name)
		}
		ev.Msg("http_request")
	}
}
