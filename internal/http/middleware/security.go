// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, which attaches a conservative header
// set suited to a JSON API behind a reverse proxy. There is no CSP here: the
// API serves no HTML. HSTS is opt-in and only ever emitted on HTTPS requests.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures the headers emitted by SecurityHeaders.
//
// EnableHSTS must only be set when traffic is HTTPS end-to-end, including the
// proxy-to-app hop; the header is suppressed on plain-HTTP requests either
// way. HSTSMaxAge defaults to 180 days when unset.
//
// NoStore adds Cache-Control: no-store (plus the legacy Pragma/Expires pair)
// for deployments that must keep responses out of shared caches. Note the
// click list and leaderboard endpoints rely on ETag revalidation, which
// no-store disables for browser clients.
//
// EnablePolicy adds Permissions-Policy and
// X-Permitted-Cross-Domain-Policies; they only affect browsers and are
// harmless for other clients.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// SecurityHeaders returns a middleware that hardens every response.
//
// Always set:
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//
// X-Request-ID and ETag are appended to Access-Control-Expose-Headers so
// browser clients can read the correlation id and replay If-None-Match on
// the cached list endpoints; existing exposed names are preserved.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	hstsValue := "max-age=" + strconv.Itoa(hstsSeconds(opt.HSTSMaxAge)) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		exposeToBrowser(h, "X-Request-ID", "ETag")

		c.Next()
	}
}

// hstsSeconds converts the configured max-age to whole seconds, substituting
// the 180-day default for non-positive values.
func hstsSeconds(d time.Duration) int {
	if s := int(d.Seconds()); s > 0 {
		return s
	}
	return int((180 * 24 * time.Hour).Seconds())
}

// exposeToBrowser appends names to Access-Control-Expose-Headers without
// clobbering or duplicating entries set by earlier middleware (e.g. CORS).
func exposeToBrowser(h http.Header, names ...string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	for _, n := range names {
		switch {
		case cur == "":
			cur = n
		case !strings.Contains(cur, n):
			cur += ", " + n
		}
	}
	h.Set(hdr, cur)
}

// isHTTPS reports whether the request arrived over HTTPS, directly or via a
// proxy that set X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
