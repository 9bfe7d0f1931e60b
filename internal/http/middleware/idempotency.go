// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file carries the transport half of idempotent click submission.
// Clients may send an Idempotency-Key header on POST /clicks; the middleware
// validates the header's shape, stashes the key for the handler, and probes
// storage for a completed earlier attempt so a replay can skip the edge rate
// limiter. Serving the stored click stays with the handler: the probe here is
// keyed by header alone, while the authoritative check pairs the key with the
// user named in the request body, which middleware never parses.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey names the request header carrying the client's retry
// key. A client reuses one value for every retry of one logical click.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys written by IdempotencyValidator; read them through the
// accessors below, never directly.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// defaultIdemKeyMaxLen caps accepted key length when IdempotencyOptions
// leaves MaxLen unset.
const defaultIdemKeyMaxLen = 200

// idemKeyPattern is the default accepted key shape: URL-safe token
// characters, roomy enough for UUIDs, ULIDs, and prefixed compound keys.
var idemKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key stashed for this request. The
// boolean is false when the client sent no key (or validation rejected it).
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the storage probe saw a completed earlier attempt
// under this request's key. It is a hint: the click handler still re-checks
// the (user, key) pair before replaying a stored result.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation. TTL is not a transport
// concern; the lookup applies the expiry window.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts the accepted key shape; nil selects idemKeyPattern.
	Pattern *regexp.Regexp
}

// IdempotencyLookup answers whether a successful, unexpired result exists
// for key at the given time. Errors mean the probe itself failed and must
// not block the request; the handler's authoritative check still runs.
type IdempotencyLookup func(ctx context.Context, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header when present,
// stashes the accepted key, and marks replay plus rate-limiter bypass when
// lookup finds a completed earlier attempt.
//
// Requests without the header pass through untouched. A malformed key is the
// only case that aborts: 400 with the standard envelope, before any handler
// runs. The middleware never serves a payload itself.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemKeyMaxLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = idemKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			if exists, _ := lookup(c.Request.Context(), key, time.Now().UTC()); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
