package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedactingLogger_InfoAndRedactions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	buf := captureLogOutput(t)

	// Simulate upstream RequestID middleware setting the response header.
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-resp")
		c.Next()
	})
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))

	// Parameterized route so the log path is the route pattern.
	r.GET("/users/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// Query and headers carrying values the scrubber must catch. The raw
	// query is scrubbed by regex, not parsed.
	q := "email=a.b+tag@example.com&phone=+1-555-123-4567&id=123e4567-e89b-12d3-a456-426614174000"
	req := httptest.NewRequest(http.MethodGet, "/users/123?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=topsecret")
	req.Header.Set("X-Api-Key", "shhh")
	// Pattern-scrubbed, not fully masked
	req.Header.Set("X-Custom", "email a@b.com id=123e4567-e89b-12d3-a456-426614174000 phone 555-123-4567")
	// Response header must win over the request header for request_id
	req.Header.Set("X-Request-ID", "rid-req")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	logs := buf.String()
	if !strings.Contains(logs, `"level":"info"`) {
		t.Fatalf("expected info log, got: %s", logs)
	}
	if !strings.Contains(logs, `"path":"/users/:id"`) {
		t.Fatalf("expected route pattern path, got: %s", logs)
	}
	if !strings.Contains(logs, `"request_id":"rid-resp"`) {
		t.Fatalf("expected request_id from response header, got: %s", logs)
	}
	if !strings.Contains(logs, `[REDACTED:email]`) || !strings.Contains(logs, `[REDACTED:phone]`) || !strings.Contains(logs, `[REDACTED:id]`) {
		t.Fatalf("expected query redactions, got: %s", logs)
	}
	for _, hdr := range []string{"Authorization", "Cookie", "X-Api-Key"} {
		if !strings.Contains(logs, `"`+hdr+`":"[REDACTED]"`) {
			t.Fatalf("%s must be masked: %s", hdr, logs)
		}
	}
	if !strings.Contains(logs, `"X-Custom":"email [REDACTED:email] id=[REDACTED:id] phone [REDACTED:phone]"`) {
		t.Fatalf("expected scrubbed X-Custom header, got: %s", logs)
	}
	// No Idempotency-Key on this request
	if !strings.Contains(logs, `"has_idempotency_key":false`) {
		t.Fatalf("expected has_idempotency_key=false, got: %s", logs)
	}
}

func TestRedactingLogger_WarnAndErrorLevels_RequestIDFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	buf := captureLogOutput(t)

	// No upstream middleware sets the response header this time; the logger
	// must fall back to the request header.
	r.Use(RedactingLogger(RedactOptions{}))

	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/error", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	reqWarn := httptest.NewRequest(http.MethodGet, "/warn", nil)
	reqWarn.Header.Set("X-Request-ID", "rid-warn")
	r.ServeHTTP(httptest.NewRecorder(), reqWarn)

	reqErr := httptest.NewRequest(http.MethodGet, "/error", nil)
	reqErr.Header.Set("X-Request-ID", "rid-err")
	r.ServeHTTP(httptest.NewRecorder(), reqErr)

	logs := buf.String()
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"request_id":"rid-warn"`) {
		t.Fatalf("warn log missing or lacking request_id fallback: %s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) || !strings.Contains(logs, `"request_id":"rid-err"`) {
		t.Fatalf("error log missing or lacking request_id fallback: %s", logs)
	}
}

func TestRedactingLogger_StatsRoute_UserNameAndIdempotencyFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	buf := captureLogOutput(t)

	r.Use(RequestID())
	r.Use(RedactingLogger(RedactOptions{}))

	r.GET("/stats/:userName", func(c *gin.Context) {
		// The request-scoped logger already carries the path parameter.
		LoggerFrom(c).Info().Msg("stats served")
		c.Status(http.StatusOK)
	})
	r.POST("/clicks", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Stats request: both the handler line and the access line carry user_name.
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stats/alice", nil))

	// Keyed click request: the access line flags the idempotency key.
	keyed := httptest.NewRequest(http.MethodPost, "/clicks", nil)
	keyed.Header.Set(HeaderIdempotencyKey, "retry-1")
	r.ServeHTTP(httptest.NewRecorder(), keyed)

	logs := buf.String()
	if !strings.Contains(logs, `"user_name":"alice"`) {
		t.Fatalf("expected user_name field on stats logs, got: %s", logs)
	}
	if !strings.Contains(logs, `"message":"stats served"`) {
		t.Fatalf("expected handler line via request-scoped logger, got: %s", logs)
	}
	if !strings.Contains(logs, `"has_idempotency_key":true`) {
		t.Fatalf("expected has_idempotency_key=true for keyed POST, got: %s", logs)
	}
}

func Test_scrub_OrderAndNoFalsePositives(t *testing.T) {
	if scrub("") != "" {
		t.Fatalf("scrub of empty string must stay empty")
	}
	// A UUID must be replaced as one id, not partially eaten by the phone
	// pattern.
	in := "key=123e4567-e89b-12d3-a456-426614174000"
	if got := scrub(in); got != "key=[REDACTED:id]" {
		t.Fatalf("scrub(%q) = %q", in, got)
	}
	// Plain words survive.
	if got := scrub("name=alice&limit=10"); got != "name=alice&limit=10" {
		t.Fatalf("scrub over-matched: %q", got)
	}
}
