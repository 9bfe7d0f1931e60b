// Package handlers implements the HTTP endpoints of the click API.
//
// Responses come in two shapes. Failures always serialize ErrorResponse, so
// clients can switch on the stable code without parsing prose:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "User not found"
//	}
//
// Successes write the endpoint's DTO directly:
//
//	HTTP/1.1 200 OK
//	{ "id": 1, "name": "alice", "total_clicks": 42 }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-click-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope every endpoint returns on failure.
//
// RequestID echoes the X-Request-ID response header so a client-side report
// can be matched to server logs. Code is one of the constants in errors.go
// and is the field clients should branch on. Message is safe to show to end
// users.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"not_found"`
	Message   string `json:"message" example:"User not found"`
}

// fail aborts the request with status and the standard envelope.
//
// Server-side failures (>= 500) are additionally logged through the
// request-scoped logger, which already carries the request id and route, so
// the access line and the error line correlate.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail exposes fail to other packages; the router uses it for the NoRoute
// and NoMethod fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with status.
func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }
