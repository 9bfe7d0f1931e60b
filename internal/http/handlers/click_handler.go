// Click HTTP handlers.
//
// This file exposes REST endpoints for click resources:
//   - POST /clicks       (record a click for a user)
//   - GET  /clicks       (list recent clicks, ETag support)
//   - GET  /clicks/{id}  (fetch one)
//
// Handlers are transport-thin:
//   - validate and normalize inputs
//   - delegate to application services (ClickService)
//   - implement conditional responses (ETag) and idempotency semantics
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user name, key), the handler returns the recorded click
// and sets `Idempotency-Replayed: true` without writing a second click.
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-click-backend/internal/domain"
	"github.com/tbourn/go-click-backend/internal/http/middleware"
	"github.com/tbourn/go-click-backend/internal/repo"
	"github.com/tbourn/go-click-backend/internal/services"
	"github.com/tbourn/go-click-backend/internal/utils"
)

//
// DTOs
//

// RecordClickRequest is the JSON payload for recording a click.
//
// Timestamp carries the client-side click instant in milliseconds since the
// Unix epoch. The anti-cheat window is judged against the server clock, so a
// forged timestamp buys no extra clicks.
type RecordClickRequest struct {
	// UserName names the registered user the click belongs to.
	UserName string `json:"userName" binding:"required" example:"alice"`
	// Timestamp is the client click instant, milliseconds since epoch.
	Timestamp int64 `json:"timestamp" binding:"required" example:"1714563045123"`
}

//
// Helpers
//

// canonicalName mirrors the service-side name normalization (NFC, trimmed,
// inner whitespace collapsed) so idempotency lookups agree with the name the
// service stores clicks under.
func canonicalName(raw string) string {
	return strings.Join(strings.Fields(norm.NFC.String(raw)), " ")
}

// requestIdempotencyKey returns the retry key for this request, preferring
// the validated value stashed by the idempotency middleware and falling back
// to the raw header when the validator is not installed (direct handler
// tests).
func requestIdempotencyKey(c *gin.Context) (string, bool) {
	if k, okKey := middleware.GetIdempotencyKey(c); okKey {
		return k, true
	}
	if v := strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey)); v != "" {
		return v, true
	}
	return "", false
}

//
// Handlers
//

// RecordClick godoc
// @ID          recordClick
// @Summary     Record a click
// @Description Records one click for the named user, subject to the anti-cheat window.
// @Description Supports idempotency via the Idempotency-Key header (same key, same result).
// @Tags        Clicks
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.RecordClickRequest  true  "Click payload"
//
// @Success     200  {object}  domain.Click
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     429  {object}  handlers.ErrorResponse  "Too many clicks"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /clicks [post]
func (h *Handlers) RecordClick(c *gin.Context) {
	ctx := c.Request.Context()

	var req RecordClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "userName and timestamp required")
		return
	}

	name := canonicalName(req.UserName)

	// Idempotency (replay path): serve the stored click if this key already
	// succeeded for the same user.
	idemKey, _ := requestIdempotencyKey(c)
	if idemKey != "" {
		if svc, okSvc := h.clickSvc.(*services.ClickService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, name, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetClick(svc.DB, rec.ClickID); err2 == nil {
					middleware.CountClick(middleware.ClickReplayed)
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, prev)
					return
				}
			}
		}
	}

	click, err := h.clickSvc.Record(ctx, req.UserName, req.Timestamp)
	if err != nil {
		switch err {
		case services.ErrUserNotFound:
			middleware.CountClick(middleware.ClickUnknownUser)
			fail(c, http.StatusNotFound, ErrCodeNotFound, "User not found")
		case services.ErrTooManyClicks:
			middleware.CountClick(middleware.ClickBurstLimited)
			fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "Too many clicks! Slow down.")
		case services.ErrInvalidTimestamp:
			middleware.CountClick(middleware.ClickInvalid)
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "timestamp must be a positive epoch value in milliseconds")
		case services.ErrEmptyName:
			middleware.CountClick(middleware.ClickInvalid)
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "userName must not be empty")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeRecordFailed, err.Error())
		}
		return
	}

	// Idempotency (store path), best effort.
	if idemKey != "" {
		if svc, okSvc := h.clickSvc.(*services.ClickService); okSvc && svc.DB != nil {
			_, _ = repo.CreateIdempotency(ctx, svc.DB, click.UserName, idemKey, click.ID, http.StatusOK, h.idemTTL)
		}
	}

	middleware.CountClick(middleware.ClickRecorded)
	ok(c, http.StatusOK, click)
}

// ListClicks godoc
// @ID          listClicks
// @Summary     List clicks
// @Description Returns recorded clicks across all users, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Clicks
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"clicks:42:1714563045\")
// @Param       limit          query   int     false "Maximum rows to return"      minimum(0) default(100)
//
// @Success     200  {array}  domain.Click
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /clicks [get]
func (h *Handlers) ListClicks(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.clickSvc.(*services.ClickService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.ClicksStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"clicks:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	limit := utils.ParseLimit(c.Query("limit"))
	items, err := h.clickSvc.List(ctx, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Click{}
	}
	ok(c, http.StatusOK, items)
}

// GetClick godoc
// @ID          getClick
// @Summary     Fetch a click
// @Description Returns the click with the given id.
// @Tags        Clicks
// @Produce     json
//
// @Param       id  path  int  true  "Click ID"  minimum(1)
//
// @Success     200  {object}  domain.Click
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Click not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /clicks/{id} [get]
func (h *Handlers) GetClick(c *gin.Context) {
	id, okID := parseIDParam(c, "id")
	if !okID {
		return
	}

	click, err := h.clickSvc.Get(c.Request.Context(), id)
	if err != nil {
		if err == services.ErrClickNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "Click not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, click)
}
