// User HTTP handlers.
//
// This file exposes REST endpoints for user resources:
//   - POST   /users       (register, idempotent on existing name)
//   - GET    /users       (list all)
//   - GET    /users/{id}  (fetch one)
//   - PUT    /users/{id}  (rename)
//   - DELETE /users/{id}  (remove)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-click-backend/internal/domain"
	"github.com/tbourn/go-click-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// UserService defines user lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type UserService interface {
	// Register returns the user holding name, creating it when absent.
	// The bool reports whether a new row was created.
	Register(ctx context.Context, name string) (*domain.User, bool, error)
	// List returns every registered user in registration order.
	List(ctx context.Context) ([]domain.User, error)
	// Get fetches a user by numeric id.
	Get(ctx context.Context, id uint) (*domain.User, error)
	// Rename changes a user's display name and returns the updated row.
	Rename(ctx context.Context, id uint, name string) (*domain.User, error)
	// Delete removes a user by id. Recorded clicks are kept.
	Delete(ctx context.Context, id uint) error
}

// ClickService defines click recording and retrieval operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ClickService interface {
	// Record stores one click for the named user after the anti-cheat check.
	Record(ctx context.Context, userName string, epochMillis int64) (*domain.Click, error)
	// List returns recorded clicks, newest first, bounded by limit.
	List(ctx context.Context, limit int) ([]domain.Click, error)
	// Get fetches a click by numeric id.
	Get(ctx context.Context, id uint) (*domain.Click, error)
}

// StatsService defines the read-side leaderboard and statistics operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type StatsService interface {
	// Leaderboard returns the top users by total clicks, bounded by limit.
	Leaderboard(ctx context.Context, limit int) ([]domain.User, error)
	// Stats returns one user's standing (rank, today's clicks).
	Stats(ctx context.Context, name string) (*services.UserStats, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for users, clicks, and statistics.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	userSvc  UserService
	clickSvc ClickService
	statsSvc StatsService

	// idemTTL bounds how long a stored Idempotency-Key replay stays valid.
	idemTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
// A non-positive idemTTL selects the 24h default.
func New(userSvc UserService, clickSvc ClickService, statsSvc StatsService, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{userSvc: userSvc, clickSvc: clickSvc, statsSvc: statsSvc, idemTTL: idemTTL}
}

//
// DTOs
//

// CreateUserRequest is the JSON payload for registering a user.
type CreateUserRequest struct {
	// Name is the display name to register (1-64 characters).
	Name string `json:"name" binding:"required,min=1,max=64" example:"alice"`
}

// UpdateUserRequest is the JSON payload for renaming a user.
type UpdateUserRequest struct {
	// Name is the new display name (1-64 characters).
	Name string `json:"name" binding:"required,min=1,max=64" example:"alice_swift"`
}

// DeleteUserResponse confirms a completed deletion.
type DeleteUserResponse struct {
	Message string `json:"message" example:"User deleted successfully"`
}

//
// Helpers
//

// parseIDParam parses the named numeric path parameter. On a malformed value
// it writes a 400 response and reports false.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

//
// Handlers
//

// CreateUser godoc
// @ID          createUser
// @Summary     Register a user
// @Description Registers a display name and returns the user resource.
// @Description Registering an existing name returns the existing user unchanged.
// @Tags        Users
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateUserRequest  true  "Registration payload"
//
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users [post]
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required (1-64 chars)")
		return
	}

	// Existing and fresh registrations answer alike; the caller cannot tell
	// which path was taken, which keeps retries harmless.
	u, _, err := h.userSvc.Register(c.Request.Context(), req.Name)
	if err != nil {
		switch err {
		case services.ErrEmptyName:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name must not be empty")
		case services.ErrNameTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name too long (max 64 characters)")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, u)
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List users
// @Description Returns every registered user in registration order.
// @Tags        Users
// @Produce     json
//
// @Success     200  {array}   domain.User
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.userSvc.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	ok(c, http.StatusOK, users)
}

// GetUser godoc
// @ID          getUser
// @Summary     Fetch a user
// @Description Returns the user with the given id.
// @Tags        Users
// @Produce     json
//
// @Param       id  path  int  true  "User ID"  minimum(1)
//
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	id, okID := parseIDParam(c, "id")
	if !okID {
		return
	}

	u, err := h.userSvc.Get(c.Request.Context(), id)
	if err != nil {
		if err == services.ErrUserNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateUser godoc
// @ID          updateUser
// @Summary     Rename a user
// @Description Updates the display name of an existing user.
// @Tags        Users
// @Accept      json
// @Produce     json
//
// @Param       id    path  int                          true  "User ID"  minimum(1)
// @Param       body  body  handlers.UpdateUserRequest   true  "New name"
//
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Name already taken"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id} [put]
func (h *Handlers) UpdateUser(c *gin.Context) {
	id, okID := parseIDParam(c, "id")
	if !okID {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required (1-64 chars)")
		return
	}

	u, err := h.userSvc.Rename(c.Request.Context(), id, req.Name)
	if err != nil {
		switch err {
		case services.ErrUserNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "User not found")
		case services.ErrNameTaken:
			fail(c, http.StatusConflict, ErrCodeConflict, "name already taken")
		case services.ErrEmptyName:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name must not be empty")
		case services.ErrNameTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name too long (max 64 characters)")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, u)
}

// DeleteUser godoc
// @ID          deleteUser
// @Summary     Delete a user
// @Description Removes the user with the given id. Recorded clicks are kept.
// @Tags        Users
// @Produce     json
//
// @Param       id  path  int  true  "User ID"  minimum(1)
//
// @Success     200  {object}  handlers.DeleteUserResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id} [delete]
func (h *Handlers) DeleteUser(c *gin.Context) {
	id, okID := parseIDParam(c, "id")
	if !okID {
		return
	}

	if err := h.userSvc.Delete(c.Request.Context(), id); err != nil {
		if err == services.ErrUserNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, DeleteUserResponse{Message: "User deleted successfully"})
}
