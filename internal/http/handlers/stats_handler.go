// Leaderboard and statistics HTTP handlers.
//
// This file exposes the read-side endpoints of the click challenge:
//   - GET /leaderboard       (top users by total clicks, ETag support)
//   - GET /stats/{userName}  (one user's rank and daily progress)
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-click-backend/internal/repo"
	"github.com/tbourn/go-click-backend/internal/services"
	"github.com/tbourn/go-click-backend/internal/utils"
)

//
// DTOs
//

// LeaderboardEntry is one row of the leaderboard.
type LeaderboardEntry struct {
	Name        string `json:"name" example:"alice"`
	TotalClicks int64  `json:"total_clicks" example:"128"`
}

// UserStatsResponse reports one user's standing in the challenge.
type UserStatsResponse struct {
	Name        string    `json:"name" example:"alice"`
	TotalClicks int64     `json:"total_clicks" example:"128"`
	Rank        int64     `json:"rank" example:"3"`
	TodayClicks int64     `json:"today_clicks" example:"17"`
	CreatedAt   time.Time `json:"created_at"`
}

//
// Handlers
//

// Leaderboard godoc
// @ID          leaderboard
// @Summary     Leaderboard
// @Description Returns the top users ordered by total clicks descending. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Stats
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"leaderboard:4:1714563045\")
// @Param       limit          query   int     false "Maximum rows to return"      minimum(0) default(10)
//
// @Success     200  {array}  handlers.LeaderboardEntry
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /leaderboard [get]
func (h *Handlers) Leaderboard(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort). Renames and counter bumps both touch
	// updated_at, so (count, max updated_at) changes whenever the board can.
	var db *gorm.DB
	if svc, okSvc := h.statsSvc.(*services.StatsService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxUpd, err := repo.UsersStats(ctx, db)
		if err == nil {
			var ts int64
			if maxUpd != nil {
				ts = maxUpd.Unix()
			}
			etag := fmt.Sprintf(`W/"leaderboard:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	limit := utils.ParseLimit(c.Query("limit"))
	users, err := h.statsSvc.Leaderboard(ctx, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	board := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		board = append(board, LeaderboardEntry{Name: u.Name, TotalClicks: u.TotalClicks})
	}
	ok(c, http.StatusOK, board)
}

// UserStats godoc
// @ID          userStats
// @Summary     User statistics
// @Description Returns total clicks, competition rank, clicks since UTC midnight, and registration time for one user.
// @Tags        Stats
// @Produce     json
//
// @Param       userName  path  string  true  "User display name"  example(alice)
//
// @Success     200  {object}  handlers.UserStatsResponse
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats/{userName} [get]
func (h *Handlers) UserStats(c *gin.Context) {
	st, err := h.statsSvc.Stats(c.Request.Context(), c.Param("userName"))
	if err != nil {
		if err == services.ErrUserNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, UserStatsResponse{
		Name:        st.User.Name,
		TotalClicks: st.User.TotalClicks,
		Rank:        st.Rank,
		TodayClicks: st.TodayClicks,
		CreatedAt:   st.User.CreatedAt,
	})
}
