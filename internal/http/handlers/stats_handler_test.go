package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-click-backend/internal/domain"
	"github.com/tbourn/go-click-backend/internal/services"
)

// ---------- test DB ----------

func newStatsHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:stats_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Click{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedRankedUser(t *testing.T, db *gorm.DB, name string, total int64) *domain.User {
	t.Helper()
	u := &domain.User{Name: name, TotalClicks: total}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}

// ---------- stubs ----------

type stubUserSvcStats struct{}

func (stubUserSvcStats) Register(ctx context.Context, name string) (*domain.User, bool, error) {
	return nil, false, nil
}

func (stubUserSvcStats) List(ctx context.Context) ([]domain.User, error) { return nil, nil }

func (stubUserSvcStats) Get(ctx context.Context, id uint) (*domain.User, error) { return nil, nil }

func (stubUserSvcStats) Rename(ctx context.Context, id uint, name string) (*domain.User, error) {
	return nil, nil
}

func (stubUserSvcStats) Delete(ctx context.Context, id uint) error { return nil }

type stubClickSvcStats struct{}

func (stubClickSvcStats) Record(ctx context.Context, userName string, epochMillis int64) (*domain.Click, error) {
	return nil, nil
}

func (stubClickSvcStats) List(ctx context.Context, limit int) ([]domain.Click, error) {
	return nil, nil
}

func (stubClickSvcStats) Get(ctx context.Context, id uint) (*domain.Click, error) { return nil, nil }

// Flexible stats service stub for error paths
type stubStatsSvcStats struct {
	leaderboard func(context.Context, int) ([]domain.User, error)
	stats       func(context.Context, string) (*services.UserStats, error)
}

func (s stubStatsSvcStats) Leaderboard(ctx context.Context, limit int) ([]domain.User, error) {
	if s.leaderboard != nil {
		return s.leaderboard(ctx, limit)
	}
	return nil, nil
}

func (s stubStatsSvcStats) Stats(ctx context.Context, name string) (*services.UserStats, error) {
	if s.stats != nil {
		return s.stats(ctx, name)
	}
	return nil, nil
}

// newStatsHandlers builds Handlers over a real StatsService backed by db.
func newStatsHandlers(db *gorm.DB, svc *services.StatsService) *Handlers {
	if svc == nil {
		svc = &services.StatsService{DB: db}
	}
	return New(stubUserSvcStats{}, stubClickSvcStats{}, svc, 0)
}

// ---------- Leaderboard ----------

func TestLeaderboard_Order_Shape_Limit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newStatsHandlerDB(t)
	seedRankedUser(t, db, "alice", 2)
	seedRankedUser(t, db, "bob", 5)
	seedRankedUser(t, db, "carol", 5)
	seedRankedUser(t, db, "dave", 9)
	h := newStatsHandlers(db, nil)
	r := gin.New()
	r.GET("/leaderboard", h.Leaderboard)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("leaderboard -> %d body=%s", w.Code, w.Body.String())
	}

	// entries expose only name and total_clicks
	raw := w.Body.String()
	if !strings.Contains(raw, `"total_clicks"`) || strings.Contains(raw, `"id"`) {
		t.Fatalf("unexpected entry shape: %s", raw)
	}

	var board []LeaderboardEntry
	if err := json.Unmarshal(w.Body.Bytes(), &board); err != nil {
		t.Fatalf("json: %v", err)
	}
	wantOrder := []string{"dave", "bob", "carol", "alice"}
	if len(board) != len(wantOrder) {
		t.Fatalf("board size = %d", len(board))
	}
	for i, name := range wantOrder {
		if board[i].Name != name {
			t.Fatalf("board[%d] = %s, want %s (%#v)", i, board[i].Name, name, board)
		}
	}
	if board[0].TotalClicks != 9 {
		t.Fatalf("top total = %d", board[0].TotalClicks)
	}

	// limit trims from the top
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=2", nil))
	var limited []LeaderboardEntry
	if err := json.Unmarshal(w.Body.Bytes(), &limited); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(limited) != 2 || limited[0].Name != "dave" || limited[1].Name != "bob" {
		t.Fatalf("limit=2 -> %#v", limited)
	}

	// limit=0 yields an empty board
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=0", nil))
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Fatalf("limit=0 body = %s", got)
	}
}

func TestLeaderboard_ETag_Error(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// empty DB: [] with the zero ETag, and a match returns 304
	{
		db := newStatsHandlerDB(t)
		h := newStatsHandlers(db, nil)
		r := gin.New()
		r.GET("/leaderboard", h.Leaderboard)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("empty board -> %d", w.Code)
		}
		if got := strings.TrimSpace(w.Body.String()); got != "[]" {
			t.Fatalf("empty board body = %s", got)
		}
		etag := w.Header().Get("ETag")
		if etag != `W/"leaderboard:0:0"` {
			t.Fatalf("empty etag = %s", etag)
		}

		w = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
		req.Header.Set("If-None-Match", etag)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotModified {
			t.Fatalf("matching etag -> %d", w.Code)
		}
	}

	// registering a user invalidates the previous ETag
	{
		db := newStatsHandlerDB(t)
		seedRankedUser(t, db, "alice", 1)
		h := newStatsHandlers(db, nil)
		r := gin.New()
		r.GET("/leaderboard", h.Leaderboard)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))
		before := w.Header().Get("ETag")
		if before == "" {
			t.Fatalf("no etag on seeded board")
		}

		seedRankedUser(t, db, "bob", 4)

		w = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
		req.Header.Set("If-None-Match", before)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("stale etag -> %d", w.Code)
		}
		if after := w.Header().Get("ETag"); after == before {
			t.Fatalf("etag unchanged after registration: %s", after)
		}
	}

	// service failure -> 500, stub path sets no ETag
	{
		errSvc := stubStatsSvcStats{
			leaderboard: func(context.Context, int) ([]domain.User, error) { return nil, errors.New("boom") },
		}
		h := New(stubUserSvcStats{}, stubClickSvcStats{}, errSvc, 0)
		r := gin.New()
		r.GET("/leaderboard", h.Leaderboard)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("board error -> %d", w.Code)
		}
		if got := w.Header().Get("ETag"); got != "" {
			t.Fatalf("stub path set etag: %s", got)
		}
	}
}

// ---------- UserStats ----------

func TestUserStats_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newStatsHandlerDB(t)
	seedRankedUser(t, db, "alice", 3)
	seedRankedUser(t, db, "bob", 5)

	now := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	for _, ts := range []time.Time{
		time.Date(2024, 4, 30, 23, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 14, 59, 0, 0, time.UTC),
	} {
		if err := db.Create(&domain.Click{UserName: "alice", Timestamp: ts}).Error; err != nil {
			t.Fatalf("seed click: %v", err)
		}
	}

	svc := &services.StatsService{DB: db, Now: func() time.Time { return now }}
	h := newStatsHandlers(db, svc)
	r := gin.New()
	r.GET("/stats/:userName", h.UserStats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats/alice", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stats -> %d body=%s", w.Code, w.Body.String())
	}

	var out UserStatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Name != "alice" || out.TotalClicks != 3 {
		t.Fatalf("unexpected identity: %#v", out)
	}
	if out.Rank != 2 {
		t.Fatalf("rank = %d, want 2", out.Rank)
	}
	if out.TodayClicks != 2 {
		t.Fatalf("today = %d, want 2", out.TodayClicks)
	}
	if out.CreatedAt.IsZero() {
		t.Fatalf("created_at missing: %s", w.Body.String())
	}

	// padded path segments resolve to the same user
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats/%20alice%20", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("padded name -> %d body=%s", w.Code, w.Body.String())
	}
}

func TestUserStats_NotFound_Error(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// unknown user -> 404
	{
		db := newStatsHandlerDB(t)
		h := newStatsHandlers(db, nil)
		r := gin.New()
		r.GET("/stats/:userName", h.UserStats)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats/ghost", nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("unknown -> %d", w.Code)
		}
		var er ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
			t.Fatalf("json: %v", err)
		}
		if er.Code != ErrCodeNotFound || er.Message != "User not found" {
			t.Fatalf("unexpected 404 body: %+v", er)
		}
	}

	// service failure -> 500
	{
		errSvc := stubStatsSvcStats{
			stats: func(context.Context, string) (*services.UserStats, error) { return nil, errors.New("boom") },
		}
		h := New(stubUserSvcStats{}, stubClickSvcStats{}, errSvc, 0)
		r := gin.New()
		r.GET("/stats/:userName", h.UserStats)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats/alice", nil))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("stats error -> %d", w.Code)
		}
	}
}
