// Package services – StatsService
//
// This file implements StatsService, which answers the read-side questions
// of the click challenge: who leads the board, and how one user is doing.
// Rank follows competition ranking (ties share a rank) and "today" is the
// current UTC calendar day.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-click-backend/internal/domain"
	"github.com/tbourn/go-click-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultLeaderboardLimit is the leaderboard size when the caller does not
// ask for one.
const DefaultLeaderboardLimit = 10

// UserStats aggregates one user's standing: the persisted row, the
// competition rank, and the number of clicks since UTC midnight.
type UserStats struct {
	User        *domain.User
	Rank        int64
	TodayClicks int64
}

// StatsService serves the leaderboard and per-user statistics.
type StatsService struct {
	DB *gorm.DB

	// Now supplies the server clock for the "today" boundary; tests may
	// override it.
	Now func() time.Time
}

// Leaderboard returns up to limit users ordered by total clicks descending,
// ties in stable id order. A negative limit selects DefaultLeaderboardLimit;
// a zero limit returns an empty slice.
func (s *StatsService) Leaderboard(ctx context.Context, limit int) ([]domain.User, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "Leaderboard",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	if limit < 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit == 0 {
		return []domain.User{}, nil
	}
	return repo.ListTopUsers(ctx, s.DB, limit)
}

// Stats returns the standing of the named user: stored totals, competition
// rank (one plus the number of users with strictly more clicks), and the
// clicks recorded since UTC midnight. Returns ErrUserNotFound when no user
// holds the name.
func (s *StatsService) Stats(ctx context.Context, name string) (*UserStats, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "Stats",
		trace.WithAttributes(attribute.String("user.name", name)),
	)
	defer span.End()

	name = normalizeName(name)

	u, err := repo.GetUserByName(ctx, s.DB, name)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	above, err := repo.CountUsersAbove(ctx, s.DB, u.TotalClicks)
	if err != nil {
		return nil, err
	}

	today, err := repo.CountUserClicksSince(ctx, s.DB, u.Name, s.todayStart())
	if err != nil {
		return nil, err
	}

	return &UserStats{User: u, Rank: above + 1, TodayClicks: today}, nil
}

// todayStart returns the current UTC midnight.
func (s *StatsService) todayStart() time.Time {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
