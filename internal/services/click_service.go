// Package services – ClickService
//
// This file implements ClickService, the application-level component that
// owns click recording and retrieval. Recording verifies the clicking user,
// enforces the anti-cheat burst window, and persists the click together with
// the owner's counter update in a single transaction so the stored total
// never drifts from the clicks table.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the user name and list parameters where applicable.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-click-backend/internal/domain"
	"github.com/tbourn/go-click-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultClicksLimit is the clicks list page size when the caller does
	// not ask for one.
	DefaultClicksLimit = 100

	// Anti-cheat defaults: the defaultBurstCount most recent clicks must
	// span at least defaultBurstWindow of wall-clock time.
	defaultBurstWindow = 500 * time.Millisecond
	defaultBurstCount  = 5
)

// ClickService coordinates click persistence and the anti-cheat guard.
type ClickService struct {
	DB *gorm.DB

	// BurstWindow and BurstCount tune the anti-cheat guard: a click is
	// rejected while the user's BurstCount most recent clicks all fall
	// within BurstWindow of the server clock. Zero values select the
	// defaults (5 clicks / 500ms).
	BurstWindow time.Duration
	BurstCount  int

	// Now supplies the server-side clock; tests may override it.
	Now func() time.Time
}

// Record verifies the user, applies the anti-cheat window, and persists the
// click while bumping the user's stored counter. The click timestamp is
// taken from the client-reported epoch milliseconds; the anti-cheat decision
// uses the server clock.
//
// The existence check, burst read, insert, and counter update run inside one
// transaction, so concurrent submissions cannot slip past the guard or leave
// the counter out of sync with the clicks table.
//
// Errors:
//   - ErrInvalidTimestamp when the epoch value is not positive.
//   - ErrUserNotFound when no user holds the given name.
//   - ErrTooManyClicks when the burst window rejects the click.
//   - The underlying DB error for unexpected failures.
func (s *ClickService) Record(ctx context.Context, userName string, epochMillis int64) (*domain.Click, error) {
	tr := otel.Tracer("services/ClickService")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(attribute.String("user.name", userName)),
	)
	defer span.End()

	if epochMillis <= 0 {
		return nil, ErrInvalidTimestamp
	}
	userName = normalizeName(userName)

	ts := time.UnixMilli(epochMillis).UTC()
	now := s.now()

	var created *domain.Click
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) Clicks only count for registered users.
		if _, err := repo.GetUserByName(ctx, tx, userName); err != nil {
			if isNotFound(err) {
				return ErrUserNotFound
			}
			return err
		}

		// 2) Anti-cheat: once burstCount clicks exist, the oldest of the
		// most recent burstCount must already be burstWindow old.
		recent, err := repo.ListRecentClicks(tx, userName, s.burstCount())
		if err != nil {
			return err
		}
		if len(recent) == s.burstCount() {
			if now.Sub(recent[len(recent)-1].Timestamp) < s.burstWindow() {
				return ErrTooManyClicks
			}
		}

		// 3) Persist the click and the counter update together.
		c, err := repo.CreateClick(tx, userName, ts)
		if err != nil {
			return err
		}
		if err := repo.IncrementUserClicks(ctx, tx, userName); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// List returns recorded clicks across all users, newest first. A negative
// limit selects DefaultClicksLimit; a zero limit returns an empty slice.
func (s *ClickService) List(ctx context.Context, limit int) ([]domain.Click, error) {
	tr := otel.Tracer("services/ClickService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	if limit < 0 {
		limit = DefaultClicksLimit
	}
	if limit == 0 {
		return []domain.Click{}, nil
	}
	return repo.ListClicks(s.DB.WithContext(ctx), limit)
}

// Get fetches a single click by id, returning ErrClickNotFound when absent.
func (s *ClickService) Get(ctx context.Context, id uint) (*domain.Click, error) {
	c, err := repo.GetClick(s.DB.WithContext(ctx), id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrClickNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ClickService) burstWindow() time.Duration {
	if s.BurstWindow > 0 {
		return s.BurstWindow
	}
	return defaultBurstWindow
}

func (s *ClickService) burstCount() int {
	if s.BurstCount > 0 {
		return s.BurstCount
	}
	return defaultBurstCount
}

func (s *ClickService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// isNotFound matches both the repo alias and GORM's own sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
