// Package repo implements the persistence layer over GORM. This file holds
// the aggregate queries: change tokens for ETag generation and the counts
// behind the per-user statistics endpoint.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-click-backend/internal/domain"
)

// UsersStats returns aggregate metadata for the users table: the total
// number of rows and the maximum UpdatedAt timestamp among those rows.
//
// Registrations, renames, deletions and counter increments all move at
// least one of the two values, so the pair works as a change token for the
// user list and the leaderboard. When nobody has registered, the returned
// count is 0 and maxUpdatedAt is nil.
//
// Return values:
//   - count:        total users
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func UsersStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.User{})

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// ClicksStats returns aggregate metadata for the clicks table: the total
// number of rows and the maximum Timestamp among those rows.
//
// Clicks are append-only, so the count moves on every recorded click; the
// timestamp adds entropy for weak ETags. When no clicks exist, the returned
// count is 0 and maxTimestamp is nil.
//
// Return values:
//   - count:        total clicks
//   - maxTimestamp: pointer to the greatest Timestamp, or nil if no rows
//   - err:          database error, if any
func ClicksStats(ctx context.Context, db *gorm.DB) (count int64, maxTimestamp *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Click{})

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest timestamp (avoid MAX() -> TEXT in SQLite)
	var row struct {
		Timestamp time.Time
	}
	if err = q.Select("timestamp").Order("timestamp DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.Timestamp, nil
}

// CountUsersAbove returns how many users hold strictly more clicks than
// total. Competition rank is that count plus one.
func CountUsersAbove(ctx context.Context, db *gorm.DB, total int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("total_clicks > ?", total).
		Count(&n).Error
	return n, err
}

// CountUserClicksSince returns the number of clicks recorded for userName
// with a timestamp at or after since.
func CountUserClicksSince(ctx context.Context, db *gorm.DB, userName string, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Click{}).
		Where("user_name = ? AND timestamp >= ?", userName, since).
		Count(&n).Error
	return n, err
}
