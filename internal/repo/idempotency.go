// Package repo implements the persistence layer over GORM. This file stores
// and looks up idempotency records so retried click submissions replay the
// original result instead of recording twice.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-click-backend/internal/domain"
)

// ErrDuplicate indicates that a row already exists for a unique key, either
// an idempotency (user_name, key) tuple or a user display name.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// GetIdempotency returns the live record for (userName, key). Expired rows
// are treated the same as absent ones: ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userName, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(userName) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_name = ? AND key = ? AND expires_at > ?", userName, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// HasIdempotencyKey reports whether any non-expired record holds the key,
// for any user. The idempotency middleware uses it to flag likely replays
// before the request body has been parsed.
func HasIdempotencyKey(ctx context.Context, db *gorm.DB, key string, now time.Time) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Idempotency{}).
		Where("key = ? AND expires_at > ?", key, now).
		Count(&n).Error
	return n > 0, err
}

// CreateIdempotency persists the outcome of a recorded click under
// (userName, key) so later retries can replay it. Inserting the same tuple
// twice returns ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userName, key string, clickID uint, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserName:  userName,
		Key:       key,
		ClickID:   clickID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
