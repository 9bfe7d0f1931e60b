// Package repo implements the persistence layer over GORM. This file holds
// the Click repository functions.
//
// Unlike the user functions, these take no context parameter: the click
// service hands them a handle that is already context-scoped, either a
// transaction or a WithContext view.
package repo

import (
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-click-backend/internal/domain"
)

// CreateClick inserts a new click row.
func CreateClick(db *gorm.DB, userName string, ts time.Time) (*domain.Click, error) {
	c := &domain.Click{
		UserName:  userName,
		Timestamp: ts,
	}
	return c, db.Create(c).Error
}

// ListClicks returns clicks ordered newest first (Timestamp DESC, ID DESC).
func ListClicks(db *gorm.DB, limit int) ([]domain.Click, error) {
	var out []domain.Click
	q := db.Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListRecentClicks returns the n most recent clicks of one user, ordered
// newest first (Timestamp DESC, ID DESC).
func ListRecentClicks(db *gorm.DB, userName string, n int) ([]domain.Click, error) {
	var out []domain.Click
	err := db.
		Where("user_name = ?", userName).
		Order("timestamp DESC, id DESC").
		Limit(n).
		Find(&out).Error
	return out, err
}

// GetClick fetches a click by ID.
func GetClick(db *gorm.DB, id uint) (*domain.Click, error) {
	var c domain.Click
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
