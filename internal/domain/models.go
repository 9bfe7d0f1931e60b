// Package domain defines the persistence models for users and their
// recorded clicks. These types are mapped with GORM and form the core
// data layer of the click challenge application.
package domain

import "time"

// User represents a registered player. Each user is identified by a unique
// display name and carries a denormalized click counter that is kept in
// sync with the clicks table by the click recording transaction.
//
// Fields:
//   - ID: auto-increment primary key.
//   - Name: unique display name; indexed for lookups by name.
//   - TotalClicks: running total of recorded clicks for this user.
//   - CreatedAt: registration time (surfaced by the stats endpoint only).
//   - UpdatedAt: bumped by renames and counter increments; feeds ETags.
type User struct {
	ID          uint      `json:"id"           gorm:"primaryKey"`
	Name        string    `json:"name"         gorm:"type:varchar(64);not null;uniqueIndex:ux_users_name"`
	TotalClicks int64     `json:"total_clicks" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Click represents a single recorded click event. Clicks reference their
// owner by display name, not by foreign key; deleting a user leaves that
// user's click rows in place.
//
// Fields:
//   - ID: auto-increment primary key.
//   - UserName: display name of the clicking user; leads the composite index.
//   - Timestamp: click time in UTC, derived from the client-reported epoch.
type Click struct {
	ID        uint      `json:"id"        gorm:"primaryKey"`
	UserName  string    `json:"user_name" gorm:"type:varchar(64);not null;index:idx_user_clicks,priority:1"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_user_clicks,priority:2"`
}

// TableName returns the database table name for Click.
func (Click) TableName() string { return "clicks" }
