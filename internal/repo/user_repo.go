// Package repo implements the persistence layer over GORM. This file holds
// the User repository functions.
//
// Every function takes its *gorm.DB handle as a parameter, so callers can
// pass a transaction as easily as the root connection. The repository stays
// thin: persistence and query composition only, no business rules.
//
// Error semantics:
//   - A missing user comes back as gorm.ErrRecordNotFound (exported here
//     as ErrNotFound).
//   - A collision with the unique name index comes back as ErrDuplicate,
//     from CreateUser and UpdateUserName alike.
//   - Anything else propagates as the raw gorm error.
//
// Functions:
//
//   - CreateUser(ctx, db, name) -> *domain.User, error
//     Inserts a new User row with a zeroed counter and UTC timestamps.
//
//   - GetUserByName(ctx, db, name) -> *domain.User, error
//     Fetches a single user by display name, or ErrNotFound if missing.
//
//   - ListUsers(ctx, db) -> []domain.User, error
//     Returns all users ordered by id ascending (registration order).
//
//   - ListTopUsers(ctx, db, limit) -> []domain.User, error
//     Returns up to limit users ordered by total clicks descending.
//
//   - GetUser(ctx, db, id) -> *domain.User, error
//     Fetches a single user by primary key, or ErrNotFound if missing.
//
//   - UpdateUserName(ctx, db, id, name) -> error
//     Renames a user. Returns ErrNotFound if the user does not exist and
//     ErrDuplicate if another user already holds the name.
//
//   - DeleteUser(ctx, db, id) -> error
//     Removes a user row. Returns ErrNotFound if the user does not exist.
//
//   - IncrementUserClicks(ctx, db, name) -> error
//     Adds one to the user's stored click counter.
//
// Usage:
//
//	// Within a service layer
//	u, err := repo.CreateUser(ctx, db, "alice")
//	if errors.Is(err, repo.ErrDuplicate) {
//	    // registration raced; fetch the existing row instead
//	} else if err != nil {
//	    // handle DB failure
//	}
//
// This repository is designed to be wrapped by a higher-level service
// (see services.UserService) which enforces business rules such as
// idempotent create-or-fetch registration.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-click-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateUser inserts a new User row with the given display name. The click
// counter starts at zero and timestamps are set to UTC. If the name is
// already registered, it returns ErrDuplicate. On other failures, it
// returns a DB error.
func CreateUser(ctx context.Context, db *gorm.DB, name string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// GetUserByName fetches a single user by display name. If the record does
// not exist, it returns ErrNotFound. On other DB errors, the raw error is
// returned.
func GetUserByName(ctx context.Context, db *gorm.DB, name string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("name = ?", name).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns every registered user ordered by id ascending
// (registration order). It returns an empty slice when nobody has
// registered. On DB error, it returns the error.
func ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListTopUsers returns up to limit users ordered by total clicks descending.
// Ties break on id ascending so repeated reads keep a stable order. A
// non-positive limit returns all users. On DB error, it returns the error.
func ListTopUsers(ctx context.Context, db *gorm.DB, limit int) ([]domain.User, error) {
	var out []domain.User
	q := db.WithContext(ctx).Order("total_clicks DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// GetUser fetches a single user by primary key. If the record does not
// exist, it returns ErrNotFound. On other DB errors, the raw error is
// returned.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserName renames the user identified by id. If no rows are affected
// (user missing), it returns ErrNotFound. A rename onto a name another user
// holds violates the unique index and returns ErrDuplicate. On other DB
// errors, the raw error is returned.
func UpdateUserName(ctx context.Context, db *gorm.DB, id uint, name string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("name", name)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteUser removes the user row identified by id. Click rows referencing
// the user's name are left in place. If no rows are affected (user missing),
// it returns ErrNotFound. On DB error, the raw error is returned.
func DeleteUser(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementUserClicks adds one to the stored click counter of the named
// user. If no rows are affected (user missing), it returns ErrNotFound.
// On DB error, the raw error is returned.
func IncrementUserClicks(ctx context.Context, db *gorm.DB, name string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("name = ?", name).
		Update("total_clicks", gorm.Expr("total_clicks + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
