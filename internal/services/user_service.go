// Package services – UserService
//
// This file implements the UserService, which manages the lifecycle of
// registered users. It normalizes and validates display names, implements
// idempotent create-or-fetch registration, and coordinates repository
// operations for listing, fetching, renaming, and deleting users.
//
// Service-level errors (e.g., ErrUserNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-click-backend/internal/domain"
	"github.com/tbourn/go-click-backend/internal/repo"
	"golang.org/x/text/unicode/norm"
)

// maxNameRunes caps display names by rune length.
const maxNameRunes = 64

// UserRepo defines the repository contract required by UserService.
// Implementations are responsible for persistence of user aggregates.
type UserRepo interface {
	// CreateUser inserts a new user row with the given display name.
	CreateUser(ctx context.Context, db *gorm.DB, name string) (*domain.User, error)

	// GetUserByName fetches a user by display name.
	GetUserByName(ctx context.Context, db *gorm.DB, name string) (*domain.User, error)

	// ListUsers returns all users in registration order.
	ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error)

	// GetUser fetches a user by primary key.
	GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error)

	// UpdateUserName renames a user identified by primary key.
	UpdateUserName(ctx context.Context, db *gorm.DB, id uint, name string) error

	// DeleteUser removes a user row by primary key.
	DeleteUser(ctx context.Context, db *gorm.DB, id uint) error
}

// UserService provides user-level operations such as registering,
// listing, renaming, and deleting users. It enforces display-name rules
// and keeps registration idempotent per name.
type UserService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the user repository used by this service.
	Repo UserRepo
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, r UserRepo) *UserService {
	return &UserService{DB: db, Repo: r}
}

// Register returns the user registered under name, creating the row first if
// nobody holds that name yet. The boolean result reports whether a new row
// was created. Registration is idempotent: repeating it for the same name
// returns the existing user unchanged.
func (s *UserService) Register(ctx context.Context, name string) (*domain.User, bool, error) {
	name = normalizeName(name)
	if err := validateName(name); err != nil {
		return nil, false, err
	}

	// Fast path: the name is already registered.
	u, err := s.Repo.GetUserByName(ctx, s.DB, name)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	u, err = s.Repo.CreateUser(ctx, s.DB, name)
	if errors.Is(err, repo.ErrDuplicate) {
		// Lost a registration race; the row exists now.
		u, err = s.Repo.GetUserByName(ctx, s.DB, name)
		if err != nil {
			return nil, false, err
		}
		return u, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// List returns all registered users in registration order.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.Repo.ListUsers(ctx, s.DB)
}

// Get fetches a user by id, returning ErrUserNotFound when absent.
func (s *UserService) Get(ctx context.Context, id uint) (*domain.User, error) {
	u, err := s.Repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Rename changes the display name of the user identified by id and returns
// the updated row. The new name goes through the same normalization and
// validation as registration. Returns ErrUserNotFound when the id is absent
// and ErrNameTaken when another user already holds the name.
func (s *UserService) Rename(ctx context.Context, id uint, name string) (*domain.User, error) {
	name = normalizeName(name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateUserName(ctx, s.DB, id, name); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repo.ErrDuplicate):
			return nil, ErrNameTaken
		default:
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// Delete removes the user identified by id. Recorded clicks keep their rows;
// only the user entry disappears. Returns ErrUserNotFound when absent.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	if err := s.Repo.DeleteUser(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// normalizeName canonicalizes a display name: Unicode NFC form, trimmed,
// with inner whitespace runs collapsed to single spaces.
func normalizeName(s string) string {
	s = norm.NFC.String(s)
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// validateName enforces the registration rules on an already-normalized name.
func validateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		return ErrNameTooLong
	}
	return nil
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
