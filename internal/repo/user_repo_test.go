package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-click-backend/internal/domain"
)

func newUserRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("user_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreateUser_Error_NoTable(t *testing.T) {
	db := newUserRepoDB(t /* no migrations */)
	u, err := CreateUser(context.Background(), db, "alice")
	if err == nil || u != nil {
		t.Fatalf("expected error creating without table, got user=%v err=%v", u, err)
	}
}

func TestCreateUser_Success_PersistsAndSetsFields(t *testing.T) {
	db := newUserRepoDB(t, &domain.User{})

	start := time.Now().UTC().Add(-time.Minute)
	u, err := CreateUser(context.Background(), db, "alice")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == 0 || u.Name != "alice" || u.TotalClicks != 0 {
		t.Fatalf("unexpected User fields: %+v", u)
	}
	if u.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt seems unset/really old: %v", u.CreatedAt)
	}
	// round-trip
	var got domain.User
	if err := db.First(&got, "id = ?", u.ID).Error; err != nil {
		t.Fatalf("load created user: %v", err)
	}
	if got.Name != "alice" || got.TotalClicks != 0 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestCreateUser_DuplicateName(t *testing.T) {
	db := newUserRepoDB(t, &domain.User{})

	if _, err := CreateUser(context.Background(), db, "alice"); err != nil {
		t.Fatalf("first CreateUser: %v", err)
	}
	u, err := CreateUser(context.Background(), db, "alice")
	if !errors.Is(err, ErrDuplicate) || u != nil {
		t.Fatalf("expected ErrDuplicate on taken name, got user=%v err=%v", u, err)
	}
}

func TestListUsers_RegistrationOrder(t *testing.T) {
	db := newUserRepoDB(t, &domain.User{})

	for _, name := range []string{"carol", "alice", "bob"} {
		if _, err := CreateUser(context.Background(), db, name); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	list, err := ListUsers(context.Background(), db)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 users, got %d", len(list))
	}
	// Must be ascending by id: carol, alice, bob
	if list[0].Name != "carol" || list[1].Name != "alice" || list[2].Name != "bob" {
		t.Fatalf("unexpected order: %#v", list)
	}
}

func TestListTopUsers_OrderTiesAndLimit(t *testing.T) {
	db := newUserRepoDB(t, &domain.User{})

	// Seed with known totals; "bob" and "carol" tie on 5.
	seed := []domain.User{
		{Name: "alice", TotalClicks: 2},
		{Name: "bob", TotalClicks: 5},
		{Name: "carol", TotalClicks: 5},
		{Name: "dave", TotalClicks: 9},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed %s: %v", seed[i].Name, err)
		}
	}

	top, err := ListTopUsers(context.Background(), db, 3)
	if err != nil {
		t.Fatalf("ListTopUsers: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 users, got %d", len(top))
	}
	// dave (9), then the tie in id order: bob before carol
	if top[0].Name != "dave" || top[1].Name != "bob" || top[2].Name != "carol" {
		t.Fatalf("unexpected order: %#v", top)
	}

	// limit <= 0 returns everyone
	all, err := ListTopUsers(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("ListTopUsers(all): %v", err)
	}
	if len(all) != 4 || all[3].Name != "alice" {
		t.Fatalf("unexpected full board: %#v", all)
	}
}

func TestGetUser_FoundAndNotFound(t *testing.T) {
	db := newUserRepoDB(t, &domain.User{})

	// Not found
	if _, err := GetUser(context.Background(), db, 12345); err == nil {
		t.Fatalf("expected ErrRecordNotFound for missing user")
	}

	// Insert & fetch
	u, err := CreateUser(context.Background(), db, "alice")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	got, err := GetUser(context.Background(), db, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.ID != u.ID || got.Name != "alice" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetUserByName_FoundAndNotFound(t *testing.T) {
	db := newUserRepoDB(t, &domain.User{})

	if _, err := GetUserByName(context.Background(), db, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := CreateUser(context.Background(), db, "alice"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	got, err := GetUserByName(context.Background(), db, "alice")
	if err != nil {
		t.Fatalf("GetUserByName: %v", err)
	}
	if got.Name != "alice" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestUpdateUserName_SuccessAndNotFound(t *testing.T) {
	db := newUserRepoDB(t, &domain.User{})

	u, err := CreateUser(context.Background(), db, "old")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Success
	if err := UpdateUserName(context.Background(), db, u.ID, "new"); err != nil {
		t.Fatalf("UpdateUserName: %v", err)
	}
	var got domain.User
	if err := db.First(&got, "id = ?", u.ID).Error; err != nil {
		t.Fatalf("load updated: %v", err)
	}
	if got.Name != "new" {
		t.Fatalf("expected name 'new', got %q", got.Name)
	}

	// Not found -> gorm.ErrRecordNotFound
	if err := UpdateUserName(context.Background(), db, 9999, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrRecordNotFound when id missing, got %v", err)
	}

	// Renaming onto a name another user holds maps the unique violation
	// to ErrDuplicate.
	if _, err := CreateUser(context.Background(), db, "taken"); err != nil {
		t.Fatalf("seed second user: %v", err)
	}
	if err := UpdateUserName(context.Background(), db, u.ID, "taken"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("rename onto taken name err = %v; want ErrDuplicate", err)
	}
}

func TestUpdateUserName_Error_NoTable(t *testing.T) {
	db := newUserRepoDB(t /* no migrations */)

	if err := UpdateUserName(context.Background(), db, 1, "x"); err == nil {
		t.Fatalf("expected error when table does not exist")
	}
}

func TestDeleteUser_SuccessAndNotFound(t *testing.T) {
	db := newUserRepoDB(t, &domain.User{})

	u, err := CreateUser(context.Background(), db, "alice")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := DeleteUser(context.Background(), db, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := GetUser(context.Background(), db, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected user gone, got %v", err)
	}

	// Second delete of the same id -> ErrNotFound
	if err := DeleteUser(context.Background(), db, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

func TestIncrementUserClicks_SuccessAndNotFound(t *testing.T) {
	db := newUserRepoDB(t, &domain.User{})

	u, err := CreateUser(context.Background(), db, "alice")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := IncrementUserClicks(context.Background(), db, "alice"); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	var got domain.User
	if err := db.First(&got, "id = ?", u.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TotalClicks != 3 {
		t.Fatalf("expected total_clicks=3, got %d", got.TotalClicks)
	}

	if err := IncrementUserClicks(context.Background(), db, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
}
