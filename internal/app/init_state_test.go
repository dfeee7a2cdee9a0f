package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/router-for-me/APIConsole/internal/db"
	"github.com/router-for-me/APIConsole/internal/models"
)

func TestHasUserInitialized(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "console-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	initialized, err := HasUserInitialized(conn)
	if err != nil {
		t.Fatalf("HasUserInitialized: %v", err)
	}
	if initialized {
		t.Fatalf("expected initialized=false before migrate")
	}

	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	initialized, err = HasUserInitialized(conn)
	if err != nil {
		t.Fatalf("HasUserInitialized after migrate: %v", err)
	}
	if initialized {
		t.Fatalf("expected initialized=false with empty users table")
	}

	now := time.Now().UTC()
	user := models.User{
		Username:  "owner",
		Password:  "hashed-password",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	initialized, err = HasUserInitialized(conn)
	if err != nil {
		t.Fatalf("HasUserInitialized after seed: %v", err)
	}
	if !initialized {
		t.Fatalf("expected initialized=true after user created")
	}
}
