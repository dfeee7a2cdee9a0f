package db

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/router-for-me/APIConsole/internal/models"
	internalsettings "github.com/router-for-me/APIConsole/internal/settings"
)

func TestMigrate_SeedsSiteNameOnce(t *testing.T) {
	conn, err := Open("file:" + filepath.Join(t.TempDir(), "console-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if !IsSQLite(conn) {
		t.Fatalf("expected sqlite dialect, got %q", DialectName(conn))
	}
	for i := 0; i < 2; i++ {
		if errMigrate := Migrate(conn); errMigrate != nil {
			t.Fatalf("migrate #%d: %v", i+1, errMigrate)
		}
	}

	var count int64
	if errCount := conn.Model(&models.Setting{}).Where("key = ?", internalsettings.SiteNameKey).Count(&count).Error; errCount != nil {
		t.Fatalf("count settings: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected 1 SITE_NAME row, got %d", count)
	}
}

func TestIsUniqueViolation_PlatformNamePerOwner(t *testing.T) {
	conn, err := Open("file:" + filepath.Join(t.TempDir(), "console-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	users := []models.User{{Username: "alice", Password: "x"}, {Username: "bob", Password: "x"}}
	if errCreate := conn.Create(&users).Error; errCreate != nil {
		t.Fatalf("create users: %v", errCreate)
	}

	first := models.Platform{UserID: users[0].ID, Name: "openai", APIBaseURL: "https://a", APIKey: "k", Models: "m"}
	if errCreate := conn.Create(&first).Error; errCreate != nil {
		t.Fatalf("create first: %v", errCreate)
	}
	other := models.Platform{UserID: users[1].ID, Name: "openai", APIBaseURL: "https://a", APIKey: "k", Models: "m"}
	if errCreate := conn.Create(&other).Error; errCreate != nil {
		t.Fatalf("same name for another owner should succeed: %v", errCreate)
	}

	dup := models.Platform{UserID: users[0].ID, Name: "openai", APIBaseURL: "https://b", APIKey: "k", Models: "m"}
	errDup := conn.Create(&dup).Error
	if !IsUniqueViolation(errDup) {
		t.Fatalf("expected unique violation, got %v", errDup)
	}
}

func TestIsUniqueViolation_OtherErrors(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Fatalf("nil must not be a unique violation")
	}
	if IsUniqueViolation(errors.New("connection refused")) {
		t.Fatalf("unrelated error must not be a unique violation")
	}
}

func TestIsSQLiteDSN(t *testing.T) {
	cases := map[string]bool{
		"file:console.db":                       true,
		"console.db?_pragma=busy_timeout(5000)": true,
		":memory:":                              true,
		"postgres://u:p@localhost:5432/console": false,
		"host=localhost user=u dbname=console":  false,
	}
	for dsn, want := range cases {
		if got := isSQLiteDSN(dsn); got != want {
			t.Fatalf("isSQLiteDSN(%q)=%v, want %v", dsn, got, want)
		}
	}
}
