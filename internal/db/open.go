package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database described by dsn.
// DSNs starting with "file:" (or ending in ".db") select SQLite, everything else PostgreSQL.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}

	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	if isSQLiteDSN(trimmed) {
		dialector = sqlite.Open(trimmed)
	} else {
		dialector = postgres.Open(trimmed)
	}

	conn, errOpen := gorm.Open(dialector, cfg)
	if errOpen != nil {
		return nil, fmt.Errorf("db: open: %w", errOpen)
	}
	if IsSQLite(conn) {
		// SQLite allows one writer; serializing through one connection avoids SQLITE_BUSY.
		sqlDB, errDB := conn.DB()
		if errDB != nil {
			return nil, fmt.Errorf("db: sql handle: %w", errDB)
		}
		sqlDB.SetMaxOpenConns(1)
		if errFK := conn.Exec("PRAGMA foreign_keys = ON").Error; errFK != nil {
			return nil, fmt.Errorf("db: enable foreign keys: %w", errFK)
		}
	}
	return conn, nil
}

// isSQLiteDSN reports whether the DSN targets a SQLite database.
func isSQLiteDSN(dsn string) bool {
	lowered := strings.ToLower(dsn)
	if strings.HasPrefix(lowered, "file:") || strings.HasPrefix(lowered, ":memory:") {
		return true
	}
	pathPart, _, _ := strings.Cut(lowered, "?")
	return strings.HasSuffix(pathPart, ".db") || strings.HasSuffix(pathPart, ".sqlite")
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "sqlstate 23505")
}
