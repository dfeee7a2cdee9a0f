package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/router-for-me/APIConsole/internal/models"
	internalsettings "github.com/router-for-me/APIConsole/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// schemaModels lists every table managed by the console, parents first.
var schemaModels = []any{
	&models.User{},
	&models.Session{},
	&models.Platform{},
	&models.Agent{},
	&models.Setting{},
}

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(schemaModels...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sessions_user_expiry ON sessions (user_id, expires_at)
	`).Error; errIdx != nil {
		return fmt.Errorf("db: create session expiry index: %w", errIdx)
	}
	return ensureSiteNameSetting(conn)
}

// ensureSiteNameSetting seeds SITE_NAME when the row is missing.
func ensureSiteNameSetting(conn *gorm.DB) error {
	var existing models.Setting
	errFind := conn.Where("key = ?", internalsettings.SiteNameKey).First(&existing).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query SITE_NAME setting: %w", errFind)
	}

	payload, errMarshal := json.Marshal(internalsettings.DefaultSiteName)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal SITE_NAME setting: %w", errMarshal)
	}
	setting := models.Setting{
		Key:       internalsettings.SiteNameKey,
		Value:     datatypes.JSON(payload),
		UpdatedAt: time.Now().UTC(),
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create SITE_NAME setting: %w", errCreate)
	}
	return nil
}
