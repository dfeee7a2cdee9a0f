package app

import (
	"fmt"

	"github.com/router-for-me/APIConsole/internal/models"
	"gorm.io/gorm"
)

// HasUserInitialized reports whether at least one account exists.
func HasUserInitialized(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.User{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.User{}).Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}
