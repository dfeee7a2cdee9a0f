package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting is a key/value row for console-wide options.
type Setting struct {
	Key       string         `gorm:"type:varchar(128);primaryKey"` // Setting key.
	Value     datatypes.JSON `gorm:"type:jsonb"`                   // JSON encoded value.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime"`      // Last update timestamp.
}
