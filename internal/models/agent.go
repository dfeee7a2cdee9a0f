package models

import (
	"time"

	"gorm.io/datatypes"
)

// Agent stores a named set of environment variable templates.
type Agent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex:idx_agents_user_name,priority:1"` // Owning user ID.
	Name   string `gorm:"type:text;not null;uniqueIndex:idx_agents_user_name,priority:2"`

	EnvVars datatypes.JSON `gorm:"type:jsonb;not null"` // JSON object of variable templates.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
