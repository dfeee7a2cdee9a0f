package models

import "time"

// User represents a console account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Password string `gorm:"type:text;not null"`             // Bcrypt password hash.

	Sessions  []Session  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Issued sessions.
	Platforms []Platform `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owned platforms.
	Agents    []Agent    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owned agents.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
