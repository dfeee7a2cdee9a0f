package models

import "time"

// Session is a server-side login session keyed by an opaque token.
type Session struct {
	ID string `gorm:"type:varchar(64);primaryKey"` // Opaque session token.

	UserID uint64 `gorm:"not null;index"` // Owning user ID.

	ExpiresAt time.Time `gorm:"not null;index"`          // Absolute expiry.
	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
