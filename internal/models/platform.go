package models

import (
	"strings"
	"time"
)

// Platform stores credentials for one external chat-completion API.
type Platform struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex:idx_platforms_user_name,priority:1" json:"user_id"` // Owning user ID.
	Name   string `gorm:"type:text;not null;uniqueIndex:idx_platforms_user_name,priority:2" json:"name"`

	APIBaseURL string  `gorm:"type:text;not null" json:"api_base_url"` // Base URL, e.g. https://api.example.com/v1.
	APIKey     string  `gorm:"type:text;not null" json:"api_key"`      // Upstream API key.
	Models     string  `gorm:"type:text;not null" json:"models"`       // Comma-delimited model identifiers.
	AdminURL   *string `gorm:"type:text" json:"admin_url"`             // Optional provider console URL.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// ModelList splits the comma-delimited model column, dropping blank entries.
func (p *Platform) ModelList() []string {
	if p == nil {
		return nil
	}
	parts := strings.Split(p.Models, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
