package models

import (
	"database/sql"
	"time"
)

// Platform represents a row in the 'platforms' table
type Platform struct {
	ID        int64          `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Slug      string         `db:"slug" json:"slug"`
	Enabled   bool           `db:"enabled" json:"enabled"`
	IconURL   sql.NullString `db:"icon_url" json:"icon_url,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// NewPlatform creates a Platform with default values. New platforms
// discovered during import are named after their slug.
func NewPlatform(slug string) *Platform {
	now := time.Now()
	return &Platform{
		Name:      slug,
		Slug:      slug,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Authorization status values for PlatformAuth.
const (
	AuthStatusUnauthed = "unauthed"
	AuthStatusAuthed   = "authed"
)

// PlatformAuth holds OAuth credentials for a platform account, one row per
// platform. Written only by the OAuth callback, read by the reply sender.
type PlatformAuth struct {
	ID           int64          `db:"id" json:"id"`
	PlatformID   int64          `db:"platform_id" json:"platform_id"`
	Status       string         `db:"status" json:"status"`
	AccessToken  sql.NullString `db:"access_token" json:"-"`
	RefreshToken sql.NullString `db:"refresh_token" json:"-"`
	ExpiresAt    sql.NullTime   `db:"expires_at" json:"expires_at,omitempty"`
	AuthorizedAt sql.NullTime   `db:"authorized_at" json:"authorized_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}
