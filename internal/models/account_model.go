package models

import "time"

type Account struct {
	ID                int64     `db:"id" json:"id"`
	InstagramID       string    `db:"instagram_id" json:"instagram_id"`
	InstagramUsername string    `db:"instagram_username" json:"instagram_username"`
	AccessToken       string    `db:"access_token" json:"-"` // AES-GCM encrypted at rest
	IsActive          bool      `db:"is_active" json:"is_active"`
	TokenExpiresAt    time.Time `db:"token_expires_at" json:"token_expires_at"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
