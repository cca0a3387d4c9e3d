package models

import (
	"time"

	"github.com/google/uuid"
)

// Integration is one connected Facebook page for one user.
type Integration struct {
	ID       uuid.UUID `db:"id" json:"id"`
	UserID   string    `db:"user_id" json:"user_id"`
	PageID   string    `db:"page_id" json:"page_id"`
	PageName string    `db:"page_name" json:"page_name"`
	// PageAccessToken is a credential and never leaves the service
	PageAccessToken   string    `db:"page_access_token" json:"-"`
	TokenExpiresAt    time.Time `db:"token_expires_at" json:"token_expires_at"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	WebhookSubscribed bool      `db:"webhook_subscribed" json:"webhook_subscribed"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Integration) TableName() string {
	return "integrations"
}
