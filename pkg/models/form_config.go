package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// FormConfig is the locally stored field mapping for one lead form of an integration.
type FormConfig struct {
	ID            uuid.UUID                      `db:"id" json:"id"`
	UserID        string                         `db:"user_id" json:"user_id"`
	IntegrationID uuid.UUID                      `db:"integration_id" json:"integration_id"`
	FormID        string                         `db:"form_id" json:"form_id"`
	Mapping       database.JSONB[map[string]any] `db:"mapping" json:"mapping"`
	CreatedAt     time.Time                      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time                      `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (FormConfig) TableName() string {
	return "form_configs"
}
