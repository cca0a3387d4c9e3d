package models

import "time"

// MetaAppConfig holds the Meta application credentials. There is at most one row.
type MetaAppConfig struct {
	ID        int       `db:"id" json:"-"`
	AppID     string    `db:"app_id" json:"app_id"`
	AppSecret string    `db:"app_secret" json:"-"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (MetaAppConfig) TableName() string {
	return "meta_app_config"
}

// Usable reports whether the credentials can start an authorization.
func (c *MetaAppConfig) Usable() bool {
	return c != nil && c.IsActive && c.AppID != "" && c.AppSecret != ""
}
