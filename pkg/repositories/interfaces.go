package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// IntegrationRepo defines the interface for integration repository operations
type IntegrationRepo interface {
	// Upsert inserts or replaces the row keyed by (user_id, page_id) and fills in id and timestamps.
	Upsert(ctx context.Context, integration *models.Integration) error
	// GetByID returns the integration only when it belongs to userID; otherwise a 404.
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.Integration, error)
	ListByUser(ctx context.Context, userID string) ([]models.Integration, error)
}

// FormConfigRepo defines the interface for form config repository operations
type FormConfigRepo interface {
	ListByIntegration(ctx context.Context, integrationID uuid.UUID) ([]models.FormConfig, error)
}

// MetaAppConfigRepo defines the interface for the Meta application settings store
type MetaAppConfigRepo interface {
	// Get returns a 404 when no settings row exists.
	Get(ctx context.Context) (*models.MetaAppConfig, error)
	Upsert(ctx context.Context, config *models.MetaAppConfig) error
}

var (
	_ IntegrationRepo   = (*IntegrationRepository)(nil)
	_ FormConfigRepo    = (*FormConfigRepository)(nil)
	_ MetaAppConfigRepo = (*MetaAppConfigRepository)(nil)
)
