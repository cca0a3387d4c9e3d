package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const integrationsTable = "integrations"

var integrationStruct = database.NewStruct(new(models.Integration))

// IntegrationRepository handles database operations for integrations
type IntegrationRepository struct {
	*Repository
}

// NewIntegrationRepository creates a new integration repository
func NewIntegrationRepository(db database.DB, logger ectologger.Logger) *IntegrationRepository {
	return &IntegrationRepository{
		Repository: NewRepository(db, logger),
	}
}

// Upsert writes the integration keyed by (user_id, page_id). An existing row keeps
// its id and created_at; everything else is replaced.
func (r *IntegrationRepository) Upsert(ctx context.Context, integration *models.Integration) error {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.Upsert")
	defer span.End()

	if integration.ID == uuid.Nil {
		integration.ID = uuid.New()
	}

	ib := database.NewUpsertBuilder(integrationsTable,
		"id", "user_id", "page_id", "page_name", "page_access_token", "token_expires_at",
		"is_active", "webhook_subscribed", "created_at", "updated_at")
	ib.Values(integration.ID, integration.UserID, integration.PageID, integration.PageName,
		integration.PageAccessToken, integration.TokenExpiresAt, integration.IsActive,
		integration.WebhookSubscribed, database.Now(), database.Now())
	ib.OnConflict([]string{"user_id", "page_id"},
		"page_name", "page_access_token", "token_expires_at", "is_active", "webhook_subscribed")
	ib.Returning("id", "created_at", "updated_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&integration.ID, &integration.CreatedAt, &integration.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"user_id": integration.UserID,
			"page_id": integration.PageID,
		}).Error("failed to upsert integration")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert integration")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"integration_id":     integration.ID,
		"page_id":            integration.PageID,
		"webhook_subscribed": integration.WebhookSubscribed,
	}).Debugf("Upserted %s", integrationsTable)
	return nil
}

// GetByID retrieves an integration owned by userID. A missing row and a row owned
// by someone else produce the same 404.
func (r *IntegrationRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.Integration, error) {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.GetByID")
	defer span.End()

	sb := integrationStruct.SelectFrom(integrationsTable)
	sb.Where(sb.Equal("user_id", userID), sb.Equal("id", id))

	query, args := sb.Build()
	var integration models.Integration
	err := r.DB().GetContext(ctx, &integration, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "integration %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"integration_id": id,
		}).Error("failed to get integration by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get integration by ID")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"integration_id": id,
	}).Debugf("Retrieved %s by ID: %s", integrationsTable, id)
	return &integration, nil
}

// ListByUser returns every integration of the user ordered by page name
func (r *IntegrationRepository) ListByUser(ctx context.Context, userID string) ([]models.Integration, error) {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.ListByUser")
	defer span.End()

	sb := integrationStruct.SelectFrom(integrationsTable)
	sb.Where(sb.Equal("user_id", userID))
	sb.OrderBy("page_name", "page_id")

	query, args := sb.Build()
	integrations := []models.Integration{}
	err := r.DB().SelectContext(ctx, &integrations, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list integrations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list integrations")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"integration_count": len(integrations),
	}).Debugf("Listed %s", integrationsTable)
	return integrations, nil
}
