package repositories

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const formConfigsTable = "form_configs"

var formConfigStruct = database.NewStruct(new(models.FormConfig))

type FormConfigRepository struct {
	*Repository
}

func NewFormConfigRepository(db database.DB, logger ectologger.Logger) *FormConfigRepository {
	return &FormConfigRepository{
		Repository: NewRepository(db, logger),
	}
}

// ListByIntegration returns the stored form configs of one integration
func (r *FormConfigRepository) ListByIntegration(ctx context.Context, integrationID uuid.UUID) ([]models.FormConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "FormConfigRepository.ListByIntegration")
	defer span.End()

	sb := formConfigStruct.SelectFrom(formConfigsTable)
	sb.Where(sb.Equal("integration_id", integrationID))
	sb.OrderBy("form_id")

	query, args := sb.Build()
	configs := []models.FormConfig{}
	err := r.DB().SelectContext(ctx, &configs, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"integration_id": integrationID,
		}).Error("failed to list form configs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list form configs")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"integration_id": integrationID,
		"config_count":   len(configs),
	}).Debugf("Listed %s", formConfigsTable)
	return configs, nil
}
