package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	metaAppConfigTable = "meta_app_config"
	// the settings table is constrained to a single row
	metaAppConfigRowID = 1
)

var metaAppConfigStruct = database.NewStruct(new(models.MetaAppConfig))

type MetaAppConfigRepository struct {
	*Repository
}

func NewMetaAppConfigRepository(db database.DB, logger ectologger.Logger) *MetaAppConfigRepository {
	return &MetaAppConfigRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *MetaAppConfigRepository) Get(ctx context.Context) (*models.MetaAppConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "MetaAppConfigRepository.Get")
	defer span.End()

	sb := metaAppConfigStruct.SelectFrom(metaAppConfigTable)
	sb.Where(sb.Equal("id", metaAppConfigRowID))

	query, args := sb.Build()
	var config models.MetaAppConfig
	err := r.DB().GetContext(ctx, &config, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "meta app config does not exist")
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get meta app config")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get meta app config")
	}

	return &config, nil
}

// Upsert stores the credentials in the single settings row
func (r *MetaAppConfigRepository) Upsert(ctx context.Context, config *models.MetaAppConfig) error {
	ctx, span := tracing.StartSpan(ctx, "MetaAppConfigRepository.Upsert")
	defer span.End()

	config.ID = metaAppConfigRowID

	ib := database.NewUpsertBuilder(metaAppConfigTable, "id", "app_id", "app_secret", "is_active", "created_at", "updated_at")
	ib.Values(config.ID, config.AppID, config.AppSecret, config.IsActive, database.Now(), database.Now())
	ib.OnConflict([]string{"id"}, "app_id", "app_secret", "is_active")
	ib.Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&config.CreatedAt, &config.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to upsert meta app config")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert meta app config")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"app_id":    config.AppID,
		"is_active": config.IsActive,
	}).Infof("Upserted %s", metaAppConfigTable)
	return nil
}
