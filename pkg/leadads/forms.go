package leadads

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ramsey-B/fern/pkg/meta"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// FormWithConfig is a lead form as the Graph API reports it plus its stored config.
// Config is nil when the form has none.
type FormWithConfig struct {
	meta.Form
	Config *models.FormConfig `json:"config"`
}

// ListForms returns the lead forms of one of the user's integrations.
// A missing integration and one owned by someone else both yield ErrNotFound.
func (s *Service) ListForms(ctx context.Context, userID, integrationID string) (forms []FormWithConfig, err error) {
	ctx, span := tracing.StartSpan(ctx, "LeadAds.ListForms")
	defer span.End()

	defer func() {
		outcome := "success"
		switch {
		case err == nil:
		case errors.Is(err, ErrNotFound):
			outcome = "not_found"
		case errors.Is(err, ErrUnauthorized):
			outcome = "unauthorized"
		case errors.Is(err, ErrInvalidRequest):
			outcome = CodeInvalidRequest
		default:
			outcome = CodeServerError
			span.RecordError(err)
		}
		metrics.FormsListedTotal.WithLabelValues(outcome).Inc()
	}()

	if userID == "" {
		return nil, ErrUnauthorized
	}
	id, err := parseIntegrationID(integrationID)
	if err != nil {
		return nil, err
	}

	integration, err := s.deps.Integrations.GetByID(ctx, userID, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: load integration: %v", ErrServerError, err)
	}
	// repositories scope by user already; checked again so a store without that filter cannot leak
	if integration.UserID != userID {
		return nil, ErrNotFound
	}

	remote, err := s.deps.Graph.ListForms(ctx, integration.PageID, integration.PageAccessToken)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("integration_id", id).Error("failed to list lead forms")
		return nil, fmt.Errorf("%w: list forms: %v", ErrServerError, err)
	}

	configs, err := s.deps.FormConfigs.ListByIntegration(ctx, integration.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load form configs: %v", ErrServerError, err)
	}

	byFormID := make(map[string]*models.FormConfig, len(configs))
	for i := range configs {
		byFormID[configs[i].FormID] = &configs[i]
	}

	forms = make([]FormWithConfig, 0, len(remote))
	for _, form := range remote {
		forms = append(forms, FormWithConfig{Form: form, Config: byFormID[form.ID]})
	}
	return forms, nil
}
