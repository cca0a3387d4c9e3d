package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/leadads"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// IntegrationHandler handles integration-related API requests
type IntegrationHandler struct {
	service LeadAdsService
}

// NewIntegrationHandler creates a new integration handler
func NewIntegrationHandler(service LeadAdsService) *IntegrationHandler {
	return &IntegrationHandler{service: service}
}

type ListIntegrationsResponse struct {
	Integrations []models.Integration `json:"integrations"`
}

type ListFormsRequest struct {
	IntegrationID string `param:"integration_id" validate:"required,uuid"`
}

type ListFormsResponse struct {
	Forms []leadads.FormWithConfig `json:"forms"`
}

// RegisterRoutes registers the integration routes
func (h *IntegrationHandler) RegisterRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	integrations := g.Group("/integrations", auth)
	integrations.GET("", h.List)
	integrations.GET("/:integration_id/forms", h.ListForms)
}

// List handles GET /integrations
func (h *IntegrationHandler) List(c echo.Context) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	integrations, err := h.service.ListIntegrations(c.Request().Context(), userID)
	if err != nil {
		return leadads.ToHTTPError(err)
	}
	if integrations == nil {
		integrations = []models.Integration{}
	}

	return SuccessResponse(c, ListIntegrationsResponse{Integrations: integrations})
}

// ListForms handles GET /integrations/:integration_id/forms
func (h *IntegrationHandler) ListForms(c echo.Context) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[ListFormsRequest](c)
	if err != nil {
		return err
	}

	forms, err := h.service.ListForms(c.Request().Context(), userID, req.IntegrationID)
	if err != nil {
		return leadads.ToHTTPError(err)
	}

	return SuccessResponse(c, ListFormsResponse{Forms: forms})
}
