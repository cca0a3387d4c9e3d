package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/leadads"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

// LeadAdsService is what the HTTP layer needs from leadads.Service.
type LeadAdsService interface {
	AuthorizeURL(ctx context.Context, userID string) (string, error)
	HandleCallback(ctx context.Context, params leadads.CallbackParams) (*leadads.CallbackResult, error)
	RedirectURL(err error) string
	ListIntegrations(ctx context.Context, userID string) ([]models.Integration, error)
	ListForms(ctx context.Context, userID, integrationID string) ([]leadads.FormWithConfig, error)
}

var _ LeadAdsService = (*leadads.Service)(nil)

// GetUserID extracts the authenticated user id from the request context
func GetUserID(c echo.Context) (string, error) {
	return repositories.GetUserID(c.Request().Context())
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}
