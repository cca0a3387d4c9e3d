package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/leadads"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// OAuthHandler serves the Meta authorization round trip.
type OAuthHandler struct {
	service LeadAdsService
}

func NewOAuthHandler(service LeadAdsService) *OAuthHandler {
	return &OAuthHandler{service: service}
}

type AuthorizeResponse struct {
	AuthURL string `json:"authUrl"`
}

// CallbackRequest is the query string the consent dialog redirects back with.
type CallbackRequest struct {
	Code             string `query:"code"`
	State            string `query:"state"`
	Error            string `query:"error"`
	ErrorReason      string `query:"error_reason"`
	ErrorDescription string `query:"error_description"`
}

// RegisterRoutes registers the oauth routes. The callback is reached by a browser
// redirect without a bearer token, so only authorize is behind auth.
func (h *OAuthHandler) RegisterRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	oauth := g.Group("/oauth")
	oauth.GET("/authorize", h.Authorize, auth)
	oauth.GET("/callback", h.Callback)
}

// Authorize handles GET /oauth/authorize
func (h *OAuthHandler) Authorize(c echo.Context) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	authURL, err := h.service.AuthorizeURL(c.Request().Context(), userID)
	if err != nil {
		return leadads.ToHTTPError(err)
	}

	return SuccessResponse(c, AuthorizeResponse{AuthURL: authURL})
}

// Callback handles GET /oauth/callback. It always answers with a redirect to the settings page.
func (h *OAuthHandler) Callback(c echo.Context) error {
	req, err := utils.BindRequest[CallbackRequest](c)
	if err != nil {
		return c.Redirect(http.StatusFound, h.service.RedirectURL(leadads.ErrInvalidRequest))
	}

	_, err = h.service.HandleCallback(c.Request().Context(), leadads.CallbackParams{
		Code:             req.Code,
		State:            req.State,
		Error:            req.Error,
		ErrorReason:      req.ErrorReason,
		ErrorDescription: req.ErrorDescription,
	})
	return c.Redirect(http.StatusFound, h.service.RedirectURL(err))
}
