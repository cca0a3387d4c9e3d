package leadads

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotConfigured       = errors.New("meta integration is not configured")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrAccessDenied        = errors.New("authorization was denied")
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrNotFound            = errors.New("integration not found")
	ErrServerError         = errors.New("server error")
)

// Redirect error codes understood by the settings page.
const (
	CodeAccessDenied        = "access_denied"
	CodeInvalidRequest      = "invalid_request"
	CodeNotConfigured       = "not_configured"
	CodeTokenExchangeFailed = "token_exchange_failed"
	CodeServerError         = "server_error"
)

// ErrorCode maps err to the coarse code carried by the callback redirect.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return CodeAccessDenied
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrNotConfigured):
		return CodeNotConfigured
	case errors.Is(err, ErrTokenExchangeFailed):
		return CodeTokenExchangeFailed
	default:
		return CodeServerError
	}
}

// ToHTTPError maps err to the status the JSON endpoints answer with.
// The message never includes upstream detail.
func ToHTTPError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return httperror.NewHTTPError(http.StatusUnauthorized, "authentication required")
	case errors.Is(err, ErrNotConfigured):
		return httperror.NewHTTPError(http.StatusBadRequest, "meta integration is not configured")
	case errors.Is(err, ErrInvalidRequest):
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request")
	case errors.Is(err, ErrNotFound):
		return httperror.NewHTTPError(http.StatusNotFound, "integration not found")
	default:
		return httperror.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
