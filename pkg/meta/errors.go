package meta

import (
	"encoding/json"
	"errors"
	"fmt"
)

// GraphError is the error object the Graph API returns on failure.
type GraphError struct {
	StatusCode int
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	FBTraceID  string `json:"fbtrace_id"`
}

func (e *GraphError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("graph api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("graph api error %d (%s, status %d, trace %s): %s", e.Code, e.Type, e.StatusCode, e.FBTraceID, e.Message)
}

// IsGraphError reports whether err wraps a GraphError and returns it.
func IsGraphError(err error) (*GraphError, bool) {
	var graphErr *GraphError
	if errors.As(err, &graphErr) {
		return graphErr, true
	}
	return nil, false
}

func parseGraphError(status int, body []byte) *GraphError {
	var envelope struct {
		Error *GraphError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		envelope.Error.StatusCode = status
		return envelope.Error
	}
	return &GraphError{StatusCode: status}
}
