package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestRedactURL(t *testing.T) {
	u, err := url.Parse("https://graph.example.com/v23.0/me/accounts?fields=id,name&access_token=secret-token")
	require.NoError(t, err)

	redacted := RedactURL(u)
	assert.NotContains(t, redacted, "secret-token")
	assert.Contains(t, redacted, "access_token=REDACTED")
	assert.Contains(t, redacted, "fields=id%2Cname")

	// the original URL is untouched
	assert.Equal(t, "secret-token", u.Query().Get("access_token"))
}

func TestRedactURL_NoSecrets(t *testing.T) {
	u, err := url.Parse("https://graph.example.com/v23.0/123/leadgen_forms")
	require.NoError(t, err)
	assert.Equal(t, u.String(), RedactURL(u))
	assert.Equal(t, "", RedactURL(nil))
}

func TestClient_GetAndPostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"ok":true}`))
		case http.MethodPost:
			_ = r.ParseForm()
			if r.PostForm.Get("subscribed_fields") != "leadgen" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}))
	defer server.Close()

	client := NewClientWith(server.Client(), testLogger())

	resp, err := client.Get(context.Background(), "test_get", server.URL)
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	var got map[string]bool
	require.NoError(t, resp.DecodeJSON(&got))
	assert.True(t, got["ok"])

	resp, err = client.PostForm(context.Background(), "test_post", server.URL, url.Values{"subscribed_fields": {"leadgen"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.PostForm(context.Background(), "test_post", server.URL, url.Values{})
	require.NoError(t, err)
	assert.False(t, resp.IsSuccess())
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(DefaultConfig(), testLogger())
	_, err := client.Get(context.Background(), "test_get", server.URL)
	assert.Error(t, err)
}

func TestClient_TransportErrorIsRedacted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	var logged []string
	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		logged = append(logged, fmt.Sprintf("%+v", msg))
	})
	client := NewClient(DefaultConfig(), logger)

	target := server.URL + "/oauth/access_token?client_secret=app-secret&fb_exchange_token=short-lived-user-token"
	_, err := client.Get(context.Background(), "exchange_long_lived", target)
	require.Error(t, err)

	var urlErr *url.Error
	require.ErrorAs(t, err, &urlErr)
	assert.NotContains(t, err.Error(), "app-secret")
	assert.NotContains(t, err.Error(), "short-lived-user-token")
	assert.Contains(t, err.Error(), "REDACTED")

	require.NotEmpty(t, logged)
	for _, line := range logged {
		assert.NotContains(t, line, "app-secret")
		assert.NotContains(t, line, "short-lived-user-token")
	}
}
