package middleware

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/Ramsey-B/fern/pkg/context"
)

const (
	testIssuer   = "https://auth.example.com/realms/fern"
	testClientID = "fern-api"
)

func silentLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// whoAmI echoes the user id the middleware chain stored.
func whoAmI(c echo.Context) error {
	return c.String(http.StatusOK, appctx.GetUserID(c.Request().Context()))
}

func newServer(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(silentLogger())
	e.Use(Context())
	e.GET("/me", whoAmI, mw...)
	return e
}

func TestContext_SetsRequestID(t *testing.T) {
	e := echo.New()
	e.Use(Context())
	e.GET("/id", func(c echo.Context) error {
		return c.String(http.StatusOK, appctx.GetRequestID(c.Request().Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Body.String())
	assert.Equal(t, "req-123", rec.Header().Get(echo.HeaderXRequestID))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/id", nil))
	assert.NotEmpty(t, rec.Body.String())
}

func TestError_RendersHTTPErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{name: "http error", err: httperror.NewHTTPError(http.StatusNotFound, "integration not found"), wantStatus: http.StatusNotFound, wantMessage: "integration not found"},
		{name: "echo error", err: echo.NewHTTPError(http.StatusUnauthorized, "missing bearer"), wantStatus: http.StatusUnauthorized, wantMessage: "missing bearer"},
		{name: "plain error", err: errors.New("pq: connection refused"), wantStatus: http.StatusInternalServerError, wantMessage: "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.HTTPErrorHandler = Error(silentLogger())
			e.Use(Context())
			e.GET("/fail", func(c echo.Context) error { return tt.err })

			req := httptest.NewRequest(http.MethodGet, "/fail", nil)
			req.Header.Set(echo.HeaderXRequestID, "req-9")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.Equal(t, "req-9", body.RequestID)
		})
	}
}

func TestLogger_OmitsQueryString(t *testing.T) {
	var messages []ectologger.EctoLogMessage
	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		messages = append(messages, msg)
	})

	e := echo.New()
	e.Use(Context(), Logger(logger))
	e.GET("/api/v1/oauth/callback", func(c echo.Context) error { return c.NoContent(http.StatusFound) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/oauth/callback?code=secret-code&state=abc", nil))

	require.NotEmpty(t, messages)
	for _, msg := range messages {
		assert.NotContains(t, fmt.Sprintf("%+v", msg), "secret-code")
	}
}

func TestHeaderAuthentication(t *testing.T) {
	e := newServer(HeaderAuthentication())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, "user-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "user-42", rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

type signer struct {
	key      *rsa.PrivateKey
	verifier *oidc.IDTokenVerifier
}

func newSigner(t *testing.T) *signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return &signer{
		key:      key,
		verifier: oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: testClientID}),
	}
}

func (s *signer) token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss": testIssuer,
		"aud": testClientID,
		"sub": "user-7",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
}

func TestAuthentication(t *testing.T) {
	s := newSigner(t)
	e := newServer(Authentication(silentLogger(), s.verifier))

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongAudience := validClaims()
	wrongAudience["aud"] = "someone-else"
	noSubject := validClaims()
	delete(noSubject, "sub")

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "valid token", header: "Bearer " + s.token(t, validClaims()), wantStatus: http.StatusOK, wantBody: "user-7"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not.a.jwt", wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + s.token(t, expired), wantStatus: http.StatusUnauthorized},
		{name: "wrong audience", header: "Bearer " + s.token(t, wrongAudience), wantStatus: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + s.token(t, noSubject), wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestAuthentication_IgnoresUserHeader(t *testing.T) {
	s := newSigner(t)
	e := newServer(Authentication(silentLogger(), s.verifier))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, "spoofed")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
