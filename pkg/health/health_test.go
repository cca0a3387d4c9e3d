package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type redisPinger struct{ rdb *goredis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

func serve(t *testing.T, c *Checker, path string) (int, Response) {
	t.Helper()
	e := echo.New()
	c.RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestLiveness(t *testing.T) {
	c := NewChecker("1.2.3")
	code, body := serve(t, c, "/api/v1/health/live")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, body.Status)
	assert.Equal(t, "1.2.3", body.Version)
}

func TestReadiness_NotReadyDuringStartup(t *testing.T) {
	c := NewChecker("dev")
	code, body := serve(t, c, "/api/v1/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "startup")
}

func TestHealth_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewChecker("dev")
	c.AddCheck("redis", redisPinger{rdb: rdb}, true)
	c.SetReady(true)

	code, body := serve(t, c, "/api/v1/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, body.Status)
	assert.Equal(t, StatusHealthy, body.Checks["redis"].Status)
}

func TestHealth_Statuses(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		setup      func(c *Checker)
		wantCode   int
		wantStatus Status
	}{
		{
			name:       "all healthy",
			setup:      func(c *Checker) { c.AddCheck("database", ok, true); c.AddCheck("redis", ok, true) },
			wantCode:   http.StatusOK,
			wantStatus: StatusHealthy,
		},
		{
			name:       "critical down",
			setup:      func(c *Checker) { c.AddCheck("database", down, true); c.AddCheck("redis", ok, true) },
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusUnhealthy,
		},
		{
			name:       "optional down",
			setup:      func(c *Checker) { c.AddCheck("database", ok, true); c.AddCheck("kafka", down, false) },
			wantCode:   http.StatusOK,
			wantStatus: StatusDegraded,
		},
		{
			name:       "nil pinger",
			setup:      func(c *Checker) { c.AddCheck("database", nil, true) },
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("dev")
			tt.setup(c)

			code, body := serve(t, c, "/api/v1/health")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, body.Status)
		})
	}
}
