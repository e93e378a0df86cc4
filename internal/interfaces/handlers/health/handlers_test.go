package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	healthsvc "ledgersync-backend/internal/application/health"
	"ledgersync-backend/internal/middleware"
	"ledgersync-backend/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHealthHandlers(t *testing.T) *Handlers {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return &Handlers{Rdb: rdb, DB: &healthsvc.GormPinger{DB: testutil.NewDB(t)}}
}

func TestJSON(t *testing.T) {
	h := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/health/json", h.JSON)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "ledgersync", out["service"])
	assert.Equal(t, "ok", out["status"])
	deps := out["dependencies"].(map[string]interface{})
	assert.Equal(t, "connected", deps["database"].(map[string]interface{})["status"])
	assert.Equal(t, "connected", deps["redis"].(map[string]interface{})["status"])
}

func TestJSON_WithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Get("/health/json", (&Handlers{}).JSON)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "issue", out["status"])
}

func TestReset(t *testing.T) {
	h := setupHealthHandlers(t)
	ctx := context.Background()
	require.NoError(t, h.Rdb.Set(ctx, middleware.KeyReqTotal, "7", 0).Err())

	app := fiber.New()
	app.Post("/reset", h.Reset)
	resp, err := app.Test(httptest.NewRequest("POST", "/reset", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	n, err := h.Rdb.Exists(ctx, middleware.KeyReqTotal).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
	start, err := h.Rdb.Get(ctx, middleware.KeyStartTime).Result()
	require.NoError(t, err)
	assert.NotEmpty(t, start)
}

func TestReset_NoRedis(t *testing.T) {
	app := fiber.New()
	app.Post("/reset", (&Handlers{}).Reset)
	resp, err := app.Test(httptest.NewRequest("POST", "/reset", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
