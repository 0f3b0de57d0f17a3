package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/user-directory/internal/observability"
	apperrors "github.com/spec-kit/user-directory/pkg/util"
)

func TestRequestTimeoutReachesHandlers(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 2*time.Second)

	var hasDeadline bool
	app.Get("/deadline", func(c *fiber.Ctx) error {
		_, hasDeadline = c.UserContext().Deadline()
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/deadline", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, hasDeadline, "handlers must see the timeout-bounded context")
}

func TestErrorEnvelope(t *testing.T) {
	app := fiber.New()
	metrics := observability.NewMetrics()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)

	app.Get("/missing", func(c *fiber.Ctx) error {
		return apperrors.NewNotFound("user", map[string]any{"id": "x"})
	})
	app.Get("/broken", func(c *fiber.Ctx) error {
		panic("boom")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, "x", body.Error.Details["id"])

	resp, err = app.Test(httptest.NewRequest("GET", "/broken", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	_, errCounts := metrics.Snapshot()
	assert.EqualValues(t, 1, errCounts["/missing|GET|NOT_FOUND"])
	assert.EqualValues(t, 1, errCounts["/broken|GET|INTERNAL_ERROR"])
}
