package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dukex/stockflow/pkg/cmd"
	"github.com/dukex/stockflow/pkg/mocks"
	"github.com/dukex/stockflow/pkg/persistence/file"
)

func setupTestApp(t *testing.T) (*fiber.App, *mocks.MockEventBus) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	persistence := file.NewPersistence(t.TempDir())
	bus := &mocks.MockEventBus{}

	registry := cmd.NewActionRegistry(cmd.ActionsConfig{}, bus, logger)

	executor, err := cmd.NewExecutor(persistence, registry, bus, noop.NewTracerProvider().Tracer("test"), cmd.ExecutorConfig{}, logger)
	require.NoError(t, err)

	return NewAPI(logger, persistence, registry, executor, bus).App(), bus
}

func request(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	status, body := request(t, app, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Stockflow API", string(body))
}

func TestAPI_Probes(t *testing.T) {
	app, _ := setupTestApp(t)

	for _, path := range []string{"/livez", "/readyz"} {
		status, _ := request(t, app, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, status, path)
	}

	status, body := request(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
}

func TestAPI_ActionsWithoutOptionalChannels(t *testing.T) {
	app, _ := setupTestApp(t)

	status, body := request(t, app, http.MethodGet, "/actions", nil)
	require.Equal(t, http.StatusOK, status)

	var payload struct {
		Types []string `json:"types"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, []string{"internal_notification", "webhook"}, payload.Types)
}

func TestAPI_CreateAndListFlows(t *testing.T) {
	app, _ := setupTestApp(t)

	status, body := request(t, app, http.MethodPost, "/flows", map[string]any{
		"storeId": "s1",
		"name":    "Restock alert",
		"nodes": []map[string]any{
			{
				"id":   "t1",
				"type": "trigger",
				"data": map[string]any{"label": "Low stock", "config": map[string]any{"eventType": "stock_below_min"}},
			},
		},
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = request(t, app, http.MethodGet, "/flows?store_id=s1", nil)
	require.Equal(t, http.StatusOK, status)

	var list struct {
		TotalCount int `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, list.TotalCount)
}

func TestAPI_EmitEventPublishes(t *testing.T) {
	app, bus := setupTestApp(t)

	bus.On("Publish", mock.Anything, "s1", mock.Anything).Return(nil).Once()

	status, body := request(t, app, http.MethodPost, "/events", map[string]any{
		"storeId":   "s1",
		"eventType": "stock_below_min",
		"productId": "P1",
	})
	require.Equal(t, http.StatusAccepted, status, string(body))

	bus.AssertExpectations(t)
}
