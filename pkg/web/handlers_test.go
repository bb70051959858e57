package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/stockflow/pkg/actions"
	"github.com/dukex/stockflow/pkg/actions/webhook"
	"github.com/dukex/stockflow/pkg/execution"
	"github.com/dukex/stockflow/pkg/flow"
	"github.com/dukex/stockflow/pkg/mocks"
	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/persistence"
	"github.com/dukex/stockflow/pkg/persistence/file"
	"github.com/dukex/stockflow/pkg/services"
	tu "github.com/dukex/stockflow/pkg/testutil"
	"github.com/dukex/stockflow/pkg/web"
)

type testAPI struct {
	app         *fiber.App
	persistence persistence.Persistence
	bus         *mocks.MockEventBus
	hookURL     string
}

func setupTestApp(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(hook.Close)

	p := file.NewPersistence(t.TempDir())
	require.NoError(t, p.Inventory().SaveStore(t.Context(), &models.Store{ID: "s1", Name: "Main"}))
	require.NoError(t, p.Inventory().SaveProduct(t.Context(), &models.Product{ID: "P1", StoreID: "s1", Name: "Widget", StockQuantity: 3}))

	registry := actions.NewRegistry(webhook.NewDispatcher(hook.Client(), logger))
	executor := flow.NewExecutor(execution.NewBuilder(p.Inventory(), logger), registry, p.Executions(), logger)
	validate := validator.New(validator.WithRequiredStructEnabled())
	bus := &mocks.MockEventBus{}

	handlers := web.NewAPIHandlers(
		services.NewFlow(p, registry, executor, logger),
		services.NewExecution(p),
		services.NewEvents(bus, validate, logger),
		validate,
		registry,
	)

	app := fiber.New()
	web.RegisterRoutes(app, handlers)

	return &testAPI{app: app, persistence: p, bus: bus, hookURL: hook.URL}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.app.Test(req)
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

func (a *testAPI) webhookFlow(status models.FlowStatus) web.CreateFlowRequest {
	return web.CreateFlowRequest{
		StoreID: "s1",
		Name:    "Notify ERP",
		Status:  status,
		Nodes: []models.FlowNode{
			tu.TriggerNode("t1", models.EventStockChange),
			tu.ActionNode("a1", models.ActionWebhook, map[string]any{"url": a.hookURL, "body": `{"product":"{{product.name}}"}`}),
		},
		Edges:     tu.Chain("t1", "a1"),
		CreatedBy: "u1",
	}
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))

	return out
}

func TestAPIHandlers_FlowLifecycle(t *testing.T) {
	api := setupTestApp(t)

	status, raw := api.do(t, http.MethodPost, "/flows", api.webhookFlow(""))
	require.Equal(t, http.StatusCreated, status, string(raw))

	created := decode[models.Flow](t, raw)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.FlowStatusDraft, created.Status)
	require.NotNil(t, created.Nodes[1].ActionConfig())

	status, raw = api.do(t, http.MethodGet, "/flows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Notify ERP", decode[models.Flow](t, raw).Name)

	status, raw = api.do(t, http.MethodPost, "/flows/"+created.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, models.FlowStatusActive, decode[models.Flow](t, raw).Status)

	status, raw = api.do(t, http.MethodGet, "/flows?store_id=s1&status=ACTIVE", nil)
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 1, decode[map[string]any](t, raw)["total_count"], 0)

	update := web.UpdateFlowRequest{Name: "Renamed", Nodes: created.Nodes, Edges: created.Edges}
	status, raw = api.do(t, http.MethodPut, "/flows/"+created.ID, update)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, "Renamed", decode[models.Flow](t, raw).Name)

	status, _ = api.do(t, http.MethodPost, "/flows/"+created.ID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = api.do(t, http.MethodDelete, "/flows/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, raw = api.do(t, http.MethodGet, "/flows/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "flow_not_found", decode[map[string]any](t, raw)["type"])
}

func TestAPIHandlers_CreateFlow_Rejections(t *testing.T) {
	api := setupTestApp(t)

	invalid := api.webhookFlow(models.FlowStatusActive)
	invalid.Nodes = append(invalid.Nodes, tu.ActionNode("a2", models.ActionWebhook, map[string]any{}))

	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedType   string
	}{
		{name: "missing store", body: web.CreateFlowRequest{Name: "x"}, expectedStatus: http.StatusBadRequest, expectedType: "bad_request"},
		{name: "unknown status", body: map[string]any{"storeId": "s1", "name": "x", "status": "PAUSED"}, expectedStatus: http.StatusBadRequest, expectedType: "bad_request"},
		{name: "invalid active flow", body: invalid, expectedStatus: http.StatusUnprocessableEntity, expectedType: "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := api.do(t, http.MethodPost, "/flows", tt.body)
			require.Equal(t, tt.expectedStatus, status, string(raw))
			assert.Equal(t, tt.expectedType, decode[map[string]any](t, raw)["type"])
		})
	}

	_, raw := api.do(t, http.MethodPost, "/flows", invalid)
	problem := decode[struct {
		Errors []string `json:"errors"`
	}](t, raw)
	assert.Contains(t, problem.Errors, "Node a2 has no incoming connections")
	assert.Len(t, problem.Errors, 2)
}

func TestAPIHandlers_ActivateInvalidFlow(t *testing.T) {
	api := setupTestApp(t)

	draft := api.webhookFlow(models.FlowStatusDraft)
	draft.Nodes = append(draft.Nodes, tu.ActionNode("a2", models.ActionWebhook, map[string]any{}))

	status, raw := api.do(t, http.MethodPost, "/flows", draft)
	require.Equal(t, http.StatusCreated, status, string(raw))
	created := decode[models.Flow](t, raw)

	status, raw = api.do(t, http.MethodPost, "/flows/"+created.ID+"/activate", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status, string(raw))

	problem := decode[struct {
		Type     string   `json:"type"`
		Status   int      `json:"status"`
		Instance string   `json:"instance"`
		Errors   []string `json:"errors"`
	}](t, raw)
	assert.Equal(t, "validation_error", problem.Type)
	assert.Equal(t, http.StatusUnprocessableEntity, problem.Status)
	assert.Equal(t, "/flows/"+created.ID+"/activate", problem.Instance)
	assert.Contains(t, problem.Errors, "Node a2 has no incoming connections")
}

func TestAPIHandlers_Validate(t *testing.T) {
	api := setupTestApp(t)

	status, raw := api.do(t, http.MethodPost, "/flows/validate", web.ValidateFlowRequest{Name: "x"})
	require.Equal(t, http.StatusOK, status)

	result := decode[map[string]any](t, raw)
	assert.Equal(t, false, result["valid"])
	assert.Equal(t, []any{"Flow must contain at least one node"}, result["errors"])

	status, raw = api.do(t, http.MethodPost, "/nodes/validate", tu.ActionNode("a1", models.ActionWebhook, map[string]any{"url": "http://x"}))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]any](t, raw)["valid"])

	_, raw = api.do(t, http.MethodPost, "/flows", api.webhookFlow(models.FlowStatusDraft))
	created := decode[models.Flow](t, raw)

	status, raw = api.do(t, http.MethodPost, "/flows/"+created.ID+"/validate", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]any](t, raw)["valid"])
}

func TestAPIHandlers_TestFlowAndExecutions(t *testing.T) {
	api := setupTestApp(t)

	_, raw := api.do(t, http.MethodPost, "/flows", api.webhookFlow(models.FlowStatusDraft))
	created := decode[models.Flow](t, raw)

	status, raw := api.do(t, http.MethodPost, "/flows/"+created.ID+"/test", models.TriggerEvent{EventType: models.EventStockChange, ProductID: "P1"})
	require.Equal(t, http.StatusOK, status, string(raw))

	run := decode[models.FlowExecution](t, raw)
	assert.Equal(t, models.ExecutionStatusSuccess, run.Status)
	require.Len(t, run.ExecutionLog, 2)
	assert.Equal(t, models.LogStatusSuccess, run.ExecutionLog[1].Status)

	status, raw = api.do(t, http.MethodPost, "/flows/"+created.ID+"/test", models.TriggerEvent{EventType: models.EventStockAboveMax})
	require.Equal(t, http.StatusConflict, status, string(raw))

	status, raw = api.do(t, http.MethodGet, "/executions/"+run.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.ID, decode[models.FlowExecution](t, raw).FlowID)

	status, raw = api.do(t, http.MethodGet, "/flows/"+created.ID+"/executions?limit=10&status=SUCCESS", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, 1, decode[persistence.ExecutionPage](t, raw).TotalCount)

	status, _ = api.do(t, http.MethodGet, "/flows/"+created.ID+"/executions?limit=abc", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodGet, "/flows/"+created.ID+"/executions?from=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, raw = api.do(t, http.MethodGet, "/flows/"+created.ID+"/executions/stats", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[models.ExecutionStats](t, raw).Total)

	status, raw = api.do(t, http.MethodGet, "/executions/missing", nil)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "execution_not_found", decode[map[string]any](t, raw)["type"])
}

func TestAPIHandlers_EmitEvent(t *testing.T) {
	api := setupTestApp(t)
	api.bus.On("Publish", mock.Anything, "s1", mock.Anything).Return(nil).Once()

	status, raw := api.do(t, http.MethodPost, "/events", models.TriggerEvent{EventType: models.EventStockBelowMin, StoreID: "s1", ProductID: "P1"})
	require.Equal(t, http.StatusAccepted, status, string(raw))
	assert.NotEmpty(t, decode[map[string]any](t, raw)["id"])

	status, _ = api.do(t, http.MethodPost, "/events", models.TriggerEvent{EventType: models.EventStockBelowMin})
	require.Equal(t, http.StatusBadRequest, status)

	api.bus.AssertExpectations(t)
}

func TestAPIHandlers_HealthAndActions(t *testing.T) {
	api := setupTestApp(t)

	status, raw := api.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", decode[map[string]any](t, raw)["status"])

	status, raw = api.do(t, http.MethodGet, "/actions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"webhook"}, decode[map[string]any](t, raw)["types"])
}
