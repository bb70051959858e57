// Package web provides the HTTP handlers of the flow API.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/stockflow/pkg/actions"
	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/services"
)

type APIHandlers struct {
	flowService      *services.Flow
	executionService *services.Execution
	eventsService    *services.Events
	validator        *validator.Validate
	registry         *actions.Registry
}

func NewAPIHandlers(
	flowService *services.Flow,
	executionService *services.Execution,
	eventsService *services.Events,
	validator *validator.Validate,
	registry *actions.Registry,
) *APIHandlers {
	return &APIHandlers{
		flowService:      flowService,
		executionService: executionService,
		eventsService:    eventsService,
		validator:        validator,
		registry:         registry,
	}
}

// RegisterRoutes mounts the flow API on router.
func RegisterRoutes(router fiber.Router, h *APIHandlers) {
	f := router.Group("/flows")
	f.Get("/", h.GetFlows)
	f.Post("/", h.CreateFlow)
	f.Post("/validate", h.ValidateFlowDefinition)
	f.Get("/:id", h.GetFlow)
	f.Put("/:id", h.UpdateFlow)
	f.Delete("/:id", h.DeleteFlow)
	f.Post("/:id/activate", h.ActivateFlow)
	f.Post("/:id/deactivate", h.DeactivateFlow)
	f.Post("/:id/validate", h.ValidateFlow)
	f.Post("/:id/test", h.TestFlow)
	f.Get("/:id/executions", h.GetFlowExecutions)
	f.Get("/:id/executions/stats", h.GetFlowExecutionStats)

	router.Post("/nodes/validate", h.ValidateNode)
	router.Get("/actions", h.GetActions)
	router.Get("/executions/:id", h.GetExecution)
	router.Post("/events", h.EmitEvent)
	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.flowService.List(c.Context(), services.ListFlowsRequest{
		StoreID: c.Query("store_id"),
		Status:  c.Query("status"),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"flows":       flows,
		"total_count": len(flows),
	})
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.flowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.flowService.Create(c.Context(), req.Flow())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.flowService.Update(c.Context(), c.Params("id"), req.Flow())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	err := h.flowService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateFlow(c fiber.Ctx) error {
	flow, err := h.flowService.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) DeactivateFlow(c fiber.Ctx) error {
	flow, err := h.flowService.Deactivate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) ValidateFlow(c fiber.Ctx) error {
	result, err := h.flowService.ValidateByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ValidateFlowDefinition(c fiber.Ctx) error {
	var req ValidateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	return c.JSON(h.flowService.Validate(&models.Flow{Name: req.Name, Nodes: req.Nodes, Edges: req.Edges}))
}

func (h *APIHandlers) ValidateNode(c fiber.Ctx) error {
	var node models.FlowNode
	if err := c.Bind().JSON(&node); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	return c.JSON(h.flowService.ValidateNode(node))
}

func (h *APIHandlers) TestFlow(c fiber.Ctx) error {
	var event models.TriggerEvent
	if err := c.Bind().JSON(&event); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	execution, err := h.flowService.Test(c.Context(), c.Params("id"), &event)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetFlowExecutions(c fiber.Ctx) error {
	req, err := parseListExecutionsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	page, err := h.executionService.List(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(page)
}

// parseListExecutionsRequest reads the pagination and filter query parameters.
func parseListExecutionsRequest(c fiber.Ctx) (*services.ListExecutionsRequest, error) {
	req := &services.ListExecutionsRequest{
		FlowID:      c.Params("id"),
		Status:      c.Query("status"),
		TriggerType: c.Query("trigger_type"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	for name, target := range map[string]**time.Time{"from": &req.From, "to": &req.To} {
		value := c.Query(name)
		if value == "" {
			continue
		}

		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return nil, err
		}

		*target = &parsed
	}

	return req, nil
}

func (h *APIHandlers) GetFlowExecutionStats(c fiber.Ctx) error {
	stats, err := h.executionService.Stats(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.executionService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) EmitEvent(c fiber.Ctx) error {
	var event models.TriggerEvent
	if err := c.Bind().JSON(&event); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	published, err := h.eventsService.Emit(c.Context(), &event)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(published)
}

// GetActions lists the available action channels with their config schemas.
func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"types":   h.registry.Types(),
		"schemas": h.registry.Schemas(),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Stockflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Stockflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
			"actions":    len(h.registry.Types()),
		},
		"timestamp": time.Now().UTC(),
	})
}
