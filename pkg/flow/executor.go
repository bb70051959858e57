// Package flow runs flows against inventory events.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/stockflow/pkg/actions"
	"github.com/dukex/stockflow/pkg/events"
	"github.com/dukex/stockflow/pkg/expression"
	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/otelhelper"
	"github.com/dukex/stockflow/pkg/persistence"
	"github.com/dukex/stockflow/pkg/validation"
)

var (
	ErrFlowNotActive     = errors.New("flow is not active")
	ErrTriggerNotMatched = errors.New("no trigger of the flow matches the event")
)

// ContextBuilder assembles the execution context of an event.
type ContextBuilder interface {
	Build(ctx context.Context, event *models.TriggerEvent) (*models.ExecutionContext, error)
}

// ActionDispatcher delivers ACTION and NOTIFICATION nodes.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, req actions.Request) (map[string]any, error)
}

type Executor struct {
	builder    ContextBuilder
	dispatcher ActionDispatcher
	executions persistence.ExecutionRepository
	engine     *expression.Engine
	logger     *slog.Logger
	config     config
}

func NewExecutor(
	builder ContextBuilder,
	dispatcher ActionDispatcher,
	executions persistence.ExecutionRepository,
	logger *slog.Logger,
	opts ...Option,
) *Executor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Executor{
		builder:    builder,
		dispatcher: dispatcher,
		executions: executions,
		engine:     expression.NewEngine(),
		logger:     logger.With("module", "flow_executor"),
		config:     cfg,
	}
}

// Execute runs an ACTIVE flow for event. No execution is created when the flow is inactive or none of
// its triggers match; otherwise the returned record is already persisted.
func (e *Executor) Execute(ctx context.Context, flow *models.Flow, event *models.TriggerEvent) (*models.FlowExecution, error) {
	if !flow.IsActive() {
		return nil, fmt.Errorf("%w: %s is %s", ErrFlowNotActive, flow.ID, flow.Status)
	}

	return e.run(ctx, flow, event)
}

// Test runs flow for event whatever its status.
func (e *Executor) Test(ctx context.Context, flow *models.Flow, event *models.TriggerEvent) (*models.FlowExecution, error) {
	return e.run(ctx, flow, event)
}

// MatchingTriggers returns the trigger nodes of flow listening to event, in declaration order.
func MatchingTriggers(flow *models.Flow, event *models.TriggerEvent) []*models.FlowNode {
	if event.StoreID != flow.StoreID {
		return nil
	}

	productID := event.EffectiveProductID()
	movementType := event.EffectiveMovementType()

	var matched []*models.FlowNode

	for _, node := range flow.TriggerNodes() {
		cfg := node.TriggerConfig()
		if cfg == nil || cfg.EventType != event.EventType {
			continue
		}

		if cfg.Filters.Matches(productID, event.StoreID, movementType) {
			matched = append(matched, node)
		}
	}

	return matched
}

func (e *Executor) run(ctx context.Context, flow *models.Flow, event *models.TriggerEvent) (*models.FlowExecution, error) {
	triggers := MatchingTriggers(flow, event)
	if len(triggers) == 0 {
		return nil, fmt.Errorf("%w: flow %s, event %s", ErrTriggerNotMatched, flow.ID, event.EventType)
	}

	execution := &models.FlowExecution{
		ID:           e.config.newID(),
		FlowID:       flow.ID,
		Status:       models.ExecutionStatusRunning,
		TriggerType:  string(event.EventType),
		TriggerData:  event.Data(),
		ExecutionLog: make([]models.ExecutionLogEntry, 0, len(flow.Nodes)),
		StartedAt:    e.config.now(),
	}

	logger := e.logger.With("flow_id", flow.ID, "execution_id", execution.ID, "store_id", flow.StoreID)

	ctx, span := otelhelper.StartSpan(ctx, e.config.tracer, "flow.execute",
		attribute.String(otelhelper.FlowIDKey, flow.ID),
		attribute.String(otelhelper.FlowNameKey, flow.Name),
		attribute.String(otelhelper.StoreIDKey, flow.StoreID),
		attribute.String(otelhelper.TriggerTypeKey, execution.TriggerType),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
	)
	defer span.End()

	logger.InfoContext(ctx, "Starting flow execution", "trigger_type", execution.TriggerType)

	if e.config.startCheckpoint {
		err := e.executions.Save(ctx, execution)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
		}
	}

	status, errMsg := e.evaluate(ctx, logger, flow, event, triggers, execution)

	return e.finish(ctx, logger, span, flow, execution, status, errMsg)
}

// evaluate validates the flow, builds the context and walks the graph. It never returns a Go error:
// anything that stops the run becomes a FAILED or CANCELLED status.
func (e *Executor) evaluate(
	ctx context.Context,
	logger *slog.Logger,
	flow *models.Flow,
	event *models.TriggerEvent,
	triggers []*models.FlowNode,
	execution *models.FlowExecution,
) (status models.ExecutionStatus, errMsg string) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Recovered panic during flow execution", "panic", r)

			status, errMsg = models.ExecutionStatusFailed, fmt.Sprintf("panic during execution: %v", r)
		}
	}()

	result := validation.ValidateFlow(flow.Nodes, flow.Edges, flow.Name)
	if !result.Valid {
		return models.ExecutionStatusFailed, "flow is invalid: " + strings.Join(result.Errors, "; ")
	}

	if err := ctx.Err(); err != nil {
		return models.ExecutionStatusCancelled, fmt.Sprintf("execution cancelled: %v", err)
	}

	execCtx, err := e.builder.Build(ctx, event)
	if err != nil {
		return models.ExecutionStatusFailed, fmt.Sprintf("failed to build execution context: %v", err)
	}

	if execCtx.Variables == nil {
		execCtx.Variables = make(map[string]any)
	}

	w := &walker{
		executor:  e,
		logger:    logger,
		flow:      flow,
		execCtx:   execCtx,
		execution: execution,
	}

	return w.walk(ctx, triggers)
}

func (e *Executor) finish(
	ctx context.Context,
	logger *slog.Logger,
	span trace.Span,
	flow *models.Flow,
	execution *models.FlowExecution,
	status models.ExecutionStatus,
	errMsg string,
) (*models.FlowExecution, error) {
	execution.Complete(status, errMsg, e.config.now())

	otelhelper.RecordExecution(span, string(status), errMsg)

	// the run may have been cancelled; the record is still written.
	saveCtx := context.WithoutCancel(ctx)

	err := e.executions.Save(saveCtx, execution)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to save execution", "error", err)

		return execution, fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	logger.InfoContext(ctx, "Flow execution finished",
		"status", status,
		"duration_ms", *execution.DurationMs,
		"nodes_visited", len(execution.ExecutionLog),
	)

	if e.config.publisher != nil {
		err = e.config.publisher.Publish(saveCtx, flow.StoreID, events.NewFlowExecutionFinished(flow, execution))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to publish execution finished event", "error", err)
		}
	}

	return execution, nil
}

// walker holds the state of one run.
type walker struct {
	executor  *Executor
	logger    *slog.Logger
	flow      *models.Flow
	execCtx   *models.ExecutionContext
	execution *models.FlowExecution
}

// nodeOutcome is the result of visiting one node.
type nodeOutcome struct {
	entry models.ExecutionLogEntry
	// next is true when the outgoing edges must be followed.
	next bool
	// fatal ends the run FAILED whatever the policy.
	fatal bool
	// actionFailed marks a failed ACTION or NOTIFICATION dispatch.
	actionFailed bool
}

// walk visits the graph depth first from each trigger, first edge first. Each node is visited once.
func (w *walker) walk(ctx context.Context, triggers []*models.FlowNode) (models.ExecutionStatus, string) {
	visited := make(map[string]bool, len(w.flow.Nodes))

	for _, trigger := range triggers {
		stack := []string{trigger.ID}

		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if visited[id] {
				continue
			}

			visited[id] = true

			if err := ctx.Err(); err != nil {
				return models.ExecutionStatusCancelled, fmt.Sprintf("execution cancelled: %v", err)
			}

			node := w.flow.Node(id)
			if node == nil {
				continue
			}

			outcome := w.visit(ctx, node)
			w.execution.Append(outcome.entry)

			// a dispatch interrupted by cancellation is not an action failure.
			if err := ctx.Err(); err != nil {
				return models.ExecutionStatusCancelled, fmt.Sprintf("execution cancelled: %v", err)
			}

			if outcome.fatal {
				return models.ExecutionStatusFailed, fmt.Sprintf("node %s: %s", node.ID, outcome.entry.Error)
			}

			if outcome.actionFailed && w.executor.config.policy == PolicyFailFast {
				return models.ExecutionStatusFailed, fmt.Sprintf("action node %s failed: %s", node.ID, outcome.entry.Error)
			}

			if !outcome.next {
				continue
			}

			edges := w.flow.OutgoingEdges(node.ID)
			for _, edge := range slices.Backward(edges) {
				if !visited[edge.Target] {
					stack = append(stack, edge.Target)
				}
			}
		}
	}

	return models.ExecutionStatusSuccess, ""
}

func (w *walker) visit(ctx context.Context, node *models.FlowNode) nodeOutcome {
	ctx, span := otelhelper.StartSpan(ctx, w.executor.config.tracer, "flow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	start := w.executor.config.now()

	var outcome nodeOutcome

	switch node.Type {
	case models.NodeTypeTrigger:
		outcome = nodeOutcome{entry: models.ExecutionLogEntry{Status: models.LogStatusSuccess}, next: true}
	case models.NodeTypeCondition:
		outcome = w.visitCondition(node)
	case models.NodeTypeAction, models.NodeTypeNotification:
		outcome = w.visitAction(ctx, node, span)
	default:
		outcome = failed(fmt.Sprintf("unknown node type %q", node.Type), true)
	}

	if outcome.entry.Status == models.LogStatusFailed {
		otelhelper.RecordNodeFailure(span, node.ID, outcome.entry.Error)
	}

	duration := w.executor.config.now().Sub(start).Milliseconds()

	outcome.entry.NodeID = node.ID
	outcome.entry.NodeType = node.Type
	outcome.entry.Timestamp = start
	outcome.entry.DurationMs = &duration

	w.logger.DebugContext(ctx, "Visited node", "node_id", node.ID, "node_type", node.Type, "status", outcome.entry.Status)

	return outcome
}

func failed(msg string, fatal bool) nodeOutcome {
	return nodeOutcome{
		entry:        models.ExecutionLogEntry{Status: models.LogStatusFailed, Error: msg},
		fatal:        fatal,
		actionFailed: !fatal,
	}
}

func (w *walker) visitCondition(node *models.FlowNode) nodeOutcome {
	cfg := node.ConditionConfig()
	if cfg == nil {
		return failed("condition node has no condition configuration", true)
	}

	ok, err := w.executor.engine.EvaluateConditions(cfg, w.execCtx)
	if err != nil {
		return failed(err.Error(), true)
	}

	if !ok {
		return nodeOutcome{entry: models.ExecutionLogEntry{Status: models.LogStatusSkipped}}
	}

	return nodeOutcome{entry: models.ExecutionLogEntry{Status: models.LogStatusSuccess}, next: true}
}

func (w *walker) visitAction(ctx context.Context, node *models.FlowNode, span trace.Span) nodeOutcome {
	cfg := node.ActionConfig()
	if cfg == nil {
		return failed("action node has no action configuration", true)
	}

	span.SetAttributes(attribute.String(otelhelper.ActionTypeKey, string(cfg.Type)))

	rendered, err := w.executor.engine.InterpolateValue(cfg.Config, w.execCtx.Env())
	if err != nil {
		return failed(err.Error(), false)
	}

	config, _ := rendered.(map[string]any)
	if config == nil {
		config = map[string]any{}
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, w.executor.config.actionTimeout)
	defer cancel()

	result, err := w.executor.dispatcher.Dispatch(dispatchCtx, actions.Request{
		FlowID:      w.flow.ID,
		ExecutionID: w.execution.ID,
		NodeID:      node.ID,
		StoreID:     w.flow.StoreID,
		Type:        cfg.Type,
		Config:      config,
		Context:     w.execCtx,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("action timed out after %s: %w", w.executor.config.actionTimeout, err)
		}

		w.logger.WarnContext(ctx, "Action failed", "node_id", node.ID, "action_type", cfg.Type, "error", err)

		return failed(err.Error(), false)
	}

	w.execCtx.Variables[node.ID] = result

	return nodeOutcome{
		entry: models.ExecutionLogEntry{Status: models.LogStatusSuccess, Result: result},
		next:  true,
	}
}
