// Package actions dispatches ACTION and NOTIFICATION nodes to their delivery channels.
package actions

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/stockflow/pkg/models"
)

var (
	ErrUnsupportedAction = errors.New("unsupported action type")
	ErrInvalidConfig     = errors.New("invalid action config")
)

// Request is one action invocation. Config has already been interpolated against Context.
type Request struct {
	FlowID      string
	ExecutionID string
	NodeID      string
	StoreID     string
	Type        models.ActionType
	Config      map[string]any
	Context     *models.ExecutionContext
}

// Dispatcher delivers one kind of action.
type Dispatcher interface {
	Type() models.ActionType
	// Schema returns the JSON schema of the action config.
	Schema() map[string]any
	Dispatch(ctx context.Context, req Request) (map[string]any, error)
}

// Registry maps action types to their dispatchers. It is built at startup and read-only afterwards.
type Registry struct {
	dispatchers map[models.ActionType]Dispatcher
}

func NewRegistry(dispatchers ...Dispatcher) *Registry {
	r := &Registry{dispatchers: make(map[models.ActionType]Dispatcher, len(dispatchers))}

	for _, d := range dispatchers {
		r.Register(d)
	}

	return r
}

// Register adds or replaces the dispatcher of d.Type().
func (r *Registry) Register(d Dispatcher) {
	r.dispatchers[d.Type()] = d
}

func (r *Registry) Get(actionType models.ActionType) (Dispatcher, error) {
	d, ok := r.dispatchers[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAction, actionType)
	}

	return d, nil
}

// Types returns the registered action types, sorted.
func (r *Registry) Types() []models.ActionType {
	types := make([]models.ActionType, 0, len(r.dispatchers))
	for t := range r.dispatchers {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}

// Schemas returns the config schema of every registered action type.
func (r *Registry) Schemas() map[models.ActionType]map[string]any {
	schemas := make(map[models.ActionType]map[string]any, len(r.dispatchers))
	for t, d := range r.dispatchers {
		schemas[t] = d.Schema()
	}

	return schemas
}

// Dispatch runs req through the dispatcher registered for req.Type.
func (r *Registry) Dispatch(ctx context.Context, req Request) (map[string]any, error) {
	d, err := r.Get(req.Type)
	if err != nil {
		return nil, err
	}

	return d.Dispatch(ctx, req)
}

// ValidateConfig checks an action config against the schema of its channel and returns every problem found.
func (r *Registry) ValidateConfig(cfg *models.ActionConfig) []string {
	d, err := r.Get(cfg.Type)
	if err != nil {
		return []string{err.Error()}
	}

	config := cfg.Config
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(d.Schema()), gojsonschema.NewGoLoader(config))
	if err != nil {
		return []string{fmt.Sprintf("%s config could not be validated: %v", cfg.Type, err)}
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s config: %s", cfg.Type, desc.String()))
	}

	return problems
}
