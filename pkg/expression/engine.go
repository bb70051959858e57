// Package expression evaluates flow conditions and renders {{path}} placeholders with expr-lang.
package expression

import (
	"errors"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/dukex/stockflow/pkg/models"
)

var (
	ErrUnknownField           = errors.New("unknown condition field")
	ErrUnknownOperator        = errors.New("unknown comparison operator")
	ErrUnknownLogicalOperator = errors.New("unknown logical operator")
)

// Engine compiles expressions once and caches the programs. It is safe for concurrent use.
type Engine struct {
	programCache map[string]*vm.Program
	mu           sync.RWMutex
}

// NewEngine creates an engine with an empty program cache.
func NewEngine() *Engine {
	return &Engine{programCache: make(map[string]*vm.Program)}
}

// Evaluate compiles (if needed) and runs code against env.
func (e *Engine) Evaluate(code string, env map[string]any) (any, error) {
	program, err := e.getProgram(code)
	if err != nil {
		return nil, err
	}

	return expr.Run(program, env)
}

// Compile checks that code is a valid expression.
func (e *Engine) Compile(code string) error {
	_, err := e.getProgram(code)

	return err
}

func (e *Engine) getProgram(code string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.programCache[code]; ok {
		e.mu.RUnlock()

		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prog, ok := e.programCache[code]; ok {
		return prog, nil
	}

	program, err := expr.Compile(code, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	e.programCache[code] = program

	return program, nil
}

// Compare evaluates `actual <op> expected`.
func (e *Engine) Compare(actual any, op models.ComparisonOperator, expected any) (bool, error) {
	if !op.IsKnown() {
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}

	out, err := e.Evaluate("actual "+string(op)+" expected", map[string]any{
		"actual":   actual,
		"expected": expected,
	})
	if err != nil {
		return false, fmt.Errorf("cannot compare %v %s %v: %w", actual, op, expected, err)
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("comparison %v %s %v returned %T", actual, op, expected, out)
	}

	return result, nil
}

// EvaluateCondition resolves the condition field from the context and compares it.
// A field whose entity is absent from the context never holds.
func (e *Engine) EvaluateCondition(cond models.Condition, execCtx *models.ExecutionContext) (bool, error) {
	actual, present, err := ResolveField(cond.Field, execCtx)
	if err != nil {
		return false, err
	}

	if !present {
		return false, nil
	}

	return e.Compare(actual, cond.Operator, normalize(cond.Value))
}

// EvaluateConditions evaluates every condition and combines the results with the logical operator.
// All conditions are evaluated so a malformed one is reported even when the outcome is already known.
func (e *Engine) EvaluateConditions(cfg *models.ConditionConfig, execCtx *models.ExecutionContext) (bool, error) {
	if cfg.LogicalOperator != models.LogicalAnd && cfg.LogicalOperator != models.LogicalOr {
		return false, fmt.Errorf("%w: %q", ErrUnknownLogicalOperator, cfg.LogicalOperator)
	}

	if len(cfg.Conditions) == 0 {
		return false, errors.New("condition list is empty")
	}

	all, anyHolds := true, false

	for i, cond := range cfg.Conditions {
		ok, err := e.EvaluateCondition(cond, execCtx)
		if err != nil {
			return false, fmt.Errorf("condition %d: %w", i, err)
		}

		all = all && ok
		anyHolds = anyHolds || ok
	}

	if cfg.LogicalOperator == models.LogicalAnd {
		return all, nil
	}

	return anyHolds, nil
}

// ResolveField reads a condition field from the context. present is false when the entity the field
// depends on is missing.
func ResolveField(field models.ConditionField, execCtx *models.ExecutionContext) (value any, present bool, err error) {
	switch field {
	case models.FieldStockQuantity:
		if execCtx.Product == nil {
			return nil, false, nil
		}

		return execCtx.Product.StockQuantity, true, nil
	case models.FieldMovementValue:
		if execCtx.Movement == nil {
			return nil, false, nil
		}

		return execCtx.Movement.Quantity, true, nil
	case models.FieldMovementType:
		if execCtx.Movement == nil {
			return nil, false, nil
		}

		return string(execCtx.Movement.Type), true, nil
	case models.FieldStockPercentage:
		if execCtx.Product == nil {
			return nil, false, nil
		}

		pct, ok := execCtx.Product.StockPercentage()

		return pct, ok, nil
	default:
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

// normalize widens integer condition values so they compare with float64 context fields.
func normalize(value any) any {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	default:
		return value
	}
}
