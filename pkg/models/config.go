package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// TriggerEventType is the inventory event a trigger node listens to.
type TriggerEventType string

const (
	EventStockChange     TriggerEventType = "stock_change"
	EventMovementCreated TriggerEventType = "movement_created"
	EventStockBelowMin   TriggerEventType = "stock_below_min"
	EventStockAboveMax   TriggerEventType = "stock_above_max"
)

// TriggerEventTypes lists every supported trigger event type.
var TriggerEventTypes = []TriggerEventType{
	EventStockChange,
	EventMovementCreated,
	EventStockBelowMin,
	EventStockAboveMax,
}

// ConditionField names a value read from the execution context.
type ConditionField string

const (
	FieldStockQuantity   ConditionField = "stock_quantity"
	FieldMovementValue   ConditionField = "movement_value"
	FieldMovementType    ConditionField = "movement_type"
	FieldStockPercentage ConditionField = "stock_percentage"
)

var conditionFields = []ConditionField{
	FieldStockQuantity,
	FieldMovementValue,
	FieldMovementType,
	FieldStockPercentage,
}

// ComparisonOperator compares a context field with a condition value.
type ComparisonOperator string

const (
	OperatorLessThan       ComparisonOperator = "<"
	OperatorGreaterThan    ComparisonOperator = ">"
	OperatorEqual          ComparisonOperator = "=="
	OperatorLessOrEqual    ComparisonOperator = "<="
	OperatorGreaterOrEqual ComparisonOperator = ">="
	OperatorNotEqual       ComparisonOperator = "!="
)

var comparisonOperators = []ComparisonOperator{
	OperatorLessThan,
	OperatorGreaterThan,
	OperatorEqual,
	OperatorLessOrEqual,
	OperatorGreaterOrEqual,
	OperatorNotEqual,
}

// IsKnown reports whether o is a supported comparison operator.
func (o ComparisonOperator) IsKnown() bool {
	return slices.Contains(comparisonOperators, o)
}

// LogicalOperator combines the results of several conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// ActionType is the delivery channel of an action or notification node.
type ActionType string

const (
	ActionEmail                ActionType = "email"
	ActionWebhook              ActionType = "webhook"
	ActionInternalNotification ActionType = "internal_notification"
	ActionSMS                  ActionType = "sms"
	ActionPushNotification     ActionType = "push_notification"
)

// ActionTypes lists every supported action type.
var ActionTypes = []ActionType{
	ActionEmail,
	ActionWebhook,
	ActionInternalNotification,
	ActionSMS,
	ActionPushNotification,
}

// ErrInvalidNodeConfig is returned by the config constructors when required fields are missing.
var ErrInvalidNodeConfig = errors.New("invalid node config")

// TriggerFilters narrows the events a trigger reacts to. An empty dimension matches every value.
type TriggerFilters struct {
	ProductIDs    []string       `json:"productIds,omitempty"`
	StoreIDs      []string       `json:"storeIds,omitempty"`
	MovementTypes []MovementType `json:"movementTypes,omitempty"`
}

// Matches reports whether the event values satisfy every present filter dimension.
func (f *TriggerFilters) Matches(productID, storeID string, movementType MovementType) bool {
	if f == nil {
		return true
	}

	if len(f.ProductIDs) > 0 && !slices.Contains(f.ProductIDs, productID) {
		return false
	}

	if len(f.StoreIDs) > 0 && !slices.Contains(f.StoreIDs, storeID) {
		return false
	}

	if len(f.MovementTypes) > 0 && !slices.Contains(f.MovementTypes, movementType) {
		return false
	}

	return true
}

// TriggerConfig configures a TRIGGER node.
type TriggerConfig struct {
	EventType TriggerEventType `json:"eventType"`
	Filters   *TriggerFilters  `json:"filters,omitempty"`
}

// NewTriggerConfig builds a trigger config, rejecting unknown event types.
func NewTriggerConfig(eventType TriggerEventType, filters TriggerFilters) (*TriggerConfig, error) {
	cfg := &TriggerConfig{EventType: eventType, Filters: &filters}

	return cfg, asConfigError(cfg.Problems())
}

func (c *TriggerConfig) NodeType() NodeType { return NodeTypeTrigger }

// Problems lists the missing or invalid fields of the config.
func (c *TriggerConfig) Problems() []string {
	var problems []string

	switch {
	case c.EventType == "":
		problems = append(problems, "eventType is required")
	case !slices.Contains(TriggerEventTypes, c.EventType):
		problems = append(problems, fmt.Sprintf("unknown eventType %q", c.EventType))
	}

	if c.Filters == nil {
		problems = append(problems, "filters is required")
	}

	return problems
}

// Condition compares one context field with a value.
type Condition struct {
	Field    ConditionField     `json:"field"`
	Operator ComparisonOperator `json:"operator"`
	Value    any                `json:"value"`
}

// ConditionConfig configures a CONDITION node.
type ConditionConfig struct {
	Conditions      []Condition     `json:"conditions"`
	LogicalOperator LogicalOperator `json:"logicalOperator"`
}

// NewConditionConfig builds a condition config, rejecting empty or malformed condition lists.
func NewConditionConfig(logical LogicalOperator, conditions ...Condition) (*ConditionConfig, error) {
	cfg := &ConditionConfig{Conditions: conditions, LogicalOperator: logical}

	return cfg, asConfigError(cfg.Problems())
}

func (c *ConditionConfig) NodeType() NodeType { return NodeTypeCondition }

// Problems lists the missing or invalid fields of the config.
func (c *ConditionConfig) Problems() []string {
	var problems []string

	if len(c.Conditions) == 0 {
		problems = append(problems, "conditions must contain at least one condition")
	}

	for i, cond := range c.Conditions {
		if !slices.Contains(conditionFields, cond.Field) {
			problems = append(problems, fmt.Sprintf("condition %d: unknown field %q", i, cond.Field))
		}

		if !cond.Operator.IsKnown() {
			problems = append(problems, fmt.Sprintf("condition %d: unknown operator %q", i, cond.Operator))
		}
	}

	switch c.LogicalOperator {
	case LogicalAnd, LogicalOr:
	case "":
		problems = append(problems, "logicalOperator is required")
	default:
		problems = append(problems, fmt.Sprintf("unknown logicalOperator %q", c.LogicalOperator))
	}

	return problems
}

// ActionConfig configures ACTION and NOTIFICATION nodes. Config is the channel specific payload.
type ActionConfig struct {
	Type   ActionType     `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// NewActionConfig builds an action config, rejecting unknown channels.
func NewActionConfig(actionType ActionType, config map[string]any) (*ActionConfig, error) {
	cfg := &ActionConfig{Type: actionType, Config: config}

	return cfg, asConfigError(cfg.Problems())
}

func (c *ActionConfig) NodeType() NodeType { return NodeTypeAction }

// Problems lists the missing or invalid fields of the config.
func (c *ActionConfig) Problems() []string {
	switch {
	case c.Type == "":
		return []string{"type is required"}
	case !slices.Contains(ActionTypes, c.Type):
		return []string{fmt.Sprintf("unknown action type %q", c.Type)}
	default:
		return nil
	}
}

// Accepts reports whether cfg is the config variant expected for nodes of type t.
func (t NodeType) Accepts(cfg NodeConfig) bool {
	if cfg == nil {
		return false
	}

	switch t {
	case NodeTypeTrigger:
		_, ok := cfg.(*TriggerConfig)

		return ok
	case NodeTypeCondition:
		_, ok := cfg.(*ConditionConfig)

		return ok
	case NodeTypeAction, NodeTypeNotification:
		_, ok := cfg.(*ActionConfig)

		return ok
	default:
		return false
	}
}

func asConfigError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrInvalidNodeConfig, strings.Join(problems, "; "))
}
