// Package models defines the flow graph, execution records and inventory snapshots used by the flow engine.
package models

import (
	"encoding/json"
	"fmt"
)

// NodeType identifies the role of a node in a flow graph.
type NodeType string

const (
	NodeTypeTrigger      NodeType = "TRIGGER"
	NodeTypeCondition    NodeType = "CONDITION"
	NodeTypeAction       NodeType = "ACTION"
	NodeTypeNotification NodeType = "NOTIFICATION"
)

// IsKnown reports whether t is one of the supported node types.
func (t NodeType) IsKnown() bool {
	switch t {
	case NodeTypeTrigger, NodeTypeCondition, NodeTypeAction, NodeTypeNotification:
		return true
	default:
		return false
	}
}

// RequiresConfig reports whether nodes of this type must carry a configuration.
func (t NodeType) RequiresConfig() bool {
	return t.IsKnown()
}

// Position is the editor layout of a node. It has no effect on execution.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeConfig is the tagged union of node configurations. The variant is selected by the owning node's type.
type NodeConfig interface {
	// NodeType returns the node type this configuration belongs to.
	NodeType() NodeType
}

// NodeData holds the user-facing attributes of a node.
type NodeData struct {
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Config      NodeConfig `json:"config,omitempty"`
}

// FlowNode is a vertex of a flow graph.
type FlowNode struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// FlowEdge is a directed connection between two nodes.
type FlowEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// TriggerConfig returns the node trigger configuration, or nil when the node holds another variant.
func (n *FlowNode) TriggerConfig() *TriggerConfig {
	cfg, _ := n.Data.Config.(*TriggerConfig)

	return cfg
}

// ConditionConfig returns the node condition configuration, or nil when the node holds another variant.
func (n *FlowNode) ConditionConfig() *ConditionConfig {
	cfg, _ := n.Data.Config.(*ConditionConfig)

	return cfg
}

// ActionConfig returns the node action configuration, or nil when the node holds another variant.
func (n *FlowNode) ActionConfig() *ActionConfig {
	cfg, _ := n.Data.Config.(*ActionConfig)

	return cfg
}

type rawNodeData struct {
	Label       string          `json:"label"`
	Description string          `json:"description,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

type rawFlowNode struct {
	ID       string      `json:"id"`
	Type     NodeType    `json:"type"`
	Position Position    `json:"position"`
	Data     rawNodeData `json:"data"`
}

// UnmarshalJSON decodes a node, choosing the config variant from the node type.
// Missing or null configs decode to a nil Config so validation can report them.
func (n *FlowNode) UnmarshalJSON(data []byte) error {
	var raw rawFlowNode

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Position = raw.Position
	n.Data = NodeData{
		Label:       raw.Data.Label,
		Description: raw.Data.Description,
	}

	if len(raw.Data.Config) == 0 || string(raw.Data.Config) == "null" {
		return nil
	}

	cfg, err := decodeNodeConfig(raw.Type, raw.Data.Config)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}

	n.Data.Config = cfg

	return nil
}

func decodeNodeConfig(nodeType NodeType, data json.RawMessage) (NodeConfig, error) {
	switch nodeType {
	case NodeTypeTrigger:
		var cfg TriggerConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid trigger config: %w", err)
		}

		return &cfg, nil
	case NodeTypeCondition:
		var cfg ConditionConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid condition config: %w", err)
		}

		return &cfg, nil
	case NodeTypeAction, NodeTypeNotification:
		var cfg ActionConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid action config: %w", err)
		}

		return &cfg, nil
	default:
		// Unknown node types keep no config; the validator reports the type itself.
		return nil, nil
	}
}
