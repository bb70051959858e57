// Package validation checks flow graphs before they are activated or executed.
package validation

import (
	"fmt"

	"github.com/dukex/stockflow/pkg/models"
)

// MaxDepth bounds the length of any traversal path, counted in nodes.
const MaxDepth = 100

// Result is the outcome of a validation. Errors is never nil.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func newResult(errs []string) Result {
	if errs == nil {
		errs = []string{}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ValidateFlow reports every structural problem of a flow graph. It performs no I/O.
func ValidateFlow(nodes []models.FlowNode, edges []models.FlowEdge, name string) Result {
	if len(nodes) == 0 {
		return newResult([]string{"Flow must contain at least one node"})
	}

	var errs []string

	if name == "" {
		errs = append(errs, "Flow name is required")
	}

	if !hasTrigger(nodes) {
		errs = append(errs, "Flow must contain at least one trigger node")
	}

	ids := make(map[string]struct{}, len(nodes))

	for _, node := range nodes {
		if _, seen := ids[node.ID]; seen {
			errs = append(errs, "Duplicate node ID: "+node.ID)
		}

		ids[node.ID] = struct{}{}
	}

	for _, node := range nodes {
		if node.Data.Label == "" {
			errs = append(errs, fmt.Sprintf("Node %s must have a label", node.ID))
		}

		switch {
		case !node.Type.IsKnown():
			errs = append(errs, fmt.Sprintf("Node %s has unknown type %q", node.ID, node.Type))
		case node.Type.RequiresConfig() && node.Data.Config == nil:
			errs = append(errs, fmt.Sprintf("Node %s (%s) must have a configuration", node.ID, node.Type))
		case !node.Type.Accepts(node.Data.Config):
			errs = append(errs, fmt.Sprintf("Node %s (%s) has a configuration of the wrong kind", node.ID, node.Type))
		}
	}

	incoming := make(map[string]int, len(nodes))

	for _, edge := range edges {
		if edge.Source == edge.Target {
			errs = append(errs, fmt.Sprintf("Edge %s cannot connect node %s to itself", edge.ID, edge.Source))
		}

		if _, ok := ids[edge.Source]; !ok {
			errs = append(errs, fmt.Sprintf("Edge %s references non-existent source node %s", edge.ID, edge.Source))
		}

		if _, ok := ids[edge.Target]; !ok {
			errs = append(errs, fmt.Sprintf("Edge %s references non-existent target node %s", edge.ID, edge.Target))
		}

		incoming[edge.Target]++
	}

	for _, node := range nodes {
		if node.Type != models.NodeTypeTrigger && incoming[node.ID] == 0 {
			errs = append(errs, fmt.Sprintf("Node %s has no incoming connections", node.ID))
		}
	}

	errs = append(errs, detectLoops(nodes, buildAdjacency(ids, edges))...)

	return newResult(errs)
}

// ValidateNodeConfig checks the configuration shape of a single node.
func ValidateNodeConfig(node models.FlowNode) Result {
	if !node.Type.IsKnown() {
		return newResult([]string{fmt.Sprintf("Node %s has unknown type %q", node.ID, node.Type)})
	}

	if node.Data.Config == nil {
		return newResult([]string{fmt.Sprintf("Node %s (%s) must have a configuration", node.ID, node.Type)})
	}

	var problems []string

	switch cfg := node.Data.Config.(type) {
	case *models.TriggerConfig:
		problems = cfg.Problems()
	case *models.ConditionConfig:
		problems = cfg.Problems()
	case *models.ActionConfig:
		problems = cfg.Problems()
	}

	if !node.Type.Accepts(node.Data.Config) {
		problems = append(problems, "configuration of the wrong kind")
	}

	errs := make([]string, 0, len(problems))
	for _, problem := range problems {
		errs = append(errs, fmt.Sprintf("Node %s: %s", node.ID, problem))
	}

	return newResult(errs)
}

func hasTrigger(nodes []models.FlowNode) bool {
	for _, node := range nodes {
		if node.Type == models.NodeTypeTrigger {
			return true
		}
	}

	return false
}

// buildAdjacency keeps only edges between existing, distinct nodes.
func buildAdjacency(ids map[string]struct{}, edges []models.FlowEdge) map[string][]string {
	adj := make(map[string][]string, len(ids))

	for _, edge := range edges {
		if edge.Source == edge.Target {
			continue
		}

		if _, ok := ids[edge.Source]; !ok {
			continue
		}

		if _, ok := ids[edge.Target]; !ok {
			continue
		}

		adj[edge.Source] = append(adj[edge.Source], edge.Target)
	}

	return adj
}

type frame struct {
	id    string
	next  int
	depth int
}

// detectLoops runs an iterative depth-first search from every unvisited node, in declaration order.
// A back edge to a node on the current path is a loop; a path longer than MaxDepth aborts the traversal
// from its root.
func detectLoops(nodes []models.FlowNode, adj map[string][]string) []string {
	var errs []string

	visited := make(map[string]bool, len(nodes))
	onPath := make(map[string]bool)
	reported := make(map[string]bool)

	for _, root := range nodes {
		if visited[root.ID] {
			continue
		}

		visited[root.ID] = true
		onPath[root.ID] = true
		stack := []frame{{id: root.ID, depth: 1}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := adj[top.id]

			if top.next >= len(children) {
				onPath[top.id] = false
				stack = stack[:len(stack)-1]

				continue
			}

			child := children[top.next]
			top.next++

			if onPath[child] {
				if !reported[child] {
					reported[child] = true
					errs = append(errs, "Infinite loop detected at node "+child)
				}

				continue
			}

			if visited[child] {
				continue
			}

			if top.depth+1 > MaxDepth {
				errs = append(errs, fmt.Sprintf(
					"Potential infinite loop detected starting from node %s (depth > %d)", root.ID, MaxDepth))

				for _, f := range stack {
					onPath[f.id] = false
				}

				break
			}

			visited[child] = true
			onPath[child] = true
			stack = append(stack, frame{id: child, depth: top.depth + 1})
		}
	}

	return errs
}
