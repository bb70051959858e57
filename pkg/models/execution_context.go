package models

import "time"

// TriggerInfo describes the event that started a run.
type TriggerInfo struct {
	Type      TriggerEventType `json:"type"`
	Data      map[string]any   `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

// ExecutionContext is the read-only input of a run. Variables collect action results keyed by node id.
type ExecutionContext struct {
	Trigger   TriggerInfo    `json:"trigger"`
	Product   *Product       `json:"product,omitempty"`
	Store     *Store         `json:"store,omitempty"`
	Movement  *Movement      `json:"movement,omitempty"`
	User      *User          `json:"user,omitempty"`
	Variables map[string]any `json:"variables"`
}

// Env returns the context as a plain map for expression evaluation and templating.
// Absent entities are left out of the map.
func (c *ExecutionContext) Env() map[string]any {
	env := map[string]any{
		"trigger": map[string]any{
			"type":      string(c.Trigger.Type),
			"data":      c.Trigger.Data,
			"timestamp": c.Trigger.Timestamp.Format(time.RFC3339),
		},
		"variables": c.Variables,
	}

	if c.Product != nil {
		env["product"] = map[string]any{
			"id":            c.Product.ID,
			"storeId":       c.Product.StoreID,
			"name":          c.Product.Name,
			"sku":           c.Product.SKU,
			"stockQuantity": c.Product.StockQuantity,
			"minStock":      c.Product.MinStock,
			"maxStock":      c.Product.MaxStock,
			"unitPrice":     c.Product.UnitPrice,
		}
	}

	if c.Store != nil {
		env["store"] = map[string]any{
			"id":    c.Store.ID,
			"name":  c.Store.Name,
			"email": c.Store.Email,
			"phone": c.Store.Phone,
		}
	}

	if c.Movement != nil {
		env["movement"] = map[string]any{
			"id":        c.Movement.ID,
			"storeId":   c.Movement.StoreID,
			"productId": c.Movement.ProductID,
			"type":      string(c.Movement.Type),
			"quantity":  c.Movement.Quantity,
			"unitCost":  c.Movement.UnitCost,
			"createdBy": c.Movement.CreatedBy,
		}
	}

	if c.User != nil {
		env["user"] = map[string]any{
			"id":    c.User.ID,
			"name":  c.User.Name,
			"email": c.User.Email,
		}
	}

	return env
}
