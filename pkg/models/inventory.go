package models

import "time"

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementTransfer   MovementType = "TRANSFER"
)

// Product is a read snapshot of a stocked product.
type Product struct {
	ID            string  `json:"id"`
	StoreID       string  `json:"storeId"`
	Name          string  `json:"name"`
	SKU           string  `json:"sku,omitempty"`
	StockQuantity float64 `json:"stockQuantity"`
	MinStock      float64 `json:"minStock"`
	MaxStock      float64 `json:"maxStock"`
	UnitPrice     float64 `json:"unitPrice"`
}

// StockPercentage returns stock as a percentage of MaxStock. ok is false when MaxStock is not positive.
func (p *Product) StockPercentage() (pct float64, ok bool) {
	if p.MaxStock <= 0 {
		return 0, false
	}

	return p.StockQuantity / p.MaxStock * 100, true
}

// Store is a read snapshot of a tenant store.
type Store struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Movement is a read snapshot of a stock movement.
type Movement struct {
	ID        string       `json:"id"`
	StoreID   string       `json:"storeId"`
	ProductID string       `json:"productId"`
	Type      MovementType `json:"type"`
	Quantity  float64      `json:"quantity"`
	UnitCost  float64      `json:"unitCost,omitempty"`
	CreatedBy string       `json:"createdBy,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// User is a read snapshot of the user who caused an event.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// TriggerEvent is an inventory event that may start flow runs.
type TriggerEvent struct {
	EventType    TriggerEventType `json:"eventType"    validate:"required"`
	StoreID      string           `json:"storeId"      validate:"required"`
	ProductID    string           `json:"productId,omitempty"`
	MovementID   string           `json:"movementId,omitempty"`
	MovementType MovementType     `json:"movementType,omitempty"`
	UserID       string           `json:"userId,omitempty"`
	Product      *Product         `json:"product,omitempty"`
	Movement     *Movement        `json:"movement,omitempty"`
	Payload      map[string]any   `json:"payload,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// EffectiveProductID returns the event product id, falling back to the embedded snapshots.
func (e *TriggerEvent) EffectiveProductID() string {
	switch {
	case e.ProductID != "":
		return e.ProductID
	case e.Product != nil:
		return e.Product.ID
	case e.Movement != nil:
		return e.Movement.ProductID
	default:
		return ""
	}
}

// EffectiveMovementType returns the event movement type, falling back to the embedded movement.
func (e *TriggerEvent) EffectiveMovementType() MovementType {
	if e.MovementType == "" && e.Movement != nil {
		return e.Movement.Type
	}

	return e.MovementType
}

// Data returns the event as the generic trigger payload stored on executions.
func (e *TriggerEvent) Data() map[string]any {
	data := map[string]any{
		"eventType": string(e.EventType),
		"storeId":   e.StoreID,
	}

	for key, value := range e.Payload {
		data[key] = value
	}

	if id := e.EffectiveProductID(); id != "" {
		data["productId"] = id
	}

	if e.MovementID != "" {
		data["movementId"] = e.MovementID
	} else if e.Movement != nil {
		data["movementId"] = e.Movement.ID
	}

	if mt := e.EffectiveMovementType(); mt != "" {
		data["movementType"] = string(mt)
	}

	if e.UserID != "" {
		data["userId"] = e.UserID
	}

	return data
}
