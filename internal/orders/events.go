package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID       string    `json:"order_id"`
	ProductID     string    `json:"product_id"`
	UserID        string    `json:"user_id"`
	NumberOfItems int       `json:"number_of_items"`
	TotalCost     string    `json:"total_cost"`
	Status        Status    `json:"status"`
	PlacedAt      time.Time `json:"placed_at"`
}

type OrderStatusChangedPayload struct {
	OrderID    string     `json:"order_id"`
	UserID     string     `json:"user_id,omitempty"`
	Status     Status     `json:"status"`
	InactiveAt *time.Time `json:"inactive_at,omitempty"`
}

// NewEnvelope wraps payload as a version 1 event correlated to orderID.
func NewEnvelope(eventType, producer, traceID, orderID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}

func PlacedPayload(o *Order) OrderPlacedPayload {
	return OrderPlacedPayload{
		OrderID:       o.ID,
		ProductID:     o.ProductID,
		UserID:        o.Owner(),
		NumberOfItems: o.NumberOfItems,
		TotalCost:     o.TotalCost.StringFixed(2),
		Status:        o.Status,
		PlacedAt:      o.Timestamp,
	}
}

func StatusChangedPayload(o *Order) OrderStatusChangedPayload {
	return OrderStatusChangedPayload{
		OrderID:    o.ID,
		UserID:     o.Owner(),
		Status:     o.Status,
		InactiveAt: o.InactiveAt,
	}
}
