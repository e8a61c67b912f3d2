package projector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkax "github.com/beckings/shop-orders/internal/kafka"
	"github.com/beckings/shop-orders/internal/orders"
	"github.com/beckings/shop-orders/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
)

type Dedup interface {
	MarkSeen(ctx context.Context, service, eventID string) (bool, error)
	Forget(ctx context.Context, service, eventID string) error
}

type StatusStore interface {
	Get(ctx context.Context, orderID string) (redisx.CachedStatus, bool, error)
	Set(ctx context.Context, cs redisx.CachedStatus) error
}

// Service projects order events into the status cache read by
// GET /orders/{id}/status.
type Service struct {
	Dedup       Dedup
	Cache       StatusStore
	ServiceName string
}

// HandleOrderEvent is installed as the consumer handler for both order topics.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message; committing it beats blocking the partition
		slog.ErrorContext(ctx, "drop undecodable event", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil
	}

	var (
		cs  redisx.CachedStatus
		err error
	)
	switch env.EventType {
	case orders.EventOrderPlaced:
		cs, err = placed(env)
	case orders.EventOrderStatusChanged:
		cs, err = statusChanged(env)
	default:
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "drop malformed payload", "event_id", env.EventID, "event_type", env.EventType, "err", err)
		return nil
	}

	seen, err := s.Dedup.MarkSeen(ctx, s.ServiceName, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if seen {
		return nil
	}
	if err := s.apply(ctx, cs); err != nil {
		if ferr := s.Dedup.Forget(ctx, s.ServiceName, env.EventID); ferr != nil {
			err = errors.Join(err, ferr)
		}
		return err
	}
	slog.DebugContext(ctx, "status projected", "order_id", cs.OrderID, "status", cs.Status, "trace_id", env.TraceID)
	return nil
}

// apply writes cs unless the cache already holds a newer state. The two
// topics are not ordered against each other.
func (s *Service) apply(ctx context.Context, cs redisx.CachedStatus) error {
	cur, ok, err := s.Cache.Get(ctx, cs.OrderID)
	if err != nil {
		return err
	}
	if ok && cur.UpdatedAt.After(cs.UpdatedAt) {
		return nil
	}
	return s.Cache.Set(ctx, cs)
}

func placed(env orders.Envelope) (redisx.CachedStatus, error) {
	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return redisx.CachedStatus{}, err
	}
	if p.OrderID == "" {
		return redisx.CachedStatus{}, errors.New("missing order_id")
	}
	return redisx.CachedStatus{
		OrderID:   p.OrderID,
		UserID:    p.UserID,
		Status:    string(p.Status),
		UpdatedAt: orNow(p.PlacedAt),
	}, nil
}

func statusChanged(env orders.Envelope) (redisx.CachedStatus, error) {
	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		return redisx.CachedStatus{}, err
	}
	if p.OrderID == "" {
		return redisx.CachedStatus{}, errors.New("missing order_id")
	}
	return redisx.CachedStatus{
		OrderID:   p.OrderID,
		UserID:    p.UserID,
		Status:    string(p.Status),
		UpdatedAt: orNow(env.OccurredAt),
	}, nil
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
