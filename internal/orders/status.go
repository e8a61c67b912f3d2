package orders

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// pending is only ever produced by Place; nothing transitions back into it.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusInTransit: true, StatusDelivered: true, StatusCancelled: true},
	StatusInTransit: {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Inactive reports whether an order in s has left the active lifecycle.
func (s Status) Inactive() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validNext[st]; !ok {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}
