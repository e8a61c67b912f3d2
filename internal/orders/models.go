package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"product_name"`
	Slug        string          `json:"product_slug"`
	Description string          `json:"product_description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// User is an already-resolved account. Handlers look it up and pass it in
// explicitly; nothing in this package reads identity from a request.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"-"`
	Staff    bool   `json:"-"`
}

type Order struct {
	ID            string          `json:"order_id"`
	ProductID     string          `json:"product_id"`
	UserID        *string         `json:"user_id"` // nil once the user row is deleted
	NumberOfItems int             `json:"number_of_items"`
	Manifest      string          `json:"manifest"`
	Status        Status          `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
	InactiveAt    *time.Time      `json:"inactive_at,omitempty"`
	TotalCost     decimal.Decimal `json:"total_cost"`
}

// OwnedBy reports whether u placed the order.
func (o *Order) OwnedBy(u *User) bool {
	return u != nil && o.UserID != nil && *o.UserID == u.ID
}

// Owner returns the placing user's id, or "" once that user is gone.
func (o *Order) Owner() string {
	if o.UserID == nil {
		return ""
	}
	return *o.UserID
}

// Summary is computed after commit and is not part of the placement write.
type Summary struct {
	OrderCount int             `json:"item_count"`
	ItemCount  int             `json:"items_ordered"`
	TotalSum   decimal.Decimal `json:"total_sum"`
}

type PlaceRequest struct {
	NumberOfItems int    `json:"number_of_items"`
	Manifest      string `json:"manifest"`
}

type Placement struct {
	Order   Order   `json:"order"`
	Summary Summary `json:"summary"`
}

type ListFilter struct {
	Status Status
	Query  string // order id prefix
	// Since and Until bound the placement time as [Since, Until); zero means open.
	Since time.Time
	Until time.Time
	Limit int
}

type ProductFilter struct {
	ActiveOnly bool
	Query      string // case-insensitive match on name or description
}
