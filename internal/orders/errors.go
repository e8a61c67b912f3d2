package orders

import "errors"

var (
	ErrEmptyOrder        = errors.New("cannot place an empty order")
	ErrNegativeQuantity  = errors.New("cannot order a negative quantity")
	ErrInsufficientStock = errors.New("insufficient quantity available")

	ErrProductMissing  = errors.New("product not found")
	ErrProductInactive = errors.New("product is not available")
	ErrUserMissing     = errors.New("user not found or inactive")
	ErrOrderNotFound   = errors.New("order not found")
	ErrForbidden       = errors.New("order belongs to another user")
	ErrInvalidStatus   = errors.New("invalid status transition")

	// ErrConflict means the store refused the unit of work; nothing was written
	// and the whole operation may be retried by the caller.
	ErrConflict = errors.New("operation could not be completed, retry")
)

// ValidationError is a user-correctable rejection of a placement request.
type ValidationError struct {
	Code string
	Err  error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

const (
	CodeEmptyOrder        = "empty_order"
	CodeNegativeQuantity  = "negative_quantity"
	CodeInsufficientStock = "insufficient_stock"
)

func invalid(code string, err error) *ValidationError {
	return &ValidationError{Code: code, Err: err}
}
