package orders

// Validate checks req against the stock read for p. The first failing rule wins.
func Validate(req PlaceRequest, p *Product) error {
	if p == nil {
		return ErrProductMissing
	}
	switch n := req.NumberOfItems; {
	case n == 0:
		return invalid(CodeEmptyOrder, ErrEmptyOrder)
	case n < 0:
		return invalid(CodeNegativeQuantity, ErrNegativeQuantity)
	case n > p.Quantity:
		return invalid(CodeInsufficientStock, ErrInsufficientStock)
	}
	return nil
}
