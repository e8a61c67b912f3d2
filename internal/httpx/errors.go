package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/beckings/shop-orders/internal/orders"
)

// StatusClientClosedRequest is nginx's non-standard code for a caller that
// disconnected before the response.
const StatusClientClosedRequest = 499

// respondErr maps workflow errors onto HTTP statuses.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var ve *orders.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusUnprocessableEntity, ve.Code, ve.Error())
	case errors.Is(err, orders.ErrProductMissing):
		writeError(w, http.StatusNotFound, "product_missing", err.Error())
	case errors.Is(err, orders.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_missing", err.Error())
	case errors.Is(err, orders.ErrProductInactive):
		writeError(w, http.StatusConflict, "product_inactive", err.Error())
	case errors.Is(err, orders.ErrUserMissing):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, orders.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, orders.ErrInvalidStatus):
		writeError(w, http.StatusConflict, "invalid_status", err.Error())
	case errors.Is(err, orders.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", orders.ErrConflict.Error())
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads the body
		slog.DebugContext(r.Context(), "request cancelled", "path", r.URL.Path)
		w.WriteHeader(StatusClientClosedRequest)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
