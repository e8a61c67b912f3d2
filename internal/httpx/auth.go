package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/beckings/shop-orders/internal/orders"
)

// HeaderUserID carries the caller identity established by the gateway.
const HeaderUserID = "X-User-ID"

type userKey struct{}

type UserLookup interface {
	GetUser(ctx context.Context, id string) (*orders.User, error)
}

// Authenticate resolves the caller into an *orders.User. Handlers read it
// with UserFrom and pass it on explicitly.
func Authenticate(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderUserID)
			if id == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "missing "+HeaderUserID)
				return
			}
			u, err := users.GetUser(r.Context(), id)
			if errors.Is(err, orders.ErrUserMissing) {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "unknown or inactive user")
				return
			}
			if err != nil {
				slog.ErrorContext(r.Context(), "resolve user", "user_id", id, "err", err)
				writeError(w, http.StatusInternalServerError, "internal", "could not resolve user")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
		})
	}
}

func UserFrom(ctx context.Context) *orders.User {
	u, _ := ctx.Value(userKey{}).(*orders.User)
	return u
}

func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := UserFrom(r.Context()); u == nil || !u.Staff {
			writeError(w, http.StatusForbidden, "forbidden", "staff only")
			return
		}
		next.ServeHTTP(w, r)
	})
}
