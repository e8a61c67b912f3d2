package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	kafkax "github.com/beckings/shop-orders/internal/kafka"
	"github.com/beckings/shop-orders/internal/orders"
	"github.com/beckings/shop-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	defaultListLimit = 50
	maxListLimit     = 200
)

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// OrdersHandler serves the catalogue and order endpoints. Placed, StatusChanged,
// Cache and Idem are optional; nil disables the feature.
type OrdersHandler struct {
	Store         orders.Store
	Placer        *orders.Placer
	Placed        Publisher
	StatusChanged Publisher
	Cache         *redisx.StatusCache
	Idem          *redisx.Idempotency
	Service       string
}

type UserView struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type PlaceOrderResp struct {
	Message string       `json:"message"`
	Order   orders.Order `json:"order"`
	orders.Summary
	User       UserView `json:"user"`
	Idempotent bool     `json:"idempotent"`
}

type ListOrdersResp struct {
	Orders []orders.Order `json:"orders"`
	orders.Summary
}

type TransitionReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(h.Store))
		r.Post("/products/{id}/orders", h.placeOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{order_id}", h.getOrder)
		r.Get("/orders/{order_id}/status", h.getOrderStatus)
		r.Delete("/orders/{order_id}", h.cancelOrder)
		r.With(RequireStaff).Patch("/admin/orders/{order_id}/status", h.transitionOrder)
	})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ps, err := h.Store.ListProducts(r.Context(), orders.ProductFilter{
		ActiveOnly: q.Get("all") != "true",
		Query:      q.Get("q"),
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	var req orders.PlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	idemKey := r.Header.Get(HeaderIdempotencyKey)
	if h.Idem == nil {
		idemKey = ""
	}
	if idemKey != "" {
		orderID, reserved, err := h.Idem.Reserve(ctx, user.ID, idemKey)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeError(w, http.StatusConflict, "in_flight", err.Error())
			return
		case err != nil:
			// redis down: place without replay protection
			slog.WarnContext(ctx, "idempotency unavailable", "err", err)
			idemKey = ""
		case !reserved:
			h.replayPlacement(ctx, w, r, user, orderID)
			return
		}
	}

	placement, err := h.place(ctx, chi.URLParam(r, "id"), user, req)
	if idemKey != "" {
		h.settleIdempotency(ctx, user.ID, idemKey, placement)
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}

	o := &placement.Order
	h.cacheStatus(ctx, o)
	h.publish(ctx, h.Placed, orders.EventOrderPlaced, o, orders.PlacedPayload(o))

	writeJSON(w, http.StatusCreated, PlaceOrderResp{
		Message: "Added Item",
		Order:   *o,
		Summary: placement.Summary,
		User:    UserView{Username: user.Username, Email: user.Email},
	})
}

// settleIdempotency records the placed order under key, or releases the key
// when nothing was placed. It outlives the request so a client that hung up
// does not leave the key reserved.
func (h *OrdersHandler) settleIdempotency(ctx context.Context, userID, key string, placement *orders.Placement) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if placement == nil {
		if err := h.Idem.Release(ctx, userID, key); err != nil {
			slog.WarnContext(ctx, "idempotency release", "err", err)
		}
		return
	}
	if err := h.Idem.Complete(ctx, userID, key, placement.Order.ID); err != nil {
		slog.WarnContext(ctx, "idempotency complete", "order_id", placement.Order.ID, "err", err)
	}
}

func (h *OrdersHandler) place(ctx context.Context, productID string, user *orders.User, req orders.PlaceRequest) (*orders.Placement, error) {
	product, err := h.Store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return h.Placer.Place(ctx, product, user, req)
}

func (h *OrdersHandler) replayPlacement(ctx context.Context, w http.ResponseWriter, r *http.Request, user *orders.User, orderID string) {
	o, err := h.Store.GetOrder(ctx, orderID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	sum, err := h.Store.UserSummary(ctx, user.ID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PlaceOrderResp{
		Message:    "Added Item",
		Order:      *o,
		Summary:    sum,
		User:       UserView{Username: user.Username, Email: user.Email},
		Idempotent: true,
	})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	q := r.URL.Query()

	f := orders.ListFilter{Query: q.Get("q"), Limit: defaultListLimit}
	if s := q.Get("status"); s != "" {
		st, err := orders.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}
		f.Status = st
	}
	if s := q.Get("placed"); s != "" {
		since, until, err := orders.PlacedWindow(s, time.Now().UTC())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_placed", err.Error())
			return
		}
		f.Since, f.Until = since, until
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		f.Limit = min(n, maxListLimit)
	}

	list, err := h.Store.ListOrders(r.Context(), user.ID, f)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	sum, err := h.Store.UserSummary(r.Context(), user.ID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, ListOrdersResp{Orders: list, Summary: sum})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	o, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if !o.OwnedBy(user) && !user.Staff {
		// don't leak other users' order ids
		respondErr(w, r, orders.ErrOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus answers from the status cache and falls back to the store.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	id := chi.URLParam(r, "order_id")
	ctx := r.Context()

	if h.Cache != nil {
		cs, ok, err := h.Cache.Get(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "status cache get", "order_id", id, "err", err)
		}
		if ok && (cs.UserID == user.ID || user.Staff) {
			writeJSON(w, http.StatusOK, cs)
			return
		}
	}

	o, err := h.Store.GetOrder(ctx, id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if !o.OwnedBy(user) && !user.Staff {
		respondErr(w, r, orders.ErrOrderNotFound)
		return
	}
	cs := h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, cs)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	o, err := h.Placer.Cancel(r.Context(), user, chi.URLParam(r, "order_id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	h.statusChanged(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	var req TransitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}
	o, err := h.Placer.Transition(r.Context(), chi.URLParam(r, "order_id"), to)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	h.statusChanged(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) statusChanged(ctx context.Context, o *orders.Order) {
	h.cacheStatus(ctx, o)
	h.publish(ctx, h.StatusChanged, orders.EventOrderStatusChanged, o, orders.StatusChangedPayload(o))
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) redisx.CachedStatus {
	cs := redisx.CachedStatus{OrderID: o.ID, UserID: o.Owner(), Status: string(o.Status), UpdatedAt: time.Now().UTC()}
	if h.Cache == nil {
		return cs
	}
	if err := h.Cache.Set(ctx, cs); err != nil {
		slog.WarnContext(ctx, "status cache set", "order_id", o.ID, "err", err)
	}
	return cs
}

func (h *OrdersHandler) publish(ctx context.Context, p Publisher, eventType string, o *orders.Order, payload any) {
	if p == nil {
		return
	}
	ev, err := orders.NewEnvelope(eventType, h.Service, middleware.GetReqID(ctx), o.ID, payload)
	if err != nil {
		slog.ErrorContext(ctx, "build event", "event_type", eventType, "order_id", o.ID, "err", err)
		return
	}
	p.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev), kafkax.EventHeaders(eventType, ev.EventVersion)...)
}
