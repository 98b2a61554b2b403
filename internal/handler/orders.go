package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/order"
)

const maxIdempotencyKeyLen = 128

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) error {
	var req quoteRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	in, err := req.checkout()
	if err != nil {
		return err
	}

	q, err := h.orders.Quote(r.Context(), in)
	if err != nil {
		return err
	}
	resp := quoteResponse{
		Items:          h.lineItems(q.Items),
		totalsResponse: totals(q.Totals),
	}
	if q.Coupon != nil {
		resp.Coupon = appliedCouponOf(q.Coupon.Coupon)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) error {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		return badRequest("%s must be at most %d bytes", IdempotencyKeyHeader, maxIdempotencyKeyLen)
	}

	var req checkoutRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	in, err := req.checkout()
	if err != nil {
		return err
	}
	in.IdempotencyKey = key

	o, err := h.orders.Commit(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, h.orderResponse(o))
	return nil
}

func (h *Handler) trackOrder(w http.ResponseWriter, r *http.Request) error {
	o, err := h.orders.Track(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.trackResponse(o))
	return nil
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	var f order.Filter
	if v := q.Get("status"); v != "" {
		st, err := order.ParseStatus(v)
		if err != nil {
			return err
		}
		f.Status = st
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return badRequest("limit must be a non-negative integer")
		}
		f.Limit = limit
	}

	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		return err
	}
	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = h.orderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) error {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.orderResponse(o))
	return nil
}

func (h *Handler) advanceOrder(w http.ResponseWriter, r *http.Request) error {
	var req statusRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	to, err := order.ParseStatus(req.Status)
	if err != nil {
		return err
	}
	o, err := h.orders.Advance(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.orderResponse(o))
	return nil
}

func (h *Handler) correctOrder(w http.ResponseWriter, r *http.Request) error {
	var req correctionRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	to, err := order.ParseStatus(req.Status)
	if err != nil {
		return err
	}
	o, err := h.orders.Correct(r.Context(), chi.URLParam(r, "id"), to, req.Reason)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.orderResponse(o))
	return nil
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) error {
	s, err := h.stats.Summary(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, statsResponseOf(s))
	return nil
}
