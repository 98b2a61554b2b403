package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/coupon"
)

// validateCoupon reports rule failures in the body with 200 so the
// storefront can show them inline. Storage failures still fail the request.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) error {
	var req validateCouponRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	res, err := h.orders.ValidateCoupon(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		reason, ok := coupon.Reason(err)
		if !ok {
			return err
		}
		body := couponErrorBody(reason, err)
		writeJSON(w, http.StatusOK, validateCouponResponse{
			Error:   body.Kind,
			Message: body.Message,
			Minimum: body.Minimum,
		})
		return nil
	}

	writeJSON(w, http.StatusOK, validateCouponResponse{
		Valid:    true,
		Discount: moneyPtr(res.Discount),
		Coupon:   appliedCouponOf(res.Coupon),
	})
	return nil
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) error {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		return err
	}
	resp := make([]couponResponse, len(coupons))
	for i := range coupons {
		resp[i] = couponResponseOf(&coupons[i])
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) error {
	c, err := h.coupons.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, couponResponseOf(c))
	return nil
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) error {
	var req couponRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	c, err := h.coupons.Create(r.Context(), req.input())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, couponResponseOf(c))
	return nil
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) error {
	var req couponRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	c, err := h.coupons.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, couponResponseOf(c))
	return nil
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) error {
	if err := h.coupons.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) generateCouponCode(w http.ResponseWriter, _ *http.Request) error {
	code, err := h.coupons.GenerateCode()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
	return nil
}
