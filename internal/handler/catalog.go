package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/product"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	f := product.Filter{Category: q.Get("category")}
	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest("featured must be a boolean")
		}
		f.FeaturedOnly = featured
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return badRequest("limit must be a non-negative integer")
		}
		f.Limit = limit
	}

	products, err := h.products.List(r.Context(), f)
	if err != nil {
		return err
	}
	resp := make([]productResponse, len(products))
	for i := range products {
		resp[i] = h.productResponse(&products[i])
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) error {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.productResponse(p))
	return nil
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) error {
	var req productRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	p, err := h.products.Create(r.Context(), req.input())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, h.productResponse(p))
	return nil
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) error {
	var req productRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	p, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.productResponse(p))
	return nil
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) error {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) listRegions(w http.ResponseWriter, _ *http.Request) error {
	regions := h.regions.Regions()
	resp := make([]regionResponse, len(regions))
	for i, reg := range regions {
		resp[i] = regionResponseOf(reg)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) regionPrice(w http.ResponseWriter, r *http.Request) error {
	mode, err := delivery.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		return err
	}
	id := chi.URLParam(r, "id")
	price, err := h.regions.Resolve(id, mode)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, priceResponse{Region: id, Mode: string(mode), Price: money(price)})
	return nil
}
