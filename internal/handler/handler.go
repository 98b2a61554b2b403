// Package handler exposes the storefront over HTTP.
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stats"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// IdempotencyKeyHeader lets clients retry order submission safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// Config holds handler settings.
type Config struct {
	// ImageBaseURL is prefixed to relative image references.
	ImageBaseURL string
	// CouponRateLimit throttles coupon validation per client when Max > 0.
	CouponRateLimit httpmiddleware.RateLimitConfig
}

// Services are the domain services served over HTTP.
type Services struct {
	Products *product.Service
	Coupons  *coupon.Service
	Orders   *order.Service
	Stats    *stats.Service
	Regions  *delivery.Table
}

// Handler implements the storefront HTTP API.
type Handler struct {
	cfg      Config
	products *product.Service
	coupons  *coupon.Service
	orders   *order.Service
	stats    *stats.Service
	regions  *delivery.Table
	validate *validator.Validate
}

// New creates a Handler.
func New(cfg Config, s Services) *Handler {
	return &Handler{
		cfg:      cfg,
		products: s.Products,
		coupons:  s.Coupons,
		orders:   s.Orders,
		stats:    s.Stats,
		regions:  s.Regions,
		validate: newValidator(),
	}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (fn handlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := fn(w, r); err != nil {
		writeError(w, r, err)
	}
}

// Router builds the API routes. The middlewares run inside the router so
// they can see the matched route pattern.
func (h *Handler) Router(sec *Security, use ...httpmiddleware.Middleware) chi.Router {
	r := chi.NewRouter()
	for _, m := range use {
		r.Use(m)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Kind: "not_found", Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Kind: "method_not_allowed", Message: "method not allowed"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/products", handlerFunc(h.listProducts))
		r.Method(http.MethodGet, "/products/{id}", handlerFunc(h.getProduct))

		r.Method(http.MethodGet, "/delivery/regions", handlerFunc(h.listRegions))
		r.Method(http.MethodGet, "/delivery/regions/{id}/price", handlerFunc(h.regionPrice))

		validate := http.Handler(handlerFunc(h.validateCoupon))
		if h.cfg.CouponRateLimit.Max > 0 {
			validate = httpmiddleware.RateLimit(h.cfg.CouponRateLimit)(validate)
		}
		r.Method(http.MethodPost, "/coupons/validate", validate)

		r.Method(http.MethodPost, "/checkout/quote", handlerFunc(h.quote))
		r.Method(http.MethodPost, "/orders", handlerFunc(h.placeOrder))
		r.Method(http.MethodGet, "/orders/track/{code}", handlerFunc(h.trackOrder))

		r.Route("/admin", func(r chi.Router) {
			r.Use(sec.RequireScope(adminScope))

			r.Method(http.MethodGet, "/products", handlerFunc(h.listProducts))
			r.Method(http.MethodPost, "/products", handlerFunc(h.createProduct))
			r.Method(http.MethodPut, "/products/{id}", handlerFunc(h.updateProduct))
			r.Method(http.MethodDelete, "/products/{id}", handlerFunc(h.deleteProduct))

			r.Method(http.MethodGet, "/coupons", handlerFunc(h.listCoupons))
			r.Method(http.MethodPost, "/coupons", handlerFunc(h.createCoupon))
			r.Method(http.MethodPost, "/coupons/generate-code", handlerFunc(h.generateCouponCode))
			r.Method(http.MethodGet, "/coupons/{id}", handlerFunc(h.getCoupon))
			r.Method(http.MethodPut, "/coupons/{id}", handlerFunc(h.updateCoupon))
			r.Method(http.MethodDelete, "/coupons/{id}", handlerFunc(h.deleteCoupon))

			r.Method(http.MethodGet, "/orders", handlerFunc(h.listOrders))
			r.Method(http.MethodGet, "/orders/{id}", handlerFunc(h.getOrder))
			r.Method(http.MethodPost, "/orders/{id}/status", handlerFunc(h.advanceOrder))
			r.Method(http.MethodPost, "/orders/{id}/correction", handlerFunc(h.correctOrder))

			r.Method(http.MethodGet, "/stats", handlerFunc(h.getStats))
		})
	})
	return r
}

// imageURL resolves a stored image reference against ImageBaseURL.
// Absolute URLs are returned unchanged.
func (h *Handler) imageURL(ref string) string {
	if ref == "" || h.cfg.ImageBaseURL == "" {
		return ref
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "//") {
		return ref
	}
	return strings.TrimRight(h.cfg.ImageBaseURL, "/") + "/" + strings.TrimLeft(ref, "/")
}
