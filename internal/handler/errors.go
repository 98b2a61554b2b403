package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

var (
	errUnauthorized = errors.New("missing or invalid API key")
	errForbidden    = errors.New("API key lacks the required scope")
)

// errorBody is the JSON error envelope. Kind is a stable machine name.
type errorBody struct {
	Kind      string            `json:"error"`
	Message   string            `json:"message"`
	ProductID string            `json:"product_id,omitempty"`
	Minimum   *Money            `json:"minimum,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

var sentinels = []struct {
	err    error
	status int
	kind   string
}{
	{order.ErrEmptyItems, http.StatusBadRequest, "empty_items"},
	{order.ErrInvalidCustomer, http.StatusBadRequest, "invalid_customer"},
	{order.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{order.ErrReasonRequired, http.StatusBadRequest, "reason_required"},
	{order.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{order.ErrStatusConflict, http.StatusConflict, "status_conflict"},
	{order.ErrDuplicateSubmission, http.StatusConflict, "duplicate_submission"},
	{order.ErrInvalidQuantity, http.StatusUnprocessableEntity, "invalid_quantity"},
	{product.ErrInsufficientStock, http.StatusConflict, "out_of_stock"},
	{delivery.ErrInvalidMode, http.StatusBadRequest, "invalid_delivery_mode"},
	{delivery.ErrRegionPricingNotFound, http.StatusUnprocessableEntity, "region_pricing_not_found"},
	{coupon.ErrInvalidCoupon, http.StatusBadRequest, "invalid_coupon"},
	{coupon.ErrDuplicateCode, http.StatusConflict, "duplicate_code"},
	{product.ErrInvalidProduct, http.StatusBadRequest, "invalid_product"},
	{order.ErrNotFound, http.StatusNotFound, "not_found"},
	{product.ErrNotFound, http.StatusNotFound, "not_found"},
	{coupon.ErrNotFound, http.StatusNotFound, "not_found"},
	{errUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{errForbidden, http.StatusForbidden, "forbidden"},
}

// classify maps err to a status and body. Anything that is not a known
// business failure is reported as a retryable 503.
func classify(err error) (int, errorBody) {
	var bad *badRequestError
	if errors.As(err, &bad) {
		return http.StatusBadRequest, errorBody{Kind: "invalid_request", Message: bad.msg, Fields: bad.fields}
	}

	var pnf *order.ProductNotFoundError
	if errors.As(err, &pnf) {
		return http.StatusUnprocessableEntity, errorBody{Kind: "product_not_found", Message: pnf.Error(), ProductID: pnf.ProductID}
	}
	var iq *order.InvalidQuantityError
	if errors.As(err, &iq) {
		return http.StatusUnprocessableEntity, errorBody{Kind: "invalid_quantity", Message: iq.Error(), ProductID: iq.ProductID}
	}
	var oos *order.OutOfStockError
	if errors.As(err, &oos) {
		return http.StatusConflict, errorBody{Kind: "out_of_stock", Message: oos.Error(), ProductID: oos.ProductID}
	}

	if reason, ok := coupon.Reason(err); ok {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, coupon.ErrConcurrentRedemptionConflict) {
			status = http.StatusConflict
		}
		return status, couponErrorBody(reason, err)
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.status, errorBody{Kind: s.kind, Message: err.Error()}
		}
	}

	return http.StatusServiceUnavailable, errorBody{
		Kind:      "unavailable",
		Message:   "service temporarily unavailable, please retry",
		Retryable: true,
	}
}

func couponErrorBody(reason string, err error) errorBody {
	body := errorBody{Kind: reason, Message: err.Error()}
	var below *coupon.BelowMinimumOrderError
	if errors.As(err, &below) {
		body.Minimum = moneyPtr(below.Minimum)
	}
	return body
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, body)
}
