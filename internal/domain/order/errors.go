package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/product"
)

// Sentinel errors for order validation and lifecycle.
var (
	ErrEmptyItems          = errors.New("items required")
	ErrInvalidQuantity     = errors.New("quantity must be greater than 0")
	ErrInvalidCustomer     = errors.New("invalid customer details")
	ErrNotFound            = errors.New("order not found")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrStatusConflict      = errors.New("order status changed concurrently")
	ErrReasonRequired      = errors.New("correction reason required")
	ErrDuplicateSubmission = errors.New("order submission already in progress")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// Is makes errors.Is(err, ErrInvalidQuantity) hold.
func (e *InvalidQuantityError) Is(target error) bool {
	return target == ErrInvalidQuantity
}

// OutOfStockError indicates a product cannot cover the requested quantity.
type OutOfStockError struct {
	ProductID string
	Requested int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d)", e.ProductID, e.Requested)
}

// Is makes errors.Is(err, product.ErrInsufficientStock) hold.
func (e *OutOfStockError) Is(target error) bool {
	return target == product.ErrInsufficientStock
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) hold.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
