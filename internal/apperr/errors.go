// Package apperr defines the error taxonomy shared by the ledger and the
// approval workflows, and its mapping onto HTTP statuses.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidQuantity    = fmt.Errorf("%w: quantity must be positive", ErrValidation)
	ErrEmptyList          = fmt.Errorf("%w: needs list has no line with quantity > 0", ErrValidation)
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrUnbalancedEntry    = errors.New("unbalanced ledger entry") // workflow defect, not user error
	ErrInvalidState       = errors.New("invalid workflow state transition")
	ErrForbidden          = errors.New("forbidden")
	ErrStaleAllocation    = errors.New("allocation no longer feasible")
	ErrAllocationMismatch = errors.New("allocated quantities do not match approved quantities")
	ErrNotFound           = errors.New("not found")
	ErrUnknownTier        = errors.New("unknown hub tier")
)

// InsufficientStockError carries the balance that failed the never-negative check.
type InsufficientStockError struct {
	DepotID   uint
	ItemID    uint
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: depot %d item %d has %d, requested %d",
		e.DepotID, e.ItemID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InvalidStateError reports an illegal transition attempt on a workflow entity.
type InvalidStateError struct {
	Entity    string
	ID        uint
	Current   string
	Attempted string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %d: cannot %s from state %s", e.Entity, e.ID, e.Attempted, e.Current)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// HTTPStatus maps a taxonomy error to the status the API surfaces. Unknown
// errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrAllocationMismatch),
		errors.Is(err, ErrUnknownTier):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrStaleAllocation):
		return fiber.StatusConflict
	case errors.Is(err, ErrUnbalancedEntry):
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}
