package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrValidation, fiber.StatusBadRequest},
		{ErrInvalidQuantity, fiber.StatusBadRequest},
		{ErrEmptyList, fiber.StatusBadRequest},
		{ErrAllocationMismatch, fiber.StatusBadRequest},
		{ErrUnknownTier, fiber.StatusBadRequest},
		{ErrForbidden, fiber.StatusForbidden},
		{ErrNotFound, fiber.StatusNotFound},
		{ErrInvalidState, fiber.StatusConflict},
		{ErrInsufficientStock, fiber.StatusConflict},
		{ErrStaleAllocation, fiber.StatusConflict},
		{ErrUnbalancedEntry, fiber.StatusInternalServerError},
		{errors.New("driver: bad connection"), fiber.StatusInternalServerError},
		{&InsufficientStockError{DepotID: 1, ItemID: 2, Available: 3, Requested: 9}, fiber.StatusConflict},
		{&InvalidStateError{Entity: "needs_list", ID: 1, Current: "CLOSED", Attempted: "amend"}, fiber.StatusConflict},
		{fmt.Errorf("wrapped: %w", ErrForbidden), fiber.StatusForbidden},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	stockErr := &InsufficientStockError{DepotID: 4, ItemID: 7, Available: 2, Requested: 5}
	if !errors.Is(stockErr, ErrInsufficientStock) {
		t.Error("InsufficientStockError must match ErrInsufficientStock")
	}
	stateErr := &InvalidStateError{Entity: "transfer_request", ID: 3, Current: "EXECUTED", Attempted: "approve"}
	if !errors.Is(stateErr, ErrInvalidState) {
		t.Error("InvalidStateError must match ErrInvalidState")
	}
}
