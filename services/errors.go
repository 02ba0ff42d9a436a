package services

import (
	"errors"
	"fmt"
)

// ErrCartEmpty is returned by PlaceOrder before any store is written.
var ErrCartEmpty = errors.New("cart is empty")

// StockError reports which product could not be reserved so the client can
// show an actionable message.
type StockError struct {
	ProductID   string
	ProductName string
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s", e.ProductName)
}

// PersistenceError wraps a storage failure during placement. The transaction
// was rolled back and all stock reservations reversed; the caller may retry.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("order persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ValidationError rejects malformed input before any store access.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
