/*
errors.go - Centralized error types for the inventory engine

PURPOSE:
  All error kinds the core can return, in one place. The request layer maps
  them to responses; the core never retries on any of them.

ERROR CATEGORIES:
  1. NotFound          - a referenced product/supplier/retailer/sale is missing
  2. Conflict          - uniqueness violation (name, batch code, invoice)
  3. InsufficientStock - a sale asks for more than the eligible batches hold
  4. InvariantViolation - stock would go negative; a logic or concurrency bug
  5. InvalidInput      - request values the core refuses (qty <= 0, ...)

USAGE:
  if errors.Is(err, inventory.ErrInsufficientStock) {
      var se *inventory.InsufficientStockError
      errors.As(err, &se)
      log.Printf("short by %d", se.Shortfall())
  }

SEE ALSO:
  - allocator.go: returns InsufficientStock and InvariantViolation
  - store/sqlite/sqlite.go: maps constraint failures to ConflictError
*/
package inventory

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on a uniqueness violation.
	ErrConflict = errors.New("conflict")

	// ErrInsufficientStock is returned when eligible batches cannot cover a sale.
	// No batch is touched when this is returned.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvariantViolation signals a decrement below zero or a short allocation.
	// It indicates a bug and must be surfaced loudly.
	ErrInvariantViolation = errors.New("inventory invariant violated")

	// ErrInvalidInput is returned for request values the core rejects.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string // "product", "supplier", "retailer", "sale", "batch"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError names the violated uniqueness rule.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists with %s %q", e.Entity, e.Field, e.Value)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ProductID ProductID
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Shortfall() int64 { return e.Requested - e.Available }

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d, shortfall %d",
		e.ProductID, e.Available, e.Requested, e.Shortfall())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InvariantError describes a broken stock invariant.
type InvariantError struct {
	BatchID BatchID
	Detail  string
}

func (e *InvariantError) Error() string {
	if e.BatchID == "" {
		return "inventory invariant violated: " + e.Detail
	}
	return fmt.Sprintf("inventory invariant violated on batch %s: %s", e.BatchID, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// ValidationError rejects a single request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a business outcome caused by
// the request rather than a fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
