package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ValidationError reports bad input shape or range. It is always raised
// before any write is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

func NewNotFound(entity string, key interface{}) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: fmt.Sprint(key)}
}

// ConflictError reports a uniqueness or referential violation.
// Constraint names the rule that was broken (e.g. "slug", "primary_image").
type ConflictError struct {
	Entity     string
	Constraint string
	Value      string
}

func (e *ConflictError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s conflict on %s", e.Entity, e.Constraint)
	}
	return fmt.Sprintf("%s conflict on %s: %q", e.Entity, e.Constraint, e.Value)
}

func NewConflict(entity, constraint string, value interface{}) *ConflictError {
	v := ""
	if value != nil {
		v = fmt.Sprint(value)
	}
	return &ConflictError{Entity: entity, Constraint: constraint, Value: v}
}

// InsufficientStockError is raised at checkout when a line cannot be filled.
type InsufficientStockError struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	target := e.ProductID.String()
	if e.VariantID != nil {
		target = fmt.Sprintf("%s (variant %s)", target, e.VariantID.String())
	}
	if e.SKU != "" {
		target = fmt.Sprintf("%s [%s]", target, e.SKU)
	}
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		target, e.Requested, e.Available)
}

// InvalidStateTransitionError rejects an order status change not allowed
// by the lifecycle graph.
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition: %s -> %s", e.From, e.To)
}

// Coupon rejection reasons.
const (
	CouponReasonNotFound     = "not_found"
	CouponReasonInactive     = "inactive"
	CouponReasonNotStarted   = "not_started"
	CouponReasonExpired      = "expired"
	CouponReasonExhausted    = "exhausted"
	CouponReasonBelowMinimum = "below_minimum"
)

// CouponInvalidError reports why a coupon cannot be applied.
type CouponInvalidError struct {
	Code   string
	Reason string
}

func (e *CouponInvalidError) Error() string {
	return fmt.Sprintf("coupon %q is not applicable: %s", e.Code, e.Reason)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

func IsInvalidTransition(err error) bool {
	var target *InvalidStateTransitionError
	return errors.As(err, &target)
}

func IsCouponInvalid(err error) bool {
	var target *CouponInvalidError
	return errors.As(err, &target)
}
