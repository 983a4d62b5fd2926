package errors

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes the service reacts to.
const (
	PGUniqueViolation      = "23505"
	PGForeignKeyViolation  = "23503"
	PGCheckViolation       = "23514"
	PGSerializationFailure = "40001"
	PGDeadlockDetected     = "40P01"
	PGLockNotAvailable     = "55P03"
)

// ErrorInfo is the transport-neutral view of an error.
type ErrorInfo struct {
	Status  int                    // HTTP status code
	Code    string                 // error code (see codes.go)
	Message string                 // safe message for the caller
	Details map[string]interface{} // which row / which constraint
}

// HasPGCode reports whether err wraps a PostgreSQL error with the given SQLSTATE.
func HasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

// ClassifyDBError translates a raw driver or gorm error into the domain taxonomy.
// Errors that are already domain errors, and errors it does not recognise, are
// returned unchanged.
func ClassifyDBError(err error, entity string, key interface{}) error {
	if err == nil {
		return nil
	}
	if isDomain(err) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFound(entity, key)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case PGUniqueViolation:
			return NewConflict(entity, constraintColumn(pgErr.ConstraintName), key)
		case PGForeignKeyViolation:
			return NewConflict(entity, "reference:"+pgErr.ConstraintName, key)
		case PGCheckViolation:
			return NewValidation(pgErr.ConstraintName, pgErr.Message)
		}
		return err
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return NewConflict(entity, "unique", key)
	}

	// SQLite (test database) reports constraint failures as plain text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return NewConflict(entity, sqliteConstraint(msg), key)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return NewConflict(entity, "reference", key)
	case strings.Contains(msg, "CHECK constraint failed"):
		return NewValidation(sqliteConstraint(msg), "check constraint failed")
	}
	return err
}

// IsRetryable reports whether a transaction failing with err may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if HasPGCode(err, PGSerializationFailure) ||
		HasPGCode(err, PGDeadlockDetected) ||
		HasPGCode(err, PGLockNotAvailable) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// ParseError maps any error to the status, code and details the transport layer renders.
func ParseError(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Status:  http.StatusInternalServerError,
			Code:    InternalServerError,
			Message: "internal server error",
		}
	}

	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		conflictErr   *ConflictError
		stockErr      *InsufficientStockError
		transitionErr *InvalidStateTransitionError
		couponErr     *CouponInvalidError
	)

	switch {
	case errors.As(err, &validationErr):
		return ErrorInfo{
			Status:  http.StatusBadRequest,
			Code:    ValidationInvalidInput,
			Message: validationErr.Error(),
			Details: map[string]interface{}{"field": validationErr.Field, "reason": validationErr.Reason},
		}
	case errors.As(err, &notFoundErr):
		return ErrorInfo{
			Status:  http.StatusNotFound,
			Code:    ResourceNotFound,
			Message: notFoundErr.Error(),
			Details: map[string]interface{}{"entity": notFoundErr.Entity, "key": notFoundErr.Key},
		}
	case errors.As(err, &conflictErr):
		return ErrorInfo{
			Status:  http.StatusConflict,
			Code:    ResourceConflict,
			Message: conflictErr.Error(),
			Details: map[string]interface{}{
				"entity":     conflictErr.Entity,
				"constraint": conflictErr.Constraint,
				"value":      conflictErr.Value,
			},
		}
	case errors.As(err, &stockErr):
		details := map[string]interface{}{
			"product_id": stockErr.ProductID.String(),
			"sku":        stockErr.SKU,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		}
		if stockErr.VariantID != nil {
			details["variant_id"] = stockErr.VariantID.String()
		}
		return ErrorInfo{
			Status:  http.StatusConflict,
			Code:    OrderInsufficientStock,
			Message: stockErr.Error(),
			Details: details,
		}
	case errors.As(err, &transitionErr):
		return ErrorInfo{
			Status:  http.StatusConflict,
			Code:    OrderInvalidTransition,
			Message: transitionErr.Error(),
			Details: map[string]interface{}{"from": transitionErr.From, "to": transitionErr.To},
		}
	case errors.As(err, &couponErr):
		return ErrorInfo{
			Status:  http.StatusUnprocessableEntity,
			Code:    CouponInvalid,
			Message: couponErr.Error(),
			Details: map[string]interface{}{"code": couponErr.Code, "reason": couponErr.Reason},
		}
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorInfo{
			Status:  http.StatusServiceUnavailable,
			Code:    InternalDatabaseError,
			Message: "the operation timed out, please retry",
		}
	}

	return ErrorInfo{
		Status:  http.StatusInternalServerError,
		Code:    InternalServerError,
		Message: "internal server error",
	}
}

func isDomain(err error) bool {
	return IsValidation(err) || IsNotFound(err) || IsConflict(err) ||
		IsInsufficientStock(err) || IsInvalidTransition(err) || IsCouponInvalid(err)
}

// indexConstraints names the rule behind each hand-written unique index.
var indexConstraints = map[string]string{
	"idx_product_images_single_primary": "primary_image",
	"idx_addresses_single_default":      "default_address",
	"idx_cart_items_line_plain":         "cart_line",
	"idx_cart_items_line_variant":       "cart_line",
	"idx_carts_active_user":             "active_cart",
	"idx_carts_active_session":          "active_cart",
	"idx_reviews_product_user":          "product_user",
}

// indexedTables is every table gorm derives "idx_<table>_<column>" names for.
// Longer names come first so "product_variants" wins over "products".
var indexedTables = []string{
	"customer_profiles",
	"product_variants",
	"product_images",
	"order_items",
	"cart_items",
	"categories",
	"addresses",
	"products",
	"coupons",
	"reviews",
	"brands",
	"orders",
	"carts",
	"users",
}

// constraintColumn turns "idx_products_slug" into "slug" and a known partial
// index into the rule it enforces. Other names are returned unchanged.
func constraintColumn(name string) string {
	if rule, ok := indexConstraints[name]; ok {
		return rule
	}
	for _, prefix := range []string{"idx_", "uni_"} {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		for _, table := range indexedTables {
			if column := strings.TrimPrefix(rest, table+"_"); column != rest && column != "" {
				return column
			}
		}
	}
	return name
}

// sqliteConstraint extracts the column or index from
// "UNIQUE constraint failed: products.slug" or "... failed: index 'idx_x'".
func sqliteConstraint(msg string) string {
	i := strings.Index(msg, "failed:")
	if i < 0 {
		return "unique"
	}
	rest := strings.TrimSpace(msg[i+len("failed:"):])
	if strings.HasPrefix(rest, "index ") {
		return constraintColumn(strings.Trim(strings.TrimPrefix(rest, "index "), "'\" "))
	}
	if j := strings.Index(rest, ","); j >= 0 {
		rest = rest[:j]
	}
	if j := strings.LastIndex(rest, "."); j >= 0 {
		rest = rest[j+1:]
	}
	if j := strings.Index(rest, " "); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
