package service

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
)

var validate = validator.New()

// validEmail applies the same rule gin bindings use for `binding:"email"`.
func validEmail(email string) bool {
	return len(email) <= 254 && validate.Var(email, "required,email") == nil
}

// Clock returns the current time. Services take one so tests can pin time.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}

// slugFor returns explicit when set, otherwise a slug derived from name.
func slugFor(explicit, name string) (string, error) {
	candidate := strings.TrimSpace(explicit)
	if candidate == "" {
		candidate = slug.Make(name)
	}
	if !slug.IsSlug(candidate) {
		return "", apperrors.NewValidation("slug", "must contain only lower-case letters, digits and hyphens")
	}
	return candidate, nil
}

func requireText(field, value string, max int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return apperrors.NewValidation(field, "is required")
	}
	if max > 0 && len(value) > max {
		return apperrors.NewValidation(field, "is too long")
	}
	return nil
}
