package controller

import (
	"net/http"
	"testing"
	"time"

	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouponController_CreateAndApply(t *testing.T) {
	env := setupControllerTest(t)

	w := env.do(t, request{method: http.MethodPost, path: "/admin/coupons", token: env.staffToken, body: map[string]interface{}{
		"code":           "spring25",
		"discount_type":  "percentage",
		"discount_value": "25",
		"max_discount":   "15",
		"valid_from":     time.Now().Add(-time.Hour).Format(time.RFC3339),
		"valid_to":       time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	coupon := decode(t, w)["coupon"].(map[string]interface{})
	assert.Equal(t, "SPRING25", coupon["code"])
	assert.Equal(t, true, coupon["is_active"])

	tests := []struct {
		name         string
		subtotal     string
		wantDiscount string
	}{
		{name: "percentage", subtotal: "40.00", wantDiscount: "10"},
		{name: "capped", subtotal: "200.00", wantDiscount: "15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, request{method: http.MethodPost, path: "/coupons/apply",
				body: map[string]interface{}{"code": "spring25", "subtotal": tt.subtotal}})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, tt.wantDiscount, decimal2(t, decode(t, w), "discount"))
		})
	}

	w = env.do(t, request{method: http.MethodPost, path: "/admin/coupons", token: env.staffToken, body: map[string]interface{}{
		"code":           "SPRING25",
		"discount_type":  "fixed",
		"discount_value": "5",
		"valid_from":     time.Now().Format(time.RFC3339),
		"valid_to":       time.Now().Add(time.Hour).Format(time.RFC3339),
	}})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCouponController_ApplyRejections(t *testing.T) {
	env := setupControllerTest(t)

	w := env.do(t, request{method: http.MethodPost, path: "/admin/coupons", token: env.staffToken, body: map[string]interface{}{
		"code":                "BIGSPEND",
		"discount_type":       "fixed",
		"discount_value":      "20",
		"min_purchase_amount": "100",
		"valid_from":          time.Now().Add(-time.Hour).Format(time.RFC3339),
		"valid_to":            time.Now().Add(time.Hour).Format(time.RFC3339),
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	tests := []struct {
		name       string
		code       string
		wantReason string
	}{
		{name: "unknown", code: "NOPE", wantReason: apperrors.CouponReasonNotFound},
		{name: "below minimum", code: "BIGSPEND", wantReason: apperrors.CouponReasonBelowMinimum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, request{method: http.MethodPost, path: "/coupons/apply",
				body: map[string]interface{}{"code": tt.code, "subtotal": "50"}})
			require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
			assert.Equal(t, apperrors.CouponInvalid, errorCode(t, w))
			assert.Equal(t, tt.wantReason, decode(t, w)["details"].(map[string]interface{})["reason"])
		})
	}

	w = env.do(t, request{method: http.MethodPost, path: "/admin/coupons", token: env.staffToken, body: map[string]interface{}{
		"code":           "BACKWARDS",
		"discount_type":  "fixed",
		"discount_value": "5",
		"valid_from":     time.Now().Add(time.Hour).Format(time.RFC3339),
		"valid_to":       time.Now().Format(time.RFC3339),
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ValidationInvalidInput, errorCode(t, w))
}
