package controller

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/service"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *controllerEnv) stock(t *testing.T, productID uuid.UUID) int {
	w := e.do(t, request{method: http.MethodGet, path: "/admin/products/" + productID.String(), token: e.staffToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return int(decode(t, w)["product"].(map[string]interface{})["stock_quantity"].(float64))
}

// placeOrder checks out a fresh cart for s and returns the order id.
func (e *controllerEnv) placeOrder(t *testing.T, s shopper, productID uuid.UUID, quantity int) string {
	cartID := e.cartWith(t, s, productID, quantity)
	w := e.do(t, request{method: http.MethodPost, path: "/orders", token: s.token, body: e.checkoutBody(s, cartID)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["order"].(map[string]interface{})["id"].(string)
}

func TestOrderController_Checkout(t *testing.T) {
	env := setupControllerTest(t)
	product := env.product(t, "Kettle", "10.00", 3)
	s := env.shopper(t)
	cartID := env.cartWith(t, s, product.ID, 2)

	body := env.checkoutBody(s, cartID)
	body["customer_notes"] = "  leave at the door  "
	w := env.do(t, request{method: http.MethodPost, path: "/orders", token: s.token, body: body})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	order := decode(t, w)["order"].(map[string]interface{})
	assert.Equal(t, string(model.OrderStatusPending), order["status"])
	assert.Equal(t, "20", decimal2(t, order, "subtotal"))
	assert.Equal(t, "25", decimal2(t, order, "total"))
	assert.Equal(t, "leave at the door", order["customer_notes"])
	assert.Equal(t, "Springfield", order["shipping_address"].(map[string]interface{})["city"])
	assert.Len(t, order["items"], 1)
	assert.Equal(t, 1, env.stock(t, product.ID))

	w = env.do(t, request{method: http.MethodPost, path: "/orders", token: s.token, body: body})
	assert.Equal(t, http.StatusBadRequest, w.Code, "a checked out cart cannot be reused")

	w = env.do(t, request{method: http.MethodGet, path: "/orders", token: s.token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total"])
}

func TestOrderController_CheckoutInsufficientStock(t *testing.T) {
	env := setupControllerTest(t)
	product := env.product(t, "Last Toaster", "30.00", 2)
	first, second := env.shopper(t), env.shopper(t)

	firstCart := env.cartWith(t, first, product.ID, 2)
	secondCart := env.cartWith(t, second, product.ID, 2)

	w := env.do(t, request{method: http.MethodPost, path: "/orders", token: first.token, body: env.checkoutBody(first, firstCart)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, request{method: http.MethodPost, path: "/orders", token: second.token, body: env.checkoutBody(second, secondCart)})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, apperrors.OrderInsufficientStock, errorCode(t, w))

	details := decode(t, w)["details"].(map[string]interface{})
	assert.Equal(t, float64(2), details["requested"])
	assert.Equal(t, float64(0), details["available"])
	assert.Equal(t, product.ID.String(), details["product_id"])
}

func TestOrderController_CheckoutRejections(t *testing.T) {
	env := setupControllerTest(t)
	product := env.product(t, "Blender", "50.00", 10)
	s, stranger := env.shopper(t), env.shopper(t)
	cartID := env.cartWith(t, s, product.ID, 1)

	withCoupon := env.checkoutBody(s, cartID)
	withCoupon["coupon_code"] = "NOPE"

	tests := []struct {
		name       string
		token      string
		body       map[string]interface{}
		wantStatus int
		wantCode   string
	}{
		{name: "unknown coupon", token: s.token, body: withCoupon, wantStatus: http.StatusUnprocessableEntity, wantCode: apperrors.CouponInvalid},
		{name: "someone else's cart", token: stranger.token, body: env.checkoutBody(stranger, cartID), wantStatus: http.StatusNotFound, wantCode: apperrors.ResourceNotFound},
		{name: "missing addresses", token: s.token, body: map[string]interface{}{"cart_id": cartID}, wantStatus: http.StatusBadRequest, wantCode: apperrors.ValidationInvalidInput},
		{name: "anonymous", body: env.checkoutBody(s, cartID), wantStatus: http.StatusUnauthorized, wantCode: apperrors.AuthUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, request{method: http.MethodPost, path: "/orders", token: tt.token, body: tt.body})
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(t, w))
		})
	}

	assert.Equal(t, 10, env.stock(t, product.ID), "rejected checkouts leave stock alone")
}

func TestOrderController_CheckoutWithCoupon(t *testing.T) {
	env := setupControllerTest(t)
	product := env.product(t, "Rug", "80.00", 5)
	s := env.shopper(t)

	limit := 1
	_, err := env.coupons.CreateCoupon(context.Background(), service.CouponInput{
		Code:          "take10",
		DiscountType:  model.DiscountFixed,
		DiscountValue: decimal.NewFromInt(10),
		UsageLimit:    &limit,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(24 * time.Hour),
		IsActive:      true,
	})
	require.NoError(t, err)

	cartID := env.cartWith(t, s, product.ID, 1)
	body := env.checkoutBody(s, cartID)
	body["coupon_code"] = "TAKE10"
	w := env.do(t, request{method: http.MethodPost, path: "/orders", token: s.token, body: body})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	order := decode(t, w)["order"].(map[string]interface{})
	assert.Equal(t, "10", decimal2(t, order, "discount"))
	assert.Equal(t, "75", decimal2(t, order, "total"))
	assert.Equal(t, "TAKE10", order["coupon_code"])

	cartID = env.cartWith(t, s, product.ID, 1)
	body = env.checkoutBody(s, cartID)
	body["coupon_code"] = "TAKE10"
	w = env.do(t, request{method: http.MethodPost, path: "/orders", token: s.token, body: body})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, apperrors.CouponReasonExhausted, decode(t, w)["details"].(map[string]interface{})["reason"])
}

func TestOrderController_Lifecycle(t *testing.T) {
	env := setupControllerTest(t)
	product := env.product(t, "Chair", "40.00", 5)
	s := env.shopper(t)
	orderID := env.placeOrder(t, s, product.ID, 2)

	status := func(next string) *request {
		return &request{method: http.MethodPut, path: "/admin/orders/" + orderID + "/status", token: env.staffToken,
			body: map[string]interface{}{"status": next}}
	}

	w := env.do(t, *status("processing"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(t, *status("shipped"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, decode(t, w)["order"].(map[string]interface{})["shipped_at"])

	w = env.do(t, request{method: http.MethodPost, path: "/orders/" + orderID + "/cancel", token: s.token})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, apperrors.OrderInvalidTransition, errorCode(t, w))

	w = env.do(t, request{method: http.MethodPut, path: "/admin/orders/" + orderID + "/tracking", token: env.staffToken,
		body: map[string]interface{}{"tracking_number": " 1Z999 "}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1Z999", decode(t, w)["order"].(map[string]interface{})["tracking_number"])

	w = env.do(t, request{method: http.MethodPut, path: "/admin/orders/" + orderID + "/notes", token: env.staffToken,
		body: map[string]interface{}{"admin_notes": "fragile"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, *status("delivered"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, *status("shipped"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.OrderInvalidTransition, errorCode(t, w))

	w = env.do(t, *status("lost"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 3, env.stock(t, product.ID), "delivered orders keep their stock")
}

func TestOrderController_AdminLookup(t *testing.T) {
	env := setupControllerTest(t)
	product := env.product(t, "Toaster", "30.00", 2)
	s := env.shopper(t)
	orderID := env.placeOrder(t, s, product.ID, 1)

	w := env.do(t, request{method: http.MethodGet, path: "/admin/orders/" + orderID, token: env.staffToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	number := decode(t, w)["order"].(map[string]interface{})["order_number"].(string)

	w = env.do(t, request{method: http.MethodGet, path: "/admin/orders?number=" + strings.ToLower(number), token: env.staffToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, orderID, decode(t, w)["order"].(map[string]interface{})["id"])

	tests := []struct {
		name       string
		req        request
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown number",
			req:        request{method: http.MethodGet, path: "/admin/orders?number=ORD-MISSING", token: env.staffToken},
			wantStatus: http.StatusNotFound,
			wantCode:   apperrors.ResourceNotFound,
		},
		{
			name:       "missing number",
			req:        request{method: http.MethodGet, path: "/admin/orders", token: env.staffToken},
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.ValidationInvalidInput,
		},
		{
			name:       "customer token",
			req:        request{method: http.MethodGet, path: "/admin/orders?number=" + number, token: s.token},
			wantStatus: http.StatusForbidden,
			wantCode:   apperrors.AuthzForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.req)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(t, w))
		})
	}
}

func TestOrderController_CustomerCancelRestocks(t *testing.T) {
	env := setupControllerTest(t)
	product := env.product(t, "Desk", "120.00", 4)
	s, stranger := env.shopper(t), env.shopper(t)
	orderID := env.placeOrder(t, s, product.ID, 3)
	require.Equal(t, 1, env.stock(t, product.ID))

	w := env.do(t, request{method: http.MethodGet, path: "/orders/" + orderID, token: stranger.token})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, request{method: http.MethodPost, path: "/orders/" + orderID + "/cancel", token: stranger.token})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, request{method: http.MethodPost, path: "/orders/" + orderID + "/cancel", token: s.token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(model.OrderStatusCancelled), decode(t, w)["order"].(map[string]interface{})["status"])
	assert.Equal(t, 4, env.stock(t, product.ID))
}
