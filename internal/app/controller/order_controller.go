package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/service"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/shopspring/decimal"
)

type OrderController struct {
	orderService service.OrderService
}

func NewOrderController(orderService service.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

// CheckoutRequest carries tax and shipping already priced by the caller.
type CheckoutRequest struct {
	CartID            uuid.UUID       `json:"cart_id" binding:"required"`
	ShippingAddressID uuid.UUID       `json:"shipping_address_id" binding:"required"`
	BillingAddressID  uuid.UUID       `json:"billing_address_id" binding:"required"`
	CouponCode        string          `json:"coupon_code"`
	Tax               decimal.Decimal `json:"tax"`
	ShippingCost      decimal.Decimal `json:"shipping_cost"`
	CustomerNotes     string          `json:"customer_notes"`
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required,oneof=pending processing shipped delivered cancelled refunded"`
}

type TrackingNumberRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

type AdminNotesRequest struct {
	AdminNotes string `json:"admin_notes"`
}

// Checkout turns the customer's cart into an order
// POST /api/v1/orders
func (ctrl *OrderController) Checkout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	log.Debug("Checking out cart", map[string]interface{}{
		"customer_id": customerID,
		"cart_id":     req.CartID,
		"coupon_code": req.CouponCode,
	})

	order, err := ctrl.orderService.Checkout(c.Request.Context(), service.CheckoutInput{
		CartID:            req.CartID,
		CustomerID:        customerID,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		CouponCode:        req.CouponCode,
		Tax:               req.Tax,
		ShippingCost:      req.ShippingCost,
		CustomerNotes:     req.CustomerNotes,
	})
	if err != nil {
		respondError(c, "Checkout failed", err, map[string]interface{}{
			"customer_id": customerID,
			"cart_id":     req.CartID,
		})
		return
	}

	log.Info("Order placed", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.Total.String(),
	})

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created successfully",
		"order":   order,
	})
}

// ListOrders returns the customer's orders, newest first
// GET /api/v1/orders
func (ctrl *OrderController) ListOrders(c *gin.Context) {
	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}

	page, pageSize := pageParams(c)
	orders, err := ctrl.orderService.ListOrdersForCustomer(c.Request.Context(), customerID, page, pageSize)
	if err != nil {
		respondError(c, "Failed to list orders", err, map[string]interface{}{"customer_id": customerID})
		return
	}

	c.JSON(http.StatusOK, orders)
}

// GetOrder returns one of the customer's orders
// GET /api/v1/orders/:id
func (ctrl *OrderController) GetOrder(c *gin.Context) {
	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetCustomerOrder(c.Request.Context(), customerID, orderID)
	if err != nil {
		respondError(c, "Failed to fetch order", err, map[string]interface{}{
			"customer_id": customerID,
			"order_id":    orderID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder lets a customer cancel their own order before it ships
// POST /api/v1/orders/:id/cancel
func (ctrl *OrderController) CancelOrder(c *gin.Context) {
	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetCustomerOrder(c.Request.Context(), customerID, orderID)
	if err != nil {
		respondError(c, "Failed to fetch order", err, map[string]interface{}{"order_id": orderID})
		return
	}
	if !order.Status.RestocksOnCancel() {
		respondError(c, "Customer cancellation after shipment", &apperrors.InvalidStateTransitionError{
			From: string(order.Status),
			To:   string(model.OrderStatusCancelled),
		}, map[string]interface{}{"order_id": orderID})
		return
	}

	order, err = ctrl.orderService.TransitionStatus(c.Request.Context(), orderID, model.OrderStatusCancelled)
	if err != nil {
		respondError(c, "Failed to cancel order", err, map[string]interface{}{"order_id": orderID})
		return
	}

	middleware.GetLoggerFromContext(c).Info("Order cancelled by customer", map[string]interface{}{
		"order_id":    orderID,
		"customer_id": customerID,
	})

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// AdminGetOrder returns any order (Staff only)
// GET /api/v1/admin/orders/:id
func (ctrl *OrderController) AdminGetOrder(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, "Failed to fetch order", err, map[string]interface{}{"order_id": orderID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// FindOrderByNumber looks an order up by its human-readable number (Staff only)
// GET /api/v1/admin/orders?number=ORD-...
func (ctrl *OrderController) FindOrderByNumber(c *gin.Context) {
	number := c.Query("number")
	order, err := ctrl.orderService.GetOrderByNumber(c.Request.Context(), number)
	if err != nil {
		respondError(c, "Failed to find order by number", err, map[string]interface{}{"order_number": number})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateOrderStatus moves an order along its lifecycle (Staff only)
// PUT /api/v1/admin/orders/:id/status
func (ctrl *OrderController) UpdateOrderStatus(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := ctrl.orderService.TransitionStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		respondError(c, "Failed to update order status", err, map[string]interface{}{
			"order_id": orderID,
			"status":   req.Status,
		})
		return
	}

	log.Info("Order status updated", map[string]interface{}{
		"order_id": orderID,
		"status":   order.Status,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated successfully",
		"order":   order,
	})
}

// SetTrackingNumber records the carrier tracking number (Staff only)
// PUT /api/v1/admin/orders/:id/tracking
func (ctrl *OrderController) SetTrackingNumber(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req TrackingNumberRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := ctrl.orderService.SetTrackingNumber(c.Request.Context(), orderID, req.TrackingNumber)
	if err != nil {
		respondError(c, "Failed to set tracking number", err, map[string]interface{}{"order_id": orderID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// SetAdminNotes replaces the internal notes of an order (Staff only)
// PUT /api/v1/admin/orders/:id/notes
func (ctrl *OrderController) SetAdminNotes(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req AdminNotesRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := ctrl.orderService.SetAdminNotes(c.Request.Context(), orderID, req.AdminNotes)
	if err != nil {
		respondError(c, "Failed to set admin notes", err, map[string]interface{}{"order_id": orderID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}
