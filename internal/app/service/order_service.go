package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/db"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/observability/metrics"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/ikkim/storefront-backend/pkg/ordernumber"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CheckoutInput struct {
	CartID            uuid.UUID
	CustomerID        uuid.UUID // when set, the cart must belong to this customer
	ShippingAddressID uuid.UUID
	BillingAddressID  uuid.UUID
	CouponCode        string
	Tax               decimal.Decimal
	ShippingCost      decimal.Decimal
	CustomerNotes     string
}

type OrderService interface {
	Checkout(ctx context.Context, input CheckoutInput) (*model.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	GetCustomerOrder(ctx context.Context, customerID, orderID uuid.UUID) (*model.Order, error)
	ListOrdersForCustomer(ctx context.Context, customerID uuid.UUID, page, pageSize int) (model.Page[model.Order], error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, next model.OrderStatus) (*model.Order, error)
	SetTrackingNumber(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*model.Order, error)
	SetAdminNotes(ctx context.Context, orderID uuid.UUID, notes string) (*model.Order, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	variantRepo repository.ProductVariantRepository
	addressRepo repository.AddressRepository
	couponRepo  repository.CouponRepository
	numbers     ordernumber.Generator
	metrics     *metrics.StoreMetrics
	db          *gorm.DB
	now         Clock
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	variantRepo repository.ProductVariantRepository,
	addressRepo repository.AddressRepository,
	couponRepo repository.CouponRepository,
	numbers ordernumber.Generator,
	storeMetrics *metrics.StoreMetrics,
	db *gorm.DB,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		variantRepo: variantRepo,
		addressRepo: addressRepo,
		couponRepo:  couponRepo,
		numbers:     numbers,
		metrics:     storeMetrics,
		db:          db,
		now:         systemClock,
	}
}

// stockLine is one cart line resolved against locked catalog rows.
type stockLine struct {
	item    model.CartItem
	product *model.Product
	variant *model.ProductVariant
}

func (l stockLine) available() int {
	if l.variant != nil {
		return l.variant.StockQuantity
	}
	return l.product.StockQuantity
}

func (l stockLine) stockError() *apperrors.InsufficientStockError {
	err := &apperrors.InsufficientStockError{
		ProductID: l.item.ProductID,
		VariantID: l.item.VariantID,
		Requested: l.item.Quantity,
	}
	if l.product != nil && l.product.IsPurchasable() {
		err.Available = l.available()
	}
	if l.variant != nil {
		err.SKU = l.variant.SKU
	} else if l.product != nil && l.product.SKU != nil {
		err.SKU = *l.product.SKU
	}
	return err
}

func (l stockLine) snapshot() model.OrderItem {
	item := model.OrderItem{
		ProductID:   l.product.ID,
		VariantID:   l.item.VariantID,
		ProductName: l.product.Name,
		UnitPrice:   l.product.Price,
		Quantity:    l.item.Quantity,
	}
	if l.product.SKU != nil {
		item.ProductSKU = *l.product.SKU
	}
	if l.variant != nil {
		item.ProductName = fmt.Sprintf("%s (%s)", l.product.Name, l.variant.Name)
		item.ProductSKU = l.variant.SKU
		item.UnitPrice = l.variant.FinalPrice(l.product.Price)
	}
	return item
}

// sortCartLines orders lines by product then variant so concurrent checkouts
// acquire row locks in the same order.
func sortCartLines(items []model.CartItem) []model.CartItem {
	sorted := append([]model.CartItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ProductID != b.ProductID {
			return a.ProductID.String() < b.ProductID.String()
		}
		return variantKey(a.VariantID) < variantKey(b.VariantID)
	})
	return sorted
}

func variantKey(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func validateCheckout(input CheckoutInput) error {
	if input.CartID == uuid.Nil {
		return apperrors.NewValidation("cart_id", "is required")
	}
	if input.ShippingAddressID == uuid.Nil {
		return apperrors.NewValidation("shipping_address_id", "is required")
	}
	if input.BillingAddressID == uuid.Nil {
		return apperrors.NewValidation("billing_address_id", "is required")
	}
	if input.Tax.IsNegative() {
		return apperrors.NewValidation("tax", "must not be negative")
	}
	if input.ShippingCost.IsNegative() {
		return apperrors.NewValidation("shipping_cost", "must not be negative")
	}
	return nil
}

// Checkout converts an active cart into an order. Stock checks, stock
// decrements, coupon redemption, cart deactivation and order creation commit
// together or not at all.
func (s *orderService) Checkout(ctx context.Context, input CheckoutInput) (order *model.Order, err error) {
	started := time.Now()
	couponApplied := false
	defer func() {
		s.metrics.ObserveCheckout(err, time.Since(started))
		if err == nil && couponApplied {
			s.metrics.IncCouponRedemption()
		}
	}()

	if err := validateCheckout(input); err != nil {
		return nil, err
	}

	logger.Info("Starting checkout", map[string]interface{}{
		"cart_id":     input.CartID,
		"customer_id": input.CustomerID,
		"has_coupon":  input.CouponCode != "",
	})

	err = db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		couponApplied = false
		now := s.now()

		carts := s.cartRepo.WithTx(tx)
		products := s.productRepo.WithTx(tx)
		variants := s.variantRepo.WithTx(tx)
		addresses := s.addressRepo.WithTx(tx)
		coupons := s.couponRepo.WithTx(tx)

		locked, err := carts.LockByID(ctx, input.CartID)
		if err != nil {
			return apperrors.ClassifyDBError(err, "cart", input.CartID)
		}
		if locked.UserID == nil {
			return apperrors.NewValidation("cart_id", "guest carts must be merged into a customer cart before checkout")
		}
		customerID := *locked.UserID
		if input.CustomerID != uuid.Nil && input.CustomerID != customerID {
			return apperrors.NewNotFound("cart", input.CartID)
		}
		if !locked.IsActive {
			return apperrors.NewValidation("cart_id", "cart is not active")
		}

		cart, err := carts.FindByID(ctx, input.CartID)
		if err != nil {
			return apperrors.ClassifyDBError(err, "cart", input.CartID)
		}
		if len(cart.Items) == 0 {
			return apperrors.NewValidation("cart_id", "cart is empty")
		}

		shipping, err := ownedAddress(ctx, addresses, customerID, input.ShippingAddressID)
		if err != nil {
			return err
		}
		billing, err := ownedAddress(ctx, addresses, customerID, input.BillingAddressID)
		if err != nil {
			return err
		}

		lines := make([]stockLine, 0, len(cart.Items))
		for _, item := range sortCartLines(cart.Items) {
			line := stockLine{item: item}

			line.product, err = products.LockByID(ctx, item.ProductID)
			if err != nil {
				return apperrors.ClassifyDBError(err, "product", item.ProductID)
			}
			if item.VariantID != nil {
				line.variant, err = variants.LockByID(ctx, *item.VariantID)
				if err != nil {
					return apperrors.ClassifyDBError(err, "product_variant", *item.VariantID)
				}
				if line.variant.ProductID != line.product.ID {
					return apperrors.NewValidation("variant_id", "variant does not belong to product")
				}
			}

			if !line.product.IsPurchasable() || line.available() < item.Quantity {
				return line.stockError()
			}
			lines = append(lines, line)
		}

		orderItems := make([]model.OrderItem, 0, len(lines))
		subtotal := decimal.Zero
		for _, line := range lines {
			snapshot := line.snapshot()
			subtotal = subtotal.Add(snapshot.Subtotal())
			orderItems = append(orderItems, snapshot)
		}

		discount := decimal.Zero
		var couponCode *string
		if code := NormalizeCouponCode(input.CouponCode); code != "" {
			coupon, err := coupons.LockByCode(ctx, code)
			if err != nil {
				return couponLookupError(err, code)
			}
			if err := checkCoupon(coupon, subtotal, now); err != nil {
				return err
			}
			ok, err := coupons.IncrementUsage(ctx, coupon.ID)
			if err != nil {
				return err
			}
			if !ok {
				return &apperrors.CouponInvalidError{Code: code, Reason: apperrors.CouponReasonExhausted}
			}
			discount = coupon.Discount(subtotal)
			couponCode = &coupon.Code
			couponApplied = true
		}

		for _, line := range lines {
			var ok bool
			if line.variant != nil {
				ok, err = variants.DecrementStock(ctx, line.variant.ID, line.item.Quantity)
			} else {
				ok, err = products.DecrementStock(ctx, line.product.ID, line.item.Quantity)
			}
			if err != nil {
				return err
			}
			if !ok {
				return line.stockError()
			}
		}

		deactivated, err := carts.Deactivate(ctx, cart.ID)
		if err != nil {
			return err
		}
		if !deactivated {
			return apperrors.NewConflict("cart", "already_checked_out", cart.ID)
		}

		number, err := s.numbers.Next(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to assign order number: %w", err)
		}

		tax := input.Tax.Round(2)
		shippingCost := input.ShippingCost.Round(2)
		order = &model.Order{
			OrderNumber:       number,
			CustomerID:        customerID,
			Status:            model.OrderStatusPending,
			ShippingAddressID: shipping.ID,
			BillingAddressID:  billing.ID,
			ShippingAddress:   shipping.Snapshot(),
			BillingAddress:    billing.Snapshot(),
			Subtotal:          subtotal,
			Tax:               tax,
			ShippingCost:      shippingCost,
			Discount:          discount,
			Total:             model.OrderTotal(subtotal, tax, shippingCost, discount),
			CouponCode:        couponCode,
			CustomerNotes:     strings.TrimSpace(input.CustomerNotes),
			Items:             orderItems,
		}
		if err := s.orderRepo.WithTx(tx).Create(ctx, order); err != nil {
			return apperrors.ClassifyDBError(err, "order", number)
		}
		return nil
	})
	if err != nil {
		logger.Warn("Checkout failed", map[string]interface{}{
			"cart_id": input.CartID,
			"result":  metrics.CheckoutResult(err),
			"error":   err.Error(),
		})
		return nil, err
	}

	logger.Info("Checkout completed", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"customer_id":  order.CustomerID,
		"total":        order.Total.StringFixed(2),
		"items_count":  len(order.Items),
	})
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.ClassifyDBError(err, "order", orderID)
	}
	return order, nil
}

func (s *orderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	orderNumber = strings.ToUpper(strings.TrimSpace(orderNumber))
	if orderNumber == "" {
		return nil, apperrors.NewValidation("number", "is required")
	}
	order, err := s.orderRepo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, apperrors.ClassifyDBError(err, "order", orderNumber)
	}
	return order, nil
}

// GetCustomerOrder returns the order only if it belongs to customerID.
func (s *orderService) GetCustomerOrder(ctx context.Context, customerID, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		logger.Warn("Order belongs to another customer", map[string]interface{}{
			"order_id":    orderID,
			"customer_id": customerID,
		})
		return nil, apperrors.NewNotFound("order", orderID)
	}
	return order, nil
}

func (s *orderService) ListOrdersForCustomer(ctx context.Context, customerID uuid.UUID, page, pageSize int) (model.Page[model.Order], error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	orders, total, err := s.orderRepo.FindByCustomer(ctx, customerID, page, pageSize)
	if err != nil {
		logger.Error("Failed to list customer orders", err, map[string]interface{}{
			"customer_id": customerID,
		})
		return model.Page[model.Order]{}, err
	}
	return model.NewPage(orders, total, page, pageSize), nil
}

// TransitionStatus moves an order along the lifecycle graph. Shipping and
// delivery stamp their timestamps; cancelling before shipment restocks.
func (s *orderService) TransitionStatus(ctx context.Context, orderID uuid.UUID, next model.OrderStatus) (*model.Order, error) {
	if !next.Valid() {
		return nil, apperrors.NewValidation("status", fmt.Sprintf("unknown status %q", next))
	}

	var from model.OrderStatus
	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		orders := s.orderRepo.WithTx(tx)

		order, err := orders.LockByID(ctx, orderID)
		if err != nil {
			return apperrors.ClassifyDBError(err, "order", orderID)
		}
		from = order.Status
		if !from.CanTransitionTo(next) {
			return &apperrors.InvalidStateTransitionError{From: string(from), To: string(next)}
		}

		now := s.now()
		changes := map[string]interface{}{"status": next}
		switch next {
		case model.OrderStatusShipped:
			changes["shipped_at"] = now
		case model.OrderStatusDelivered:
			changes["delivered_at"] = now
		}

		ok, err := orders.UpdateStatus(ctx, orderID, from, changes)
		if err != nil {
			return err
		}
		if !ok {
			return &apperrors.InvalidStateTransitionError{From: string(from), To: string(next)}
		}

		if next == model.OrderStatusCancelled && from.RestocksOnCancel() {
			return s.restock(ctx, tx, order.Items)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsInvalidTransition(err) {
			logger.Warn("Order status transition rejected", map[string]interface{}{
				"order_id": orderID,
				"from":     from,
				"to":       next,
			})
		}
		return nil, err
	}

	s.metrics.IncOrderTransition(string(from), string(next))
	logger.Info("Order status changed", map[string]interface{}{
		"order_id": orderID,
		"from":     from,
		"to":       next,
	})
	return s.GetOrder(ctx, orderID)
}

// ownedAddress loads an address of customerID. Another customer's address
// is reported as not found.
func ownedAddress(ctx context.Context, addresses repository.AddressRepository, customerID, addressID uuid.UUID) (*model.Address, error) {
	address, err := addresses.FindByID(ctx, addressID)
	if err != nil {
		return nil, apperrors.ClassifyDBError(err, "address", addressID)
	}
	if address.UserID != customerID {
		return nil, apperrors.NewNotFound("address", addressID)
	}
	return address, nil
}

func (s *orderService) restock(ctx context.Context, tx *gorm.DB, items []model.OrderItem) error {
	products := s.productRepo.WithTx(tx)
	variants := s.variantRepo.WithTx(tx)

	sorted := append([]model.OrderItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProductID != sorted[j].ProductID {
			return sorted[i].ProductID.String() < sorted[j].ProductID.String()
		}
		return variantKey(sorted[i].VariantID) < variantKey(sorted[j].VariantID)
	})

	for _, item := range sorted {
		var err error
		if item.VariantID != nil {
			err = variants.IncrementStock(ctx, *item.VariantID, item.Quantity)
		} else {
			err = products.IncrementStock(ctx, item.ProductID, item.Quantity)
		}
		if err != nil {
			logger.Error("Failed to restock order item", err, map[string]interface{}{
				"order_item_id": item.ID,
				"product_id":    item.ProductID,
			})
			return err
		}
	}
	return nil
}

func (s *orderService) SetTrackingNumber(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*model.Order, error) {
	if err := requireText("tracking_number", trackingNumber, 100); err != nil {
		return nil, err
	}

	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		orders := s.orderRepo.WithTx(tx)
		order, err := orders.LockByID(ctx, orderID)
		if err != nil {
			return apperrors.ClassifyDBError(err, "order", orderID)
		}
		if order.Status == model.OrderStatusCancelled || order.Status == model.OrderStatusRefunded {
			return apperrors.NewValidation("tracking_number", "cannot be set on a "+string(order.Status)+" order")
		}
		return orders.UpdateFields(ctx, orderID, map[string]interface{}{
			"tracking_number": strings.TrimSpace(trackingNumber),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Tracking number set", map[string]interface{}{
		"order_id": orderID,
	})
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) SetAdminNotes(ctx context.Context, orderID uuid.UUID, notes string) (*model.Order, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	if err := s.orderRepo.UpdateFields(ctx, orderID, map[string]interface{}{"admin_notes": notes}); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}
