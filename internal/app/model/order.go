package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// CanTransitionTo reports whether s -> next is an edge of the lifecycle graph.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RestocksOnCancel reports whether cancelling from s returns stock,
// i.e. the goods have not left the warehouse yet.
func (s OrderStatus) RestocksOnCancel() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// Order is an immutable snapshot of a completed checkout. Only status,
// tracking and notes change after creation.
type Order struct {
	Base
	OrderNumber string      `gorm:"size:50;not null;uniqueIndex" json:"order_number"`
	CustomerID  uuid.UUID   `gorm:"type:uuid;not null;index" json:"customer_id"`
	Status      OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	ShippingAddressID uuid.UUID       `gorm:"type:uuid;not null;index" json:"shipping_address_id"`
	BillingAddressID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"billing_address_id"`
	ShippingAddress   AddressSnapshot `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	BillingAddress    AddressSnapshot `gorm:"embedded;embeddedPrefix:billing_" json:"billing_address"`

	Subtotal     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"subtotal"`
	Tax          decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"tax"`
	ShippingCost decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"shipping_cost"`
	Discount     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"discount"`
	Total        decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total"`
	CouponCode   *string         `gorm:"size:50" json:"coupon_code,omitempty"`

	TrackingNumber string     `gorm:"size:100" json:"tracking_number"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	CustomerNotes  string     `gorm:"type:text" json:"customer_notes"`
	AdminNotes     string     `gorm:"type:text" json:"admin_notes,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`

	Customer           *User    `gorm:"foreignKey:CustomerID;constraint:OnDelete:RESTRICT" json:"-"`
	ShippingAddressRef *Address `gorm:"foreignKey:ShippingAddressID;constraint:OnDelete:RESTRICT" json:"-"`
	BillingAddressRef  *Address `gorm:"foreignKey:BillingAddressID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderTotal is subtotal + tax + shipping - discount.
func OrderTotal(subtotal, tax, shippingCost, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Add(tax).Add(shippingCost).Sub(discount)
}

// OrderItem stores the product name, SKU and unit price as they were at checkout.
type OrderItem struct {
	Base
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	VariantID   *uuid.UUID      `gorm:"type:uuid;index" json:"variant_id,omitempty"`
	ProductName string          `gorm:"size:200;not null" json:"product_name"`
	ProductSKU  string          `gorm:"column:product_sku;size:50;not null" json:"product_sku"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"unit_price"`
	Quantity    int             `gorm:"not null" json:"quantity"`

	Product *Product        `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"-"`
	Variant *ProductVariant `gorm:"foreignKey:VariantID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
