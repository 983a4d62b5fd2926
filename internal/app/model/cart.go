package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is owned by exactly one of a user or an anonymous session key.
type Cart struct {
	Base
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	SessionKey *string    `gorm:"size:40;index" json:"session_key,omitempty"`
	IsActive   bool       `gorm:"not null;index" json:"is_active"`

	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
}

func (Cart) TableName() string {
	return "carts"
}

// Total sums the item subtotals. Items must have Product (and Variant) loaded.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ItemCount sums the quantities of all lines.
func (c Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// CartItem is unique per (cart, product, variant).
type CartItem struct {
	Base
	CartID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"cart_id"`
	ProductID uuid.UUID  `gorm:"type:uuid;not null;index" json:"product_id"`
	VariantID *uuid.UUID `gorm:"type:uuid;index" json:"variant_id,omitempty"`
	Quantity  int        `gorm:"not null" json:"quantity"`

	Product *Product        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product,omitempty"`
	Variant *ProductVariant `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE" json:"variant,omitempty"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// UnitPrice is the variant's final price when a variant is set,
// otherwise the product price.
func (i CartItem) UnitPrice() decimal.Decimal {
	if i.Product == nil {
		return decimal.Zero
	}
	if i.Variant != nil {
		return i.Variant.FinalPrice(i.Product.Price)
	}
	return i.Product.Price
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}
