package model

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Product struct {
	Base
	SoftDelete
	Name            string          `gorm:"size:200;not null;index" json:"name"`
	Slug            string          `gorm:"size:200;not null;uniqueIndex" json:"slug"`
	Description     string          `gorm:"type:text" json:"description"`
	SKU             *string         `gorm:"column:sku;size:50;uniqueIndex" json:"sku,omitempty"` // optional for products with variants
	BrandID         *uuid.UUID      `gorm:"type:uuid;index" json:"brand_id,omitempty"`
	CategoryID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"category_id"`
	Price           decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	CostPrice       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"cost_price"`
	StockQuantity   int             `gorm:"not null;default:0" json:"stock_quantity"`
	IsAvailable     bool            `gorm:"not null" json:"is_available"`
	MetaDescription string          `gorm:"size:160" json:"meta_description"`
	MetaKeywords    string          `gorm:"size:200" json:"meta_keywords"`

	Brand    *Brand           `gorm:"foreignKey:BrandID;constraint:OnDelete:RESTRICT" json:"brand,omitempty"`
	Category *Category        `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT" json:"category,omitempty"`
	Images   []ProductImage   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
	Variants []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	Reviews  []Review         `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Product) TableName() string {
	return "products"
}

// IsInStock reports whether the product can currently be sold.
func (p Product) IsInStock() bool {
	return p.StockQuantity > 0 && p.IsAvailable && !p.IsDeleted
}

// IsPurchasable reports whether the product may appear in listings and orders.
func (p Product) IsPurchasable() bool {
	return p.IsAvailable && !p.IsDeleted
}

// ProfitMargin returns (price - cost) / price as a percentage, rounded to 2 places.
func (p Product) ProfitMargin() decimal.Decimal {
	if !p.Price.IsPositive() {
		return decimal.Zero
	}
	return p.Price.Sub(p.CostPrice).Div(p.Price).Mul(hundred).Round(2)
}

// DisplayImages returns the primary image(s) ordered by display order,
// falling back to every image when none is marked primary.
func (p Product) DisplayImages() []ProductImage {
	var primary []ProductImage
	for _, img := range p.Images {
		if img.IsPrimary {
			primary = append(primary, img)
		}
	}
	if len(primary) == 0 {
		primary = append(primary, p.Images...)
	}
	sort.SliceStable(primary, func(i, j int) bool {
		if primary[i].DisplayOrder != primary[j].DisplayOrder {
			return primary[i].DisplayOrder < primary[j].DisplayOrder
		}
		return primary[i].CreatedAt.Before(primary[j].CreatedAt)
	})
	return primary
}

// ProductImage references an externally stored image file.
// At most one image per product is primary.
type ProductImage struct {
	Base
	ProductID    uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	ImageRef     string    `gorm:"size:500;not null" json:"image_ref"` // storage key or URL
	AltText      string    `gorm:"size:200" json:"alt_text"`
	IsPrimary    bool      `gorm:"not null;default:false" json:"is_primary"`
	DisplayOrder int       `gorm:"not null;default:0" json:"display_order"`
}

func (ProductImage) TableName() string {
	return "product_images"
}

type ProductVariant struct {
	Base
	ProductID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Name            string          `gorm:"size:100;not null" json:"name"` // e.g. "Large, Red"
	SKU             string          `gorm:"column:sku;size:50;not null;uniqueIndex" json:"sku"`
	PriceAdjustment decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price_adjustment"`
	StockQuantity   int             `gorm:"not null;default:0" json:"stock_quantity"`
}

func (ProductVariant) TableName() string {
	return "product_variants"
}

// FinalPrice is the base price plus the adjustment, never below zero.
func (v ProductVariant) FinalPrice(basePrice decimal.Decimal) decimal.Decimal {
	price := basePrice.Add(v.PriceAdjustment)
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}
