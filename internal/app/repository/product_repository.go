package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductFilter struct {
	CategorySlug       string
	BrandSlug          string
	Search             string // substring of name or SKU
	MinPrice           *decimal.Decimal
	MaxPrice           *decimal.Decimal
	InStockOnly        bool
	IncludeUnavailable bool // admin listings; soft-deleted rows are always excluded
	Page               int
	PageSize           int
}

type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindBySlug(ctx context.Context, slug string) (*model.Product, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindWithFilter(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	FindRelated(ctx context.Context, product *model.Product, limit int) ([]model.Product, error)
	SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
	IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepository{db: tx}
}

func orderedImages(db *gorm.DB) *gorm.DB {
	return db.Order("display_order ASC, created_at ASC")
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name":        product.Name,
		"slug":        product.Slug,
		"category_id": product.CategoryID,
	})

	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name": product.Name,
			"slug": product.Slug,
		})
		return err
	}

	logger.Debug("Product created in database", map[string]interface{}{
		"product_id": product.ID,
		"slug":       product.Slug,
	})
	return nil
}

func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	logger.Debug("Updating product in database", map[string]interface{}{
		"product_id": product.ID,
	})

	err := r.db.WithContext(ctx).Model(product).
		Select("Name", "Slug", "Description", "SKU", "BrandID", "CategoryID", "Price", "CostPrice",
			"StockQuantity", "IsAvailable", "MetaDescription", "MetaKeywords").
		Updates(product).Error
	if err != nil {
		logger.Error("Failed to update product in database", err, map[string]interface{}{
			"product_id": product.ID,
		})
		return err
	}
	return nil
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Preload("Brand").
		Preload("Category").
		Preload("Images", orderedImages).
		Preload("Variants").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindBySlug(ctx context.Context, slug string) (*model.Product, error) {
	logger.Debug("Finding product by slug in database", map[string]interface{}{
		"slug": slug,
	})

	var product model.Product
	err := r.db.WithContext(ctx).
		Preload("Brand").
		Preload("Category").
		Preload("Images", orderedImages).
		Preload("Variants").
		Where("slug = ?", slug).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := forUpdate(r.db.WithContext(ctx)).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindWithFilter(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	page, pageSize := NormalizePage(filter.Page, filter.PageSize)

	logger.Debug("Finding products with filter", map[string]interface{}{
		"category":  filter.CategorySlug,
		"brand":     filter.BrandSlug,
		"search":    filter.Search,
		"in_stock":  filter.InStockOnly,
		"page":      page,
		"page_size": pageSize,
	})

	query := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("products.is_deleted = ?", false)

	if !filter.IncludeUnavailable {
		query = query.Where("products.is_available = ?", true)
	}
	if filter.CategorySlug != "" {
		query = query.Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", filter.CategorySlug)
	}
	if filter.BrandSlug != "" {
		query = query.Joins("JOIN brands ON brands.id = products.brand_id").
			Where("brands.slug = ?", filter.BrandSlug)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := containsPattern(strings.ToLower(search))
		query = query.Where(`(LOWER(products.name) LIKE ? ESCAPE '\' OR LOWER(products.sku) LIKE ? ESCAPE '\')`, like, like)
	}
	if filter.MinPrice != nil {
		query = query.Where("products.price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("products.price <= ?", *filter.MaxPrice)
	}
	if filter.InStockOnly {
		query = query.Where("products.stock_quantity > ?", 0)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count products with filter", err)
		return nil, 0, err
	}

	var products []model.Product
	err := query.
		Preload("Brand").
		Preload("Category").
		Preload("Images", orderedImages).
		Order("products.created_at DESC").
		Order("products.id ASC").
		Limit(pageSize).
		Offset(offset(page, pageSize)).
		Find(&products).Error
	if err != nil {
		logger.Error("Failed to find products with filter", err, map[string]interface{}{
			"search": filter.Search,
		})
		return nil, 0, err
	}

	logger.Debug("Products found with filter", map[string]interface{}{
		"count": len(products),
		"total": total,
	})
	return products, total, nil
}

// FindRelated returns other listable products from the same category, newest first.
func (r *productRepository) FindRelated(ctx context.Context, product *model.Product, limit int) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Preload("Images", orderedImages).
		Where("category_id = ? AND id <> ? AND is_deleted = ? AND is_available = ?",
			product.CategoryID, product.ID, false, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		logger.Error("Failed to find related products", err, map[string]interface{}{
			"product_id": product.ID,
		})
		return nil, err
	}
	return products, nil
}

func (r *productRepository) SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
		})
	if result.Error != nil {
		logger.Error("Failed to soft delete product", result.Error, map[string]interface{}{
			"product_id": id,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DecrementStock subtracts quantity only if enough stock remains, and reports
// whether it did.
func (r *productRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock_quantity >= ?", id, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if result.Error != nil {
		logger.Error("Failed to decrement product stock", result.Error, map[string]interface{}{
			"product_id": id,
			"quantity":   quantity,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *productRepository) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", quantity)).Error
}
