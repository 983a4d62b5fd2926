package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type ProductVariantRepository interface {
	WithTx(tx *gorm.DB) ProductVariantRepository
	Create(ctx context.Context, variant *model.ProductVariant) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error)
	FindByProductID(ctx context.Context, productID uuid.UUID) ([]model.ProductVariant, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountOrderReferences(ctx context.Context, id uuid.UUID) (int64, error)
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
	IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type productVariantRepository struct {
	db *gorm.DB
}

func NewProductVariantRepository(db *gorm.DB) ProductVariantRepository {
	return &productVariantRepository{db: db}
}

func (r *productVariantRepository) WithTx(tx *gorm.DB) ProductVariantRepository {
	return &productVariantRepository{db: tx}
}

func (r *productVariantRepository) Create(ctx context.Context, variant *model.ProductVariant) error {
	logger.Debug("Creating product variant in database", map[string]interface{}{
		"product_id": variant.ProductID,
		"sku":        variant.SKU,
	})

	if err := r.db.WithContext(ctx).Create(variant).Error; err != nil {
		logger.Error("Failed to create product variant in database", err, map[string]interface{}{
			"product_id": variant.ProductID,
			"sku":        variant.SKU,
		})
		return err
	}
	return nil
}

func (r *productVariantRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error) {
	var variant model.ProductVariant
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *productVariantRepository) FindByProductID(ctx context.Context, productID uuid.UUID) ([]model.ProductVariant, error) {
	var variants []model.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&variants).Error
	return variants, err
}

func (r *productVariantRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error) {
	var variant model.ProductVariant
	if err := forUpdate(r.db.WithContext(ctx)).First(&variant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *productVariantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	logger.Debug("Deleting product variant from database", map[string]interface{}{
		"variant_id": id,
	})
	return r.db.WithContext(ctx).Delete(&model.ProductVariant{}, "id = ?", id).Error
}

func (r *productVariantRepository) CountOrderReferences(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.OrderItem{}).Where("variant_id = ?", id).Count(&count).Error
	return count, err
}

func (r *productVariantRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.ProductVariant{}).
		Where("id = ? AND stock_quantity >= ?", id, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if result.Error != nil {
		logger.Error("Failed to decrement variant stock", result.Error, map[string]interface{}{
			"variant_id": id,
			"quantity":   quantity,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *productVariantRepository) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).Model(&model.ProductVariant{}).
		Where("id = ?", id).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", quantity)).Error
}
