package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type ProductImageRepository interface {
	WithTx(tx *gorm.DB) ProductImageRepository
	Create(ctx context.Context, image *model.ProductImage) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ProductImage, error)
	ClearPrimary(ctx context.Context, productID uuid.UUID) error
	MarkPrimary(ctx context.Context, productID, imageID uuid.UUID) (bool, error)
}

type productImageRepository struct {
	db *gorm.DB
}

func NewProductImageRepository(db *gorm.DB) ProductImageRepository {
	return &productImageRepository{db: db}
}

func (r *productImageRepository) WithTx(tx *gorm.DB) ProductImageRepository {
	return &productImageRepository{db: tx}
}

func (r *productImageRepository) Create(ctx context.Context, image *model.ProductImage) error {
	logger.Debug("Creating product image in database", map[string]interface{}{
		"product_id": image.ProductID,
		"is_primary": image.IsPrimary,
	})

	if err := r.db.WithContext(ctx).Create(image).Error; err != nil {
		logger.Error("Failed to create product image in database", err, map[string]interface{}{
			"product_id": image.ProductID,
		})
		return err
	}
	return nil
}

func (r *productImageRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ProductImage, error) {
	var image model.ProductImage
	if err := r.db.WithContext(ctx).First(&image, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *productImageRepository) ClearPrimary(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.ProductImage{}).
		Where("product_id = ? AND is_primary = ?", productID, true).
		Update("is_primary", false).Error
}

func (r *productImageRepository) MarkPrimary(ctx context.Context, productID, imageID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.ProductImage{}).
		Where("id = ? AND product_id = ?", imageID, productID).
		Update("is_primary", true)
	if result.Error != nil {
		logger.Error("Failed to mark primary image", result.Error, map[string]interface{}{
			"product_id": productID,
			"image_id":   imageID,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
