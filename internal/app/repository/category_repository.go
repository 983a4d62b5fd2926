package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type CategoryRepository interface {
	WithTx(tx *gorm.DB) CategoryRepository
	Create(ctx context.Context, category *model.Category) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	FindBySlug(ctx context.Context, slug string) (*model.Category, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	List(ctx context.Context, activeOnly bool) ([]model.Category, error)
	UpdateParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) WithTx(tx *gorm.DB) CategoryRepository {
	return &categoryRepository{db: tx}
}

func (r *categoryRepository) Create(ctx context.Context, category *model.Category) error {
	logger.Debug("Creating category in database", map[string]interface{}{
		"name": category.Name,
		"slug": category.Slug,
	})

	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		logger.Error("Failed to create category in database", err, map[string]interface{}{
			"name": category.Name,
			"slug": category.Slug,
		})
		return err
	}
	return nil
}

func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) FindBySlug(ctx context.Context, slug string) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	var category model.Category
	if err := forUpdate(r.db.WithContext(ctx)).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) List(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	query := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var categories []model.Category
	if err := query.Find(&categories).Error; err != nil {
		logger.Error("Failed to list categories", err)
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) UpdateParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Category{}).
		Where("id = ?", id).
		Update("parent_id", parentID).Error
}

type BrandRepository interface {
	WithTx(tx *gorm.DB) BrandRepository
	Create(ctx context.Context, brand *model.Brand) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Brand, error)
	FindBySlug(ctx context.Context, slug string) (*model.Brand, error)
	List(ctx context.Context) ([]model.Brand, error)
}

type brandRepository struct {
	db *gorm.DB
}

func NewBrandRepository(db *gorm.DB) BrandRepository {
	return &brandRepository{db: db}
}

func (r *brandRepository) WithTx(tx *gorm.DB) BrandRepository {
	return &brandRepository{db: tx}
}

func (r *brandRepository) Create(ctx context.Context, brand *model.Brand) error {
	logger.Debug("Creating brand in database", map[string]interface{}{
		"name": brand.Name,
		"slug": brand.Slug,
	})

	if err := r.db.WithContext(ctx).Create(brand).Error; err != nil {
		logger.Error("Failed to create brand in database", err, map[string]interface{}{
			"name": brand.Name,
		})
		return err
	}
	return nil
}

func (r *brandRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Brand, error) {
	var brand model.Brand
	if err := r.db.WithContext(ctx).First(&brand, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &brand, nil
}

func (r *brandRepository) FindBySlug(ctx context.Context, slug string) (*model.Brand, error) {
	var brand model.Brand
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&brand).Error; err != nil {
		return nil, err
	}
	return &brand, nil
}

func (r *brandRepository) List(ctx context.Context) ([]model.Brand, error) {
	var brands []model.Brand
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&brands).Error; err != nil {
		logger.Error("Failed to list brands", err)
		return nil, err
	}
	return brands, nil
}
