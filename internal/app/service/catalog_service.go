package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/db"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	relatedProductsLimit = 4
	maxCategoryDepth     = 64
)

type CategoryInput struct {
	Name        string
	Slug        string // derived from Name when blank
	Description string
	ParentID    *uuid.UUID
	IsActive    bool
}

type BrandInput struct {
	Name        string
	Slug        string
	Description string
}

type ProductInput struct {
	Name            string
	Slug            string
	Description     string
	SKU             *string
	BrandID         *uuid.UUID
	CategoryID      uuid.UUID
	Price           decimal.Decimal
	CostPrice       decimal.Decimal
	StockQuantity   int
	IsAvailable     bool
	MetaDescription string
	MetaKeywords    string
}

type VariantInput struct {
	Name            string
	SKU             string
	PriceAdjustment decimal.Decimal
	StockQuantity   int
}

type ImageInput struct {
	ImageRef     string
	AltText      string
	IsPrimary    bool
	DisplayOrder int
}

type CatalogService interface {
	CreateCategory(ctx context.Context, input CategoryInput) (*model.Category, error)
	MoveCategory(ctx context.Context, categoryID uuid.UUID, parentID *uuid.UUID) (*model.Category, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]model.Category, error)
	CreateBrand(ctx context.Context, input BrandInput) (*model.Brand, error)
	ListBrands(ctx context.Context) ([]model.Brand, error)

	CreateProduct(ctx context.Context, input ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input ProductInput) (*model.Product, error)
	SoftDeleteProduct(ctx context.Context, productID uuid.UUID) error
	ListProducts(ctx context.Context, filter repository.ProductFilter) (model.Page[model.Product], error)
	GetProduct(ctx context.Context, slug string) (*model.Product, error)
	GetProductByID(ctx context.Context, productID uuid.UUID) (*model.Product, error)
	RelatedProducts(ctx context.Context, slug string) ([]model.Product, error)

	AddVariant(ctx context.Context, productID uuid.UUID, input VariantInput) (*model.ProductVariant, error)
	DeleteVariant(ctx context.Context, productID, variantID uuid.UUID) error
	AttachImage(ctx context.Context, productID uuid.UUID, input ImageInput) (*model.ProductImage, error)
	SetPrimaryImage(ctx context.Context, productID, imageID uuid.UUID) error
}

type catalogService struct {
	categoryRepo repository.CategoryRepository
	brandRepo    repository.BrandRepository
	productRepo  repository.ProductRepository
	variantRepo  repository.ProductVariantRepository
	imageRepo    repository.ProductImageRepository
	db           *gorm.DB
	pageSize     int
	now          Clock
}

func NewCatalogService(
	categoryRepo repository.CategoryRepository,
	brandRepo repository.BrandRepository,
	productRepo repository.ProductRepository,
	variantRepo repository.ProductVariantRepository,
	imageRepo repository.ProductImageRepository,
	db *gorm.DB,
	pageSize int,
) CatalogService {
	return &catalogService{
		categoryRepo: categoryRepo,
		brandRepo:    brandRepo,
		productRepo:  productRepo,
		variantRepo:  variantRepo,
		imageRepo:    imageRepo,
		db:           db,
		pageSize:     pageSize,
		now:          systemClock,
	}
}

func (s *catalogService) CreateCategory(ctx context.Context, input CategoryInput) (*model.Category, error) {
	if err := requireText("name", input.Name, 100); err != nil {
		return nil, err
	}
	slugValue, err := slugFor(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}

	category := &model.Category{
		Name:        strings.TrimSpace(input.Name),
		Slug:        slugValue,
		Description: input.Description,
		ParentID:    input.ParentID,
		IsActive:    input.IsActive,
	}

	if input.ParentID != nil {
		if _, err := s.categoryRepo.FindByID(ctx, *input.ParentID); err != nil {
			return nil, apperrors.ClassifyDBError(err, "category", *input.ParentID)
		}
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, apperrors.ClassifyDBError(err, "category", slugValue)
	}

	logger.Info("Category created", map[string]interface{}{
		"category_id": category.ID,
		"slug":        category.Slug,
	})
	return category, nil
}

// MoveCategory re-parents a category. A nil parent makes it a root. The move
// is rejected if the new parent is the category itself or one of its descendants.
func (s *catalogService) MoveCategory(ctx context.Context, categoryID uuid.UUID, parentID *uuid.UUID) (*model.Category, error) {
	var category *model.Category
	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		categories := s.categoryRepo.WithTx(tx)

		var err error
		category, err = categories.LockByID(ctx, categoryID)
		if err != nil {
			return apperrors.ClassifyDBError(err, "category", categoryID)
		}

		if parentID != nil {
			cursor := *parentID
			for depth := 0; ; depth++ {
				if cursor == categoryID {
					return apperrors.NewValidation("parent_id", "category cannot be its own ancestor")
				}
				if depth > maxCategoryDepth {
					return apperrors.NewValidation("parent_id", "category tree is too deep")
				}
				ancestor, err := categories.FindByID(ctx, cursor)
				if err != nil {
					return apperrors.ClassifyDBError(err, "category", cursor)
				}
				if ancestor.ParentID == nil {
					break
				}
				cursor = *ancestor.ParentID
			}
		}

		if err := categories.UpdateParent(ctx, categoryID, parentID); err != nil {
			return err
		}
		category.ParentID = parentID
		return nil
	})
	if err != nil {
		if apperrors.IsValidation(err) {
			logger.Warn("Category move rejected", map[string]interface{}{
				"category_id": categoryID,
				"parent_id":   parentID,
				"error":       err.Error(),
			})
		}
		return nil, err
	}

	logger.Info("Category moved", map[string]interface{}{
		"category_id": categoryID,
		"parent_id":   parentID,
	})
	return category, nil
}

func (s *catalogService) ListCategories(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	return s.categoryRepo.List(ctx, activeOnly)
}

func (s *catalogService) CreateBrand(ctx context.Context, input BrandInput) (*model.Brand, error) {
	if err := requireText("name", input.Name, 100); err != nil {
		return nil, err
	}
	slugValue, err := slugFor(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}

	brand := &model.Brand{
		Name:        strings.TrimSpace(input.Name),
		Slug:        slugValue,
		Description: input.Description,
	}
	if err := s.brandRepo.Create(ctx, brand); err != nil {
		return nil, apperrors.ClassifyDBError(err, "brand", slugValue)
	}

	logger.Info("Brand created", map[string]interface{}{
		"brand_id": brand.ID,
		"slug":     brand.Slug,
	})
	return brand, nil
}

func (s *catalogService) ListBrands(ctx context.Context) ([]model.Brand, error) {
	return s.brandRepo.List(ctx)
}

func validateProduct(input ProductInput) error {
	if err := requireText("name", input.Name, 200); err != nil {
		return err
	}
	if !input.Price.IsPositive() {
		return apperrors.NewValidation("price", "must be greater than 0")
	}
	if input.CostPrice.IsNegative() {
		return apperrors.NewValidation("cost_price", "must not be negative")
	}
	if input.StockQuantity < 0 {
		return apperrors.NewValidation("stock_quantity", "must not be negative")
	}
	if input.CategoryID == uuid.Nil {
		return apperrors.NewValidation("category_id", "is required")
	}
	if input.SKU != nil && len(strings.TrimSpace(*input.SKU)) > 50 {
		return apperrors.NewValidation("sku", "is too long")
	}
	if len(input.MetaDescription) > 160 {
		return apperrors.NewValidation("meta_description", "must be at most 160 characters")
	}
	if len(input.MetaKeywords) > 200 {
		return apperrors.NewValidation("meta_keywords", "must be at most 200 characters")
	}
	return nil
}

func (input ProductInput) apply(product *model.Product, slugValue string) {
	product.Name = strings.TrimSpace(input.Name)
	product.Slug = slugValue
	product.Description = input.Description
	product.SKU = nil
	if input.SKU != nil {
		if sku := strings.TrimSpace(*input.SKU); sku != "" {
			product.SKU = &sku
		}
	}
	product.BrandID = input.BrandID
	product.CategoryID = input.CategoryID
	product.Price = input.Price.Round(2)
	product.CostPrice = input.CostPrice.Round(2)
	product.StockQuantity = input.StockQuantity
	product.IsAvailable = input.IsAvailable
	product.MetaDescription = input.MetaDescription
	product.MetaKeywords = input.MetaKeywords
}

func (s *catalogService) checkProductRefs(ctx context.Context, tx *gorm.DB, input ProductInput) error {
	if _, err := s.categoryRepo.WithTx(tx).FindByID(ctx, input.CategoryID); err != nil {
		return apperrors.ClassifyDBError(err, "category", input.CategoryID)
	}
	if input.BrandID != nil {
		if _, err := s.brandRepo.WithTx(tx).FindByID(ctx, *input.BrandID); err != nil {
			return apperrors.ClassifyDBError(err, "brand", *input.BrandID)
		}
	}
	return nil
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*model.Product, error) {
	if err := validateProduct(input); err != nil {
		return nil, err
	}
	slugValue, err := slugFor(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}

	logger.Info("Creating product", map[string]interface{}{
		"slug":        slugValue,
		"category_id": input.CategoryID,
	})

	product := &model.Product{}
	input.apply(product, slugValue)

	err = db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.checkProductRefs(ctx, tx, input); err != nil {
			return err
		}
		if err := s.productRepo.WithTx(tx).Create(ctx, product); err != nil {
			return apperrors.ClassifyDBError(err, "product", slugValue)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			logger.Warn("Product create rejected: duplicate slug or sku", map[string]interface{}{
				"slug": slugValue,
			})
		}
		return nil, err
	}

	logger.Info("Product created successfully", map[string]interface{}{
		"product_id": product.ID,
		"slug":       product.Slug,
	})
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, productID uuid.UUID, input ProductInput) (*model.Product, error) {
	if err := validateProduct(input); err != nil {
		return nil, err
	}
	slugValue, err := slugFor(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}

	var product *model.Product
	err = db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		products := s.productRepo.WithTx(tx)

		var err error
		product, err = products.LockByID(ctx, productID)
		if err != nil {
			return apperrors.ClassifyDBError(err, "product", productID)
		}
		if product.IsDeleted {
			return apperrors.NewNotFound("product", productID)
		}
		if err := s.checkProductRefs(ctx, tx, input); err != nil {
			return err
		}
		if err := s.checkVariantPrices(ctx, tx, productID, input.Price.Round(2)); err != nil {
			return err
		}

		input.apply(product, slugValue)
		if err := products.Update(ctx, product); err != nil {
			return apperrors.ClassifyDBError(err, "product", slugValue)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Product updated successfully", map[string]interface{}{
		"product_id": productID,
	})
	return product, nil
}

// checkVariantPrices rejects a base price that would push any existing
// variant below zero. The product row must already be locked.
func (s *catalogService) checkVariantPrices(ctx context.Context, tx *gorm.DB, productID uuid.UUID, price decimal.Decimal) error {
	variants, err := s.variantRepo.WithTx(tx).FindByProductID(ctx, productID)
	if err != nil {
		return err
	}
	for _, variant := range variants {
		if price.Add(variant.PriceAdjustment).IsNegative() {
			logger.Warn("Product update rejected: variant price would be negative", map[string]interface{}{
				"product_id": productID,
				"variant_id": variant.ID,
			})
			return apperrors.NewValidation("price", "variant "+variant.SKU+" final price must not be negative")
		}
	}
	return nil
}

func (s *catalogService) SoftDeleteProduct(ctx context.Context, productID uuid.UUID) error {
	ok, err := s.productRepo.SoftDelete(ctx, productID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		logger.Warn("Soft delete skipped: product missing or already deleted", map[string]interface{}{
			"product_id": productID,
		})
		return apperrors.NewNotFound("product", productID)
	}

	logger.Info("Product soft deleted", map[string]interface{}{
		"product_id": productID,
	})
	return nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) (model.Page[model.Product], error) {
	if filter.PageSize <= 0 {
		filter.PageSize = s.pageSize
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return model.Page[model.Product]{}, apperrors.NewValidation("min_price", "must not exceed max_price")
	}
	if filter.CategorySlug != "" {
		category, err := s.categoryRepo.FindBySlug(ctx, filter.CategorySlug)
		if err != nil {
			return model.Page[model.Product]{}, apperrors.ClassifyDBError(err, "category", filter.CategorySlug)
		}
		if !category.IsActive {
			return model.Page[model.Product]{}, apperrors.NewNotFound("category", filter.CategorySlug)
		}
	}

	page, pageSize := repository.NormalizePage(filter.Page, filter.PageSize)
	filter.Page, filter.PageSize = page, pageSize

	products, total, err := s.productRepo.FindWithFilter(ctx, filter)
	if err != nil {
		logger.Error("Failed to list products", err)
		return model.Page[model.Product]{}, err
	}
	return model.NewPage(products, total, page, pageSize), nil
}

// GetProduct returns a listable product by slug. Deleted and unavailable
// products are reported as not found.
func (s *catalogService) GetProduct(ctx context.Context, slug string) (*model.Product, error) {
	product, err := s.productRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, apperrors.ClassifyDBError(err, "product", slug)
	}
	if !product.IsPurchasable() {
		return nil, apperrors.NewNotFound("product", slug)
	}
	return product, nil
}

func (s *catalogService) GetProductByID(ctx context.Context, productID uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, apperrors.ClassifyDBError(err, "product", productID)
	}
	if product.IsDeleted {
		return nil, apperrors.NewNotFound("product", productID)
	}
	return product, nil
}

func (s *catalogService) RelatedProducts(ctx context.Context, slug string) ([]model.Product, error) {
	product, err := s.GetProduct(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.productRepo.FindRelated(ctx, product, relatedProductsLimit)
}

func (s *catalogService) AddVariant(ctx context.Context, productID uuid.UUID, input VariantInput) (*model.ProductVariant, error) {
	if err := requireText("name", input.Name, 100); err != nil {
		return nil, err
	}
	if err := requireText("sku", input.SKU, 50); err != nil {
		return nil, err
	}
	if input.StockQuantity < 0 {
		return nil, apperrors.NewValidation("stock_quantity", "must not be negative")
	}

	variant := &model.ProductVariant{
		ProductID:       productID,
		Name:            strings.TrimSpace(input.Name),
		SKU:             strings.TrimSpace(input.SKU),
		PriceAdjustment: input.PriceAdjustment.Round(2),
		StockQuantity:   input.StockQuantity,
	}

	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		product, err := s.productRepo.WithTx(tx).LockByID(ctx, productID)
		if err != nil {
			return apperrors.ClassifyDBError(err, "product", productID)
		}
		if product.IsDeleted {
			return apperrors.NewNotFound("product", productID)
		}
		if product.Price.Add(variant.PriceAdjustment).IsNegative() {
			return apperrors.NewValidation("price_adjustment", "final price must not be negative")
		}
		if err := s.variantRepo.WithTx(tx).Create(ctx, variant); err != nil {
			return apperrors.ClassifyDBError(err, "product_variant", variant.SKU)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Variant added", map[string]interface{}{
		"product_id": productID,
		"variant_id": variant.ID,
		"sku":        variant.SKU,
	})
	return variant, nil
}

// DeleteVariant removes a variant that no order item references.
func (s *catalogService) DeleteVariant(ctx context.Context, productID, variantID uuid.UUID) error {
	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		variants := s.variantRepo.WithTx(tx)

		variant, err := variants.LockByID(ctx, variantID)
		if err != nil {
			return apperrors.ClassifyDBError(err, "product_variant", variantID)
		}
		if variant.ProductID != productID {
			return apperrors.NewNotFound("product_variant", variantID)
		}
		refs, err := variants.CountOrderReferences(ctx, variantID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return apperrors.NewConflict("product_variant", "referenced_by_order", variantID)
		}
		if err := variants.Delete(ctx, variantID); err != nil {
			return apperrors.ClassifyDBError(err, "product_variant", variantID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Variant deleted", map[string]interface{}{
		"product_id": productID,
		"variant_id": variantID,
	})
	return nil
}

func (s *catalogService) AttachImage(ctx context.Context, productID uuid.UUID, input ImageInput) (*model.ProductImage, error) {
	if err := requireText("image_ref", input.ImageRef, 500); err != nil {
		return nil, err
	}
	if len(input.AltText) > 200 {
		return nil, apperrors.NewValidation("alt_text", "is too long")
	}

	image := &model.ProductImage{
		ProductID:    productID,
		ImageRef:     strings.TrimSpace(input.ImageRef),
		AltText:      input.AltText,
		IsPrimary:    input.IsPrimary,
		DisplayOrder: input.DisplayOrder,
	}

	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := s.productRepo.WithTx(tx).LockByID(ctx, productID); err != nil {
			return apperrors.ClassifyDBError(err, "product", productID)
		}
		images := s.imageRepo.WithTx(tx)
		if image.IsPrimary {
			if err := images.ClearPrimary(ctx, productID); err != nil {
				return err
			}
		}
		if err := images.Create(ctx, image); err != nil {
			return apperrors.ClassifyDBError(err, "product_image", productID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Image attached", map[string]interface{}{
		"product_id": productID,
		"image_id":   image.ID,
		"is_primary": image.IsPrimary,
	})
	return image, nil
}

// SetPrimaryImage clears the product's primary flag on every image and sets it
// on imageID inside one transaction holding the product row lock.
func (s *catalogService) SetPrimaryImage(ctx context.Context, productID, imageID uuid.UUID) error {
	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := s.productRepo.WithTx(tx).LockByID(ctx, productID); err != nil {
			return apperrors.ClassifyDBError(err, "product", productID)
		}
		images := s.imageRepo.WithTx(tx)
		if err := images.ClearPrimary(ctx, productID); err != nil {
			return err
		}
		ok, err := images.MarkPrimary(ctx, productID, imageID)
		if err != nil {
			return apperrors.ClassifyDBError(err, "product_image", imageID)
		}
		if !ok {
			return apperrors.NewNotFound("product_image", imageID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Primary image set", map[string]interface{}{
		"product_id": productID,
		"image_id":   imageID,
	})
	return nil
}
