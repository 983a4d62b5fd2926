package controller

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/app/service"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/importer"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/shopspring/decimal"
)

// maxImportSize bounds uploaded catalog workbooks.
const maxImportSize = 10 << 20

type CatalogController struct {
	catalogService service.CatalogService
}

func NewCatalogController(catalogService service.CatalogService) *CatalogController {
	return &CatalogController{
		catalogService: catalogService,
	}
}

type CreateCategoryRequest struct {
	Name        string     `json:"name" binding:"required"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
	IsActive    *bool      `json:"is_active"`
}

type MoveCategoryRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

type CreateBrandRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type ProductRequest struct {
	Name            string          `json:"name" binding:"required"`
	Slug            string          `json:"slug"`
	Description     string          `json:"description"`
	SKU             *string         `json:"sku"`
	BrandID         *uuid.UUID      `json:"brand_id"`
	CategoryID      uuid.UUID       `json:"category_id" binding:"required"`
	Price           decimal.Decimal `json:"price"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	StockQuantity   int             `json:"stock_quantity"`
	IsAvailable     *bool           `json:"is_available"`
	MetaDescription string          `json:"meta_description"`
	MetaKeywords    string          `json:"meta_keywords"`
}

func (r ProductRequest) input() service.ProductInput {
	available := true
	if r.IsAvailable != nil {
		available = *r.IsAvailable
	}
	return service.ProductInput{
		Name:            r.Name,
		Slug:            r.Slug,
		Description:     r.Description,
		SKU:             r.SKU,
		BrandID:         r.BrandID,
		CategoryID:      r.CategoryID,
		Price:           r.Price,
		CostPrice:       r.CostPrice,
		StockQuantity:   r.StockQuantity,
		IsAvailable:     available,
		MetaDescription: r.MetaDescription,
		MetaKeywords:    r.MetaKeywords,
	}
}

type AddVariantRequest struct {
	Name            string          `json:"name" binding:"required"`
	SKU             string          `json:"sku" binding:"required"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
	StockQuantity   int             `json:"stock_quantity"`
}

type AttachImageRequest struct {
	ImageRef     string `json:"image_ref" binding:"required"`
	AltText      string `json:"alt_text"`
	IsPrimary    bool   `json:"is_primary"`
	DisplayOrder int    `json:"display_order"`
}

// ListCategories returns active categories
// GET /api/v1/categories
func (ctrl *CatalogController) ListCategories(c *gin.Context) {
	ctrl.listCategories(c, true)
}

// ListAllCategories includes inactive categories (Staff only)
// GET /api/v1/admin/categories
func (ctrl *CatalogController) ListAllCategories(c *gin.Context) {
	ctrl.listCategories(c, false)
}

func (ctrl *CatalogController) listCategories(c *gin.Context, activeOnly bool) {
	categories, err := ctrl.catalogService.ListCategories(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, "Failed to list categories", err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"count":      len(categories),
	})
}

// CreateCategory creates a category (Staff only)
// POST /api/v1/admin/categories
func (ctrl *CatalogController) CreateCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	category, err := ctrl.catalogService.CreateCategory(c.Request.Context(), service.CategoryInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		ParentID:    req.ParentID,
		IsActive:    isActive,
	})
	if err != nil {
		respondError(c, "Failed to create category", err, map[string]interface{}{"name": req.Name})
		return
	}

	log.Info("Category created", map[string]interface{}{
		"category_id": category.ID,
		"slug":        category.Slug,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Category created successfully",
		"category": category,
	})
}

// MoveCategory re-parents a category; a null parent_id makes it a root (Staff only)
// PUT /api/v1/admin/categories/:id/parent
func (ctrl *CatalogController) MoveCategory(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req MoveCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := ctrl.catalogService.MoveCategory(c.Request.Context(), id, req.ParentID)
	if err != nil {
		respondError(c, "Failed to move category", err, map[string]interface{}{
			"category_id": id,
			"parent_id":   req.ParentID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// ListBrands returns all brands
// GET /api/v1/brands
func (ctrl *CatalogController) ListBrands(c *gin.Context) {
	brands, err := ctrl.catalogService.ListBrands(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list brands", err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"brands": brands,
		"count":  len(brands),
	})
}

// CreateBrand creates a brand (Staff only)
// POST /api/v1/admin/brands
func (ctrl *CatalogController) CreateBrand(c *gin.Context) {
	var req CreateBrandRequest
	if !bindJSON(c, &req) {
		return
	}

	brand, err := ctrl.catalogService.CreateBrand(c.Request.Context(), service.BrandInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, "Failed to create brand", err, map[string]interface{}{"name": req.Name})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Brand created successfully",
		"brand":   brand,
	})
}

// ListProducts returns a page of listable products
// GET /api/v1/products?category=&brand=&q=&min_price=&max_price=&in_stock=&page=&page_size=
func (ctrl *CatalogController) ListProducts(c *gin.Context) {
	ctrl.listProducts(c, false)
}

// ListAllProducts includes unavailable products (Staff only)
// GET /api/v1/admin/products
func (ctrl *CatalogController) ListAllProducts(c *gin.Context) {
	ctrl.listProducts(c, true)
}

func (ctrl *CatalogController) listProducts(c *gin.Context, includeUnavailable bool) {
	filter, err := productFilter(c)
	if err != nil {
		respondError(c, "Invalid product filter", err, nil)
		return
	}
	filter.IncludeUnavailable = includeUnavailable

	page, err := ctrl.catalogService.ListProducts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "Failed to list products", err, map[string]interface{}{
			"category": filter.CategorySlug,
		})
		return
	}

	c.JSON(http.StatusOK, page)
}

func productFilter(c *gin.Context) (repository.ProductFilter, error) {
	page, pageSize := pageParams(c)
	filter := repository.ProductFilter{
		CategorySlug: c.Query("category"),
		BrandSlug:    c.Query("brand"),
		Search:       c.Query("q"),
		Page:         page,
		PageSize:     pageSize,
	}
	if raw := c.Query("in_stock"); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.NewValidation("in_stock", "must be true or false")
		}
		filter.InStockOnly = inStock
	}
	for _, bound := range []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"min_price", &filter.MinPrice},
		{"max_price", &filter.MaxPrice},
	} {
		raw := c.Query(bound.name)
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, apperrors.NewValidation(bound.name, "must be a decimal number")
		}
		*bound.dst = &value
	}
	return filter, nil
}

// GetProduct returns a listable product by slug
// GET /api/v1/products/:slug
func (ctrl *CatalogController) GetProduct(c *gin.Context) {
	slug := c.Param("slug")

	product, err := ctrl.catalogService.GetProduct(c.Request.Context(), slug)
	if err != nil {
		respondError(c, "Failed to fetch product", err, map[string]interface{}{"slug": slug})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product":  product,
		"images":   product.DisplayImages(),
		"in_stock": product.IsInStock(),
	})
}

// RelatedProducts returns other products of the same category
// GET /api/v1/products/:slug/related
func (ctrl *CatalogController) RelatedProducts(c *gin.Context) {
	slug := c.Param("slug")

	products, err := ctrl.catalogService.RelatedProducts(c.Request.Context(), slug)
	if err != nil {
		respondError(c, "Failed to fetch related products", err, map[string]interface{}{"slug": slug})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetProductByID returns any non-deleted product with its margin (Staff only)
// GET /api/v1/admin/products/:id
func (ctrl *CatalogController) GetProductByID(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	product, err := ctrl.catalogService.GetProductByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to fetch product", err, map[string]interface{}{"product_id": id})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product":       product,
		"profit_margin": product.ProfitMargin(),
		"in_stock":      product.IsInStock(),
	})
}

// CreateProduct creates a product (Staff only)
// POST /api/v1/admin/products
func (ctrl *CatalogController) CreateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req ProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := ctrl.catalogService.CreateProduct(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, "Failed to create product", err, map[string]interface{}{"name": req.Name})
		return
	}

	log.Info("Product created successfully", map[string]interface{}{
		"product_id": product.ID,
		"slug":       product.Slug,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message": "Product created successfully",
		"product": product,
	})
}

// UpdateProduct replaces a product's editable fields (Staff only)
// PUT /api/v1/admin/products/:id
func (ctrl *CatalogController) UpdateProduct(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req ProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := ctrl.catalogService.UpdateProduct(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, "Failed to update product", err, map[string]interface{}{"product_id": id})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"product": product,
	})
}

// DeleteProduct soft-deletes a product (Staff only)
// DELETE /api/v1/admin/products/:id
func (ctrl *CatalogController) DeleteProduct(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.catalogService.SoftDeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, "Failed to delete product", err, map[string]interface{}{"product_id": id})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// AddVariant adds a variant to a product (Staff only)
// POST /api/v1/admin/products/:id/variants
func (ctrl *CatalogController) AddVariant(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req AddVariantRequest
	if !bindJSON(c, &req) {
		return
	}

	variant, err := ctrl.catalogService.AddVariant(c.Request.Context(), id, service.VariantInput{
		Name:            req.Name,
		SKU:             req.SKU,
		PriceAdjustment: req.PriceAdjustment,
		StockQuantity:   req.StockQuantity,
	})
	if err != nil {
		respondError(c, "Failed to add variant", err, map[string]interface{}{
			"product_id": id,
			"sku":        req.SKU,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"variant": variant})
}

// DeleteVariant removes a variant no order refers to (Staff only)
// DELETE /api/v1/admin/products/:id/variants/:variant_id
func (ctrl *CatalogController) DeleteVariant(c *gin.Context) {
	productID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	variantID, ok := uuidParam(c, "variant_id")
	if !ok {
		return
	}

	if err := ctrl.catalogService.DeleteVariant(c.Request.Context(), productID, variantID); err != nil {
		respondError(c, "Failed to delete variant", err, map[string]interface{}{
			"product_id": productID,
			"variant_id": variantID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Variant deleted successfully"})
}

// AttachImage records an uploaded image against a product (Staff only)
// POST /api/v1/admin/products/:id/images
func (ctrl *CatalogController) AttachImage(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req AttachImageRequest
	if !bindJSON(c, &req) {
		return
	}

	image, err := ctrl.catalogService.AttachImage(c.Request.Context(), id, service.ImageInput{
		ImageRef:     req.ImageRef,
		AltText:      req.AltText,
		IsPrimary:    req.IsPrimary,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		respondError(c, "Failed to attach image", err, map[string]interface{}{"product_id": id})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"image": image})
}

// SetPrimaryImage makes one image the product's primary image (Staff only)
// PUT /api/v1/admin/products/:id/images/:image_id/primary
func (ctrl *CatalogController) SetPrimaryImage(c *gin.Context) {
	productID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	imageID, ok := uuidParam(c, "image_id")
	if !ok {
		return
	}

	if err := ctrl.catalogService.SetPrimaryImage(c.Request.Context(), productID, imageID); err != nil {
		respondError(c, "Failed to set primary image", err, map[string]interface{}{
			"product_id": productID,
			"image_id":   imageID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Primary image updated"})
}

// ImportCatalog loads an xlsx workbook uploaded as form field "file" (Staff only)
// POST /api/v1/admin/catalog/import
func (ctrl *CatalogController) ImportCatalog(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	header, err := c.FormFile("file")
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "a workbook must be uploaded as form field \"file\"")
		return
	}
	if header.Size > maxImportSize {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "workbook is too large")
		return
	}

	file, err := header.Open()
	if err != nil {
		log.Error("Failed to open uploaded workbook", err, nil)
		apperrors.RespondWithError(c, http.StatusBadRequest, apperrors.UploadFailed, "failed to read upload")
		return
	}
	defer file.Close()

	report, err := importer.NewCatalogImporter(ctrl.catalogService).Import(c.Request.Context(), file)
	if err != nil {
		log.Warn("Catalog import failed", map[string]interface{}{
			"filename": header.Filename,
			"error":    err.Error(),
		})
		apperrors.RespondWithError(c, http.StatusBadRequest, apperrors.UploadInvalidFileType, "file is not a readable xlsx workbook")
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

// CatalogTemplate downloads an empty import workbook (Staff only)
// GET /api/v1/admin/catalog/template
func (ctrl *CatalogController) CatalogTemplate(c *gin.Context) {
	var buf bytes.Buffer
	if err := importer.WriteTemplate(&buf); err != nil {
		respondError(c, "Failed to build catalog template", err, nil)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="catalog-template.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
