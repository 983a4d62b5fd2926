package importer

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names, processed in this order so later sheets can reference earlier ones by slug.
const (
	SheetCategories = "Categories"
	SheetBrands     = "Brands"
	SheetProducts   = "Products"
	SheetVariants   = "Variants"
)

// RowError describes one rejected row. Row is 1-based as shown in spreadsheet tools.
type RowError struct {
	Sheet string `json:"sheet"`
	Row   int    `json:"row"`
	Err   string `json:"error"`
}

type Report struct {
	Categories int        `json:"categories"`
	Brands     int        `json:"brands"`
	Products   int        `json:"products"`
	Variants   int        `json:"variants"`
	Errors     []RowError `json:"errors,omitempty"`
}

// CatalogImporter loads a catalog workbook through the catalog service, so
// imported rows get the same validation as API writes. A bad row is recorded
// in the report and the import carries on.
type CatalogImporter struct {
	catalog service.CatalogService

	categories map[string]uuid.UUID
	brands     map[string]uuid.UUID
	products   map[string]uuid.UUID
}

func NewCatalogImporter(catalog service.CatalogService) *CatalogImporter {
	return &CatalogImporter{catalog: catalog}
}

// ImportFile opens an xlsx workbook from disk and imports it.
func (imp *CatalogImporter) ImportFile(ctx context.Context, path string) (*Report, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return imp.importWorkbook(ctx, f)
}

func (imp *CatalogImporter) Import(ctx context.Context, r io.Reader) (*Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	defer f.Close()
	return imp.importWorkbook(ctx, f)
}

func (imp *CatalogImporter) importWorkbook(ctx context.Context, f *excelize.File) (*Report, error) {
	if err := imp.loadExisting(ctx); err != nil {
		return nil, err
	}

	report := &Report{}
	steps := []struct {
		sheet string
		fn    func(context.Context, row) error
		count *int
	}{
		{SheetCategories, imp.importCategory, &report.Categories},
		{SheetBrands, imp.importBrand, &report.Brands},
		{SheetProducts, imp.importProduct, &report.Products},
		{SheetVariants, imp.importVariant, &report.Variants},
	}

	for _, step := range steps {
		if idx, _ := f.GetSheetIndex(step.sheet); idx < 0 {
			logger.Debug("Workbook sheet missing, skipping", map[string]interface{}{
				"sheet": step.sheet,
			})
			continue
		}
		rows, err := f.GetRows(step.sheet)
		if err != nil {
			return report, fmt.Errorf("failed to read sheet %s: %w", step.sheet, err)
		}
		if len(rows) < 2 {
			continue
		}

		header := headerIndex(rows[0])
		for i, cells := range rows[1:] {
			if blank(cells) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := step.fn(ctx, row{header: header, cells: cells}); err != nil {
				report.Errors = append(report.Errors, RowError{Sheet: step.sheet, Row: i + 2, Err: err.Error()})
				continue
			}
			*step.count++
		}
	}

	logger.Info("Catalog import finished", map[string]interface{}{
		"categories": report.Categories,
		"brands":     report.Brands,
		"products":   report.Products,
		"variants":   report.Variants,
		"errors":     len(report.Errors),
	})
	return report, nil
}

func (imp *CatalogImporter) loadExisting(ctx context.Context) error {
	imp.categories = map[string]uuid.UUID{}
	imp.brands = map[string]uuid.UUID{}
	imp.products = map[string]uuid.UUID{}

	categories, err := imp.catalog.ListCategories(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	for _, c := range categories {
		imp.categories[c.Slug] = c.ID
	}
	brands, err := imp.catalog.ListBrands(ctx)
	if err != nil {
		return fmt.Errorf("failed to load brands: %w", err)
	}
	for _, b := range brands {
		imp.brands[b.Slug] = b.ID
	}
	return nil
}

func (imp *CatalogImporter) importCategory(ctx context.Context, r row) error {
	input := service.CategoryInput{
		Name:        r.get("name"),
		Slug:        r.get("slug"),
		Description: r.get("description"),
		IsActive:    r.boolOr("is_active", true),
	}
	if parent := r.get("parent_slug"); parent != "" {
		id, ok := imp.categories[parent]
		if !ok {
			return fmt.Errorf("unknown parent category %q", parent)
		}
		input.ParentID = &id
	}

	category, err := imp.catalog.CreateCategory(ctx, input)
	if err != nil {
		return err
	}
	imp.categories[category.Slug] = category.ID
	return nil
}

func (imp *CatalogImporter) importBrand(ctx context.Context, r row) error {
	brand, err := imp.catalog.CreateBrand(ctx, service.BrandInput{
		Name:        r.get("name"),
		Slug:        r.get("slug"),
		Description: r.get("description"),
	})
	if err != nil {
		return err
	}
	imp.brands[brand.Slug] = brand.ID
	return nil
}

func (imp *CatalogImporter) importProduct(ctx context.Context, r row) error {
	categorySlug := r.get("category_slug")
	categoryID, ok := imp.categories[categorySlug]
	if !ok {
		return fmt.Errorf("unknown category %q", categorySlug)
	}

	price, err := r.decimal("price")
	if err != nil {
		return err
	}
	costPrice, err := r.decimal("cost_price")
	if err != nil {
		return err
	}
	stock, err := r.int("stock_quantity")
	if err != nil {
		return err
	}

	input := service.ProductInput{
		Name:            r.get("name"),
		Slug:            r.get("slug"),
		Description:     r.get("description"),
		CategoryID:      categoryID,
		Price:           price,
		CostPrice:       costPrice,
		StockQuantity:   stock,
		IsAvailable:     r.boolOr("is_available", true),
		MetaDescription: r.get("meta_description"),
		MetaKeywords:    r.get("meta_keywords"),
	}
	if sku := r.get("sku"); sku != "" {
		input.SKU = &sku
	}
	if brandSlug := r.get("brand_slug"); brandSlug != "" {
		brandID, ok := imp.brands[brandSlug]
		if !ok {
			return fmt.Errorf("unknown brand %q", brandSlug)
		}
		input.BrandID = &brandID
	}

	product, err := imp.catalog.CreateProduct(ctx, input)
	if err != nil {
		return err
	}
	imp.products[product.Slug] = product.ID
	return nil
}

func (imp *CatalogImporter) importVariant(ctx context.Context, r row) error {
	productID, err := imp.productID(ctx, r.get("product_slug"))
	if err != nil {
		return err
	}
	adjustment, err := r.decimal("price_adjustment")
	if err != nil {
		return err
	}
	stock, err := r.int("stock_quantity")
	if err != nil {
		return err
	}

	_, err = imp.catalog.AddVariant(ctx, productID, service.VariantInput{
		Name:            r.get("name"),
		SKU:             r.get("sku"),
		PriceAdjustment: adjustment,
		StockQuantity:   stock,
	})
	return err
}

// productID resolves a slug imported in this run or already listed in the catalog.
func (imp *CatalogImporter) productID(ctx context.Context, slug string) (uuid.UUID, error) {
	if id, ok := imp.products[slug]; ok {
		return id, nil
	}
	product, err := imp.catalog.GetProduct(ctx, slug)
	if err != nil {
		return uuid.Nil, fmt.Errorf("unknown product %q", slug)
	}
	imp.products[slug] = product.ID
	return product.ID, nil
}

type row struct {
	header map[string]int
	cells  []string
}

func headerIndex(cells []string) map[string]int {
	index := make(map[string]int, len(cells))
	for i, name := range cells {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.ReplaceAll(key, " ", "_")
		if key != "" {
			index[key] = i
		}
	}
	return index
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (r row) get(column string) string {
	i, ok := r.header[column]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r row) decimal(column string) (decimal.Decimal, error) {
	raw := r.get(column)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %q is not a number", column, raw)
	}
	return d, nil
}

func (r row) int(column string) (int, error) {
	raw := r.get(column)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a whole number", column, raw)
	}
	return n, nil
}

func (r row) boolOr(column string, fallback bool) bool {
	switch strings.ToLower(r.get(column)) {
	case "":
		return fallback
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// Headers lists the expected columns per sheet, used to write templates.
var Headers = map[string][]string{
	SheetCategories: {"name", "slug", "parent_slug", "description", "is_active"},
	SheetBrands:     {"name", "slug", "description"},
	SheetProducts: {"name", "slug", "sku", "category_slug", "brand_slug", "price", "cost_price",
		"stock_quantity", "is_available", "description", "meta_description", "meta_keywords"},
	SheetVariants: {"product_slug", "name", "sku", "price_adjustment", "stock_quantity"},
}

// WriteTemplate writes an empty workbook with one header row per sheet.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range []string{SheetCategories, SheetBrands, SheetProducts, SheetVariants} {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		header := make([]interface{}, len(Headers[sheet]))
		for j, h := range Headers[sheet] {
			header[j] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}
