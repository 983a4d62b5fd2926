package controller

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/importer"
	"github.com/ikkim/storefront-backend/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCatalogController_CreateAndFetchProduct(t *testing.T) {
	env := setupControllerTest(t)

	w := env.do(t, request{method: http.MethodPost, path: "/admin/categories", token: env.staffToken,
		body: map[string]interface{}{"name": "Home Goods"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	category := decode(t, w)["category"].(map[string]interface{})
	assert.Equal(t, "home-goods", category["slug"])

	w = env.do(t, request{method: http.MethodPost, path: "/admin/products", token: env.staffToken,
		body: map[string]interface{}{
			"name":           "Coffee Mug",
			"category_id":    category["id"],
			"price":          "12.50",
			"cost_price":     "4.00",
			"stock_quantity": 3,
		}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	product := decode(t, w)["product"].(map[string]interface{})
	assert.Equal(t, "coffee-mug", product["slug"])
	assert.Equal(t, true, product["is_available"])

	w = env.do(t, request{method: http.MethodGet, path: "/products/coffee-mug"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["in_stock"])
	assert.True(t, decimalField(t, body["product"].(map[string]interface{}), "price").Equal(decimalField(t, product, "price")))

	w = env.do(t, request{method: http.MethodGet, path: "/admin/products/" + product["id"].(string), token: env.staffToken})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "68", decimal2(t, decode(t, w), "profit_margin"))

	w = env.do(t, request{method: http.MethodGet, path: "/products?category=home-goods"})
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)
	assert.Equal(t, float64(1), page["total"])
	assert.Len(t, page["items"], 1)
}

// decimal2 renders a JSON decimal rounded to two places without trailing zeros.
func decimal2(t *testing.T, obj map[string]interface{}, key string) string {
	return decimalField(t, obj, key).Round(2).String()
}

func TestCatalogController_ErrorMapping(t *testing.T) {
	env := setupControllerTest(t)
	product := env.product(t, "Teapot", "20.00", 1)

	tests := []struct {
		name       string
		req        request
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown slug",
			req:        request{method: http.MethodGet, path: "/products/nope"},
			wantStatus: http.StatusNotFound,
			wantCode:   apperrors.ResourceNotFound,
		},
		{
			name:       "bad price filter",
			req:        request{method: http.MethodGet, path: "/products?min_price=cheap"},
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.ValidationInvalidInput,
		},
		{
			name:       "inverted price range",
			req:        request{method: http.MethodGet, path: "/products?min_price=10&max_price=5"},
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.ValidationInvalidInput,
		},
		{
			name:       "malformed id",
			req:        request{method: http.MethodGet, path: "/admin/products/42", token: env.staffToken},
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.ValidationInvalidID,
		},
		{
			name: "duplicate slug",
			req: request{method: http.MethodPost, path: "/admin/products", token: env.staffToken, body: map[string]interface{}{
				"name":        "Teapot",
				"category_id": product.CategoryID,
				"price":       "10",
			}},
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.ResourceConflict,
		},
		{
			name: "missing name",
			req: request{method: http.MethodPost, path: "/admin/products", token: env.staffToken, body: map[string]interface{}{
				"category_id": product.CategoryID,
			}},
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.ValidationInvalidInput,
		},
		{
			name: "customers cannot write the catalog",
			req: request{method: http.MethodPost, path: "/admin/categories", token: env.token(t, uuid.New(), util.RoleCustomer),
				body: map[string]interface{}{"name": "Sneaky"}},
			wantStatus: http.StatusForbidden,
			wantCode:   apperrors.AuthzForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.req)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(t, w))
		})
	}
}

func TestCatalogController_DeleteHidesProduct(t *testing.T) {
	env := setupControllerTest(t)
	product := env.product(t, "Vase", "30.00", 2)

	w := env.do(t, request{method: http.MethodDelete, path: "/admin/products/" + product.ID.String(), token: env.staffToken})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, request{method: http.MethodGet, path: "/products/" + product.Slug})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, request{method: http.MethodDelete, path: "/admin/products/" + product.ID.String(), token: env.staffToken})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalogController_AttachImage(t *testing.T) {
	env := setupControllerTest(t)
	product := env.product(t, "Lamp", "45.00", 1)
	path := "/admin/products/" + product.ID.String() + "/images"

	w := env.do(t, request{method: http.MethodPost, path: path, token: env.staffToken,
		body: map[string]interface{}{"image_ref": "products/a.png", "is_primary": true}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, request{method: http.MethodPost, path: path, token: env.staffToken,
		body: map[string]interface{}{"image_ref": "products/b.png", "is_primary": true, "display_order": 1}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, request{method: http.MethodGet, path: "/products/" + product.Slug})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	images := body["product"].(map[string]interface{})["images"].([]interface{})
	require.Len(t, images, 2)

	primaries := 0
	for _, raw := range images {
		if raw.(map[string]interface{})["is_primary"] == true {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)

	display := body["images"].([]interface{})
	require.Len(t, display, 1)
	assert.Equal(t, "products/b.png", display[0].(map[string]interface{})["image_ref"])
}

func TestCatalogController_ImportCatalog(t *testing.T) {
	env := setupControllerTest(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", importer.SheetCategories))
	require.NoError(t, f.SetSheetRow(importer.SheetCategories, "A1", &[]interface{}{"name", "slug"}))
	require.NoError(t, f.SetSheetRow(importer.SheetCategories, "A2", &[]interface{}{"Garden", "garden"}))
	_, err := f.NewSheet(importer.SheetProducts)
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow(importer.SheetProducts, "A1", &[]interface{}{"name", "category_slug", "price", "stock_quantity"}))
	require.NoError(t, f.SetSheetRow(importer.SheetProducts, "A2", &[]interface{}{"Trowel", "garden", "9.99", "7"}))
	var workbook bytes.Buffer
	_, err = f.WriteTo(&workbook)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	upload := func(filename string, content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		form := multipart.NewWriter(&body)
		part, err := form.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, form.Close())

		req := httptest.NewRequest(http.MethodPost, "/admin/catalog/import", &body)
		req.Header.Set("Content-Type", form.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+env.staffToken)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w
	}

	w := upload("catalog.xlsx", workbook.Bytes())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode(t, w)["report"].(map[string]interface{})
	assert.Equal(t, float64(1), report["categories"])
	assert.Equal(t, float64(1), report["products"])

	w = env.do(t, request{method: http.MethodGet, path: "/products/trowel"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = upload("catalog.csv", []byte("name,slug\n"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.UploadInvalidFileType, errorCode(t, w))
}

func TestCatalogController_CatalogTemplate(t *testing.T) {
	env := setupControllerTest(t)

	w := env.do(t, request{method: http.MethodGet, path: "/admin/catalog/template", token: env.staffToken})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "catalog-template.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{importer.SheetCategories, importer.SheetBrands, importer.SheetProducts, importer.SheetVariants}, f.GetSheetList())
}
