package controller

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadController_PresignProductImage(t *testing.T) {
	env := setupControllerTest(t)
	product := env.product(t, "Poster", "15.00", 3)
	path := "/admin/products/" + product.ID.String() + "/images/presign"

	w := env.do(t, request{method: http.MethodPost, path: path, token: env.staffToken,
		body: map[string]interface{}{"filename": "front.PNG", "content_type": "image/png"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	upload := decode(t, w)
	key := upload["key"].(string)
	assert.True(t, strings.HasPrefix(key, "products/"+product.ID.String()+"/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)
	assert.Contains(t, upload["upload_url"], "X-Amz-Signature")

	// the returned key is what gets attached to the product
	w = env.do(t, request{method: http.MethodPost, path: "/admin/products/" + product.ID.String() + "/images", token: env.staffToken,
		body: map[string]interface{}{"image_ref": key, "is_primary": true}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestUploadController_Rejections(t *testing.T) {
	env := setupControllerTest(t)
	product := env.product(t, "Print", "15.00", 3)

	tests := []struct {
		name       string
		productID  string
		body       map[string]interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not an image",
			productID:  product.ID.String(),
			body:       map[string]interface{}{"filename": "manual.pdf", "content_type": "application/pdf"},
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.UploadInvalidFileType,
		},
		{
			name:       "unknown product",
			productID:  uuid.NewString(),
			body:       map[string]interface{}{"filename": "a.png", "content_type": "image/png"},
			wantStatus: http.StatusNotFound,
			wantCode:   apperrors.ResourceNotFound,
		},
		{
			name:       "missing content type",
			productID:  product.ID.String(),
			body:       map[string]interface{}{"filename": "a.png"},
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.ValidationInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, request{method: http.MethodPost, path: "/admin/products/" + tt.productID + "/images/presign",
				token: env.staffToken, body: tt.body})
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(t, w))
		})
	}
}
