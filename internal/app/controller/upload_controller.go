package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/internal/app/service"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/ikkim/storefront-backend/internal/storage"
)

type UploadController struct {
	storage        storage.ImageStore
	catalogService service.CatalogService
}

func NewUploadController(store storage.ImageStore, catalogService service.CatalogService) *UploadController {
	return &UploadController{
		storage:        store,
		catalogService: catalogService,
	}
}

type PresignImageRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// PresignProductImage returns a presigned PUT URL for a product image. After
// uploading, the client attaches the returned key via AttachImage.
// POST /api/v1/admin/products/:id/images/presign
func (ctrl *UploadController) PresignProductImage(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	productID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req PresignImageRequest
	if !bindJSON(c, &req) {
		return
	}

	if _, err := ctrl.catalogService.GetProductByID(c.Request.Context(), productID); err != nil {
		respondError(c, "Failed to resolve product", err, map[string]interface{}{"product_id": productID})
		return
	}

	upload, err := ctrl.storage.PresignProductImage(c.Request.Context(), productID, req.Filename, req.ContentType)
	if err != nil {
		var typeErr *storage.ErrContentTypeNotAllowed
		if errors.As(err, &typeErr) {
			log.Warn("Invalid content type", map[string]interface{}{
				"content_type": req.ContentType,
			})
			apperrors.BadRequest(c, apperrors.UploadInvalidFileType, "only image files are allowed (JPEG, PNG, GIF, WEBP)")
			return
		}
		log.Error("Failed to generate presigned URL", err, map[string]interface{}{
			"product_id":   productID,
			"filename":     req.Filename,
			"content_type": req.ContentType,
		})
		apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.UploadFailed, "failed to generate presigned URL")
		return
	}

	log.Info("Presigned URL generated successfully", map[string]interface{}{
		"product_id": productID,
		"key":        upload.Key,
	})

	c.JSON(http.StatusOK, upload)
}
