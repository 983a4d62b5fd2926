package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/middleware"
)

// bindJSON binds the request body and writes a 400 reply when it does not fit req.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.GetLoggerFromContext(c).Warn("Invalid request body", map[string]interface{}{
			"path":  c.FullPath(),
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, apperrors.ErrorResponse{
			Error:   apperrors.ValidationInvalidInput,
			Message: "invalid request data",
			Details: map[string]interface{}{"reason": err.Error()},
		})
		return false
	}
	return true
}

// uuidParam parses a path parameter, replying 400 when it is not a UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		middleware.GetLoggerFromContext(c).Warn("Invalid ID format", map[string]interface{}{
			name:    raw,
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// currentCustomer returns the authenticated customer or replies 401.
func currentCustomer(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetCustomerID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	return page, pageSize
}

// respondError logs the failure and writes the reply that matches err.
// Rejections by the domain are warnings; anything else is logged as an error.
func respondError(c *gin.Context, msg string, err error, fields map[string]interface{}) {
	log := middleware.GetLoggerFromContext(c)
	if fields == nil {
		fields = map[string]interface{}{}
	}

	info := apperrors.ParseError(err)
	if info.Status >= 500 {
		log.Error(msg, err, fields)
	} else {
		fields["error"] = err.Error()
		log.Warn(msg, fields)
	}
	apperrors.Respond(c, err)
}

func validationError(field, reason string) error {
	return apperrors.NewValidation(field, reason)
}
