package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/middleware"
)

type ReviewController struct {
	reviewService  service.ReviewService
	catalogService service.CatalogService
}

func NewReviewController(reviewService service.ReviewService, catalogService service.CatalogService) *ReviewController {
	return &ReviewController{
		reviewService:  reviewService,
		catalogService: catalogService,
	}
}

type SubmitReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Title   string `json:"title" binding:"required,max=200"`
	Comment string `json:"comment" binding:"required"`
}

// product resolves the :slug path parameter to a listable product.
func (ctrl *ReviewController) product(c *gin.Context) (*model.Product, bool) {
	slug := c.Param("slug")
	product, err := ctrl.catalogService.GetProduct(c.Request.Context(), slug)
	if err != nil {
		respondError(c, "Failed to resolve product", err, map[string]interface{}{"slug": slug})
		return nil, false
	}
	return product, true
}

// ListReviews returns approved reviews with the rating summary
// GET /api/v1/products/:slug/reviews
func (ctrl *ReviewController) ListReviews(c *gin.Context) {
	product, ok := ctrl.product(c)
	if !ok {
		return
	}

	page, pageSize := pageParams(c)
	reviews, err := ctrl.reviewService.ListProductReviews(c.Request.Context(), product.ID, page, pageSize)
	if err != nil {
		respondError(c, "Failed to list reviews", err, map[string]interface{}{"product_id": product.ID})
		return
	}
	rating, err := ctrl.reviewService.AverageRating(c.Request.Context(), product.ID)
	if err != nil {
		respondError(c, "Failed to compute rating", err, map[string]interface{}{"product_id": product.ID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"rating":  rating,
	})
}

// SubmitReview creates or replaces the customer's review of a product
// POST /api/v1/products/:slug/reviews
func (ctrl *ReviewController) SubmitReview(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}

	var req SubmitReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	product, ok := ctrl.product(c)
	if !ok {
		return
	}

	review, err := ctrl.reviewService.SubmitReview(c.Request.Context(), service.ReviewInput{
		ProductID: product.ID,
		UserID:    customerID,
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
	})
	if err != nil {
		respondError(c, "Failed to submit review", err, map[string]interface{}{
			"product_id":  product.ID,
			"customer_id": customerID,
		})
		return
	}

	log.Info("Review submitted", map[string]interface{}{
		"review_id":         review.ID,
		"product_id":        product.ID,
		"verified_purchase": review.IsVerifiedPurchase,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message": "Review submitted for moderation",
		"review":  review,
	})
}

// ApproveReview publishes a review (Staff only)
// PUT /api/v1/admin/reviews/:id/approve
func (ctrl *ReviewController) ApproveReview(c *gin.Context) {
	reviewID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	review, err := ctrl.reviewService.ApproveReview(c.Request.Context(), reviewID)
	if err != nil {
		respondError(c, "Failed to approve review", err, map[string]interface{}{"review_id": reviewID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"review": review})
}
