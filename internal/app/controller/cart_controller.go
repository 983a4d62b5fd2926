package controller

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/service"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/ikkim/storefront-backend/pkg/util"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type AddToCartRequest struct {
	ProductID uuid.UUID  `json:"product_id" binding:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" binding:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// cartOwner reads the owner resolved by middleware.ResolveCartOwner.
func cartOwner(c *gin.Context) (service.CartOwner, bool) {
	owner, ok := middleware.GetCartOwner(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return service.CartOwner{}, false
	}
	return owner, true
}

func cartResponse(cart *model.Cart) gin.H {
	return gin.H{
		"cart":  cart,
		"count": cart.ItemCount(),
		"total": cart.Total(),
	}
}

// GetCart returns the caller's active cart, creating it on first use
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	owner, ok := cartOwner(c)
	if !ok {
		return
	}

	cart, err := ctrl.cartService.GetOrCreateCart(c.Request.Context(), owner)
	if err != nil {
		respondError(c, "Failed to fetch cart", err, nil)
		return
	}

	c.JSON(http.StatusOK, cartResponse(cart))
}

// AddToCart adds a product (or variant) line, merging with an existing line
// POST /api/v1/cart/items
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	owner, ok := cartOwner(c)
	if !ok {
		return
	}

	var req AddToCartRequest
	if !bindJSON(c, &req) {
		return
	}

	cart, err := ctrl.cartService.AddItem(c.Request.Context(), owner, service.AddItemInput{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(c, "Failed to add item to cart", err, map[string]interface{}{
			"product_id": req.ProductID,
			"quantity":   req.Quantity,
		})
		return
	}

	log.Info("Item added to cart", map[string]interface{}{
		"cart_id":    cart.ID,
		"product_id": req.ProductID,
		"quantity":   req.Quantity,
	})

	c.JSON(http.StatusOK, cartResponse(cart))
}

// UpdateCartItem sets the quantity of one line
// PUT /api/v1/cart/items/:id
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	owner, ok := cartOwner(c)
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}

	cart, err := ctrl.cartService.UpdateItemQuantity(c.Request.Context(), owner, itemID, req.Quantity)
	if err != nil {
		respondError(c, "Failed to update cart item", err, map[string]interface{}{
			"cart_item_id": itemID,
			"quantity":     req.Quantity,
		})
		return
	}

	c.JSON(http.StatusOK, cartResponse(cart))
}

// RemoveCartItem removes one line
// DELETE /api/v1/cart/items/:id
func (ctrl *CartController) RemoveCartItem(c *gin.Context) {
	owner, ok := cartOwner(c)
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	cart, err := ctrl.cartService.RemoveItem(c.Request.Context(), owner, itemID)
	if err != nil {
		respondError(c, "Failed to remove cart item", err, map[string]interface{}{
			"cart_item_id": itemID,
		})
		return
	}

	c.JSON(http.StatusOK, cartResponse(cart))
}

// MergeGuestCart folds the guest cart named by X-Session-Key into the
// authenticated customer's cart
// POST /api/v1/cart/merge
func (ctrl *CartController) MergeGuestCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}

	sessionKey := strings.ToLower(strings.TrimSpace(c.GetHeader(middleware.SessionHeader)))
	if !util.ValidSessionKey(sessionKey) {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "a valid "+middleware.SessionHeader+" header is required")
		return
	}

	cart, err := ctrl.cartService.MergeGuestCart(c.Request.Context(), sessionKey, customerID)
	if err != nil {
		respondError(c, "Failed to merge guest cart", err, map[string]interface{}{
			"customer_id": customerID,
		})
		return
	}

	log.Info("Guest cart merged", map[string]interface{}{
		"customer_id": customerID,
		"cart_id":     cart.ID,
	})

	c.JSON(http.StatusOK, cartResponse(cart))
}

// NewSession issues a fresh guest session key
// POST /api/v1/cart/session
func (ctrl *CartController) NewSession(c *gin.Context) {
	c.JSON(http.StatusCreated, gin.H{"session_key": util.NewSessionKey()})
}
