package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/ikkim/storefront-backend/pkg/util"
)

type AccountController struct {
	accountService service.AccountService
	jwtSecret      string
	tokenTTL       time.Duration
}

func NewAccountController(accountService service.AccountService, jwtSecret string, tokenTTL time.Duration) *AccountController {
	return &AccountController{
		accountService: accountService,
		jwtSecret:      jwtSecret,
		tokenTTL:       tokenTTL,
	}
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Phone     string `json:"phone" binding:"max=20"`
	FirstName string `json:"first_name" binding:"max=150"`
	LastName  string `json:"last_name" binding:"max=150"`
}

type UpdateProfileRequest struct {
	DateOfBirth            *string `json:"date_of_birth"` // YYYY-MM-DD
	PreferredPaymentMethod *string `json:"preferred_payment_method"`
}

type LoyaltyAdjustmentRequest struct {
	Delta int `json:"delta" binding:"required"`
}

type AddressRequest struct {
	FullName     string `json:"full_name" binding:"required,max=100"`
	Phone        string `json:"phone" binding:"required,max=20"`
	AddressLine1 string `json:"address_line1" binding:"required,max=200"`
	AddressLine2 string `json:"address_line2" binding:"max=200"`
	City         string `json:"city" binding:"required,max=100"`
	State        string `json:"state" binding:"required,max=100"`
	PostalCode   string `json:"postal_code" binding:"required,max=20"`
	Country      string `json:"country" binding:"required,max=100"`
	IsDefault    bool   `json:"is_default"`
}

func (r AddressRequest) input() service.AddressInput {
	return service.AddressInput{
		FullName:     r.FullName,
		Phone:        r.Phone,
		AddressLine1: r.AddressLine1,
		AddressLine2: r.AddressLine2,
		City:         r.City,
		State:        r.State,
		PostalCode:   r.PostalCode,
		Country:      r.Country,
		IsDefault:    r.IsDefault,
	}
}

// Register creates a customer and returns an access token
// POST /api/v1/auth/register
func (ctrl *AccountController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := ctrl.accountService.RegisterUser(c.Request.Context(), service.RegisterUserInput{
		Email:     req.Email,
		Phone:     req.Phone,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, "Registration failed", err, nil)
		return
	}

	token, err := util.GenerateToken(user.ID, user.Email, util.RoleCustomer, ctrl.jwtSecret, ctrl.tokenTTL)
	if err != nil {
		respondError(c, "Failed to issue access token", err, map[string]interface{}{"user_id": user.ID})
		return
	}

	log.Info("Customer registered", map[string]interface{}{
		"user_id": user.ID,
	})

	c.JSON(http.StatusCreated, gin.H{
		"user":         user,
		"access_token": token,
		"expires_in":   int(ctrl.tokenTTL.Seconds()),
	})
}

// Me returns the authenticated customer
// GET /api/v1/me
func (ctrl *AccountController) Me(c *gin.Context) {
	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}

	user, err := ctrl.accountService.GetUser(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, "Failed to fetch user", err, map[string]interface{}{"user_id": customerID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GetProfile returns the customer's profile
// GET /api/v1/me/profile
func (ctrl *AccountController) GetProfile(c *gin.Context) {
	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}

	profile, err := ctrl.accountService.GetProfile(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, "Failed to fetch profile", err, map[string]interface{}{"user_id": customerID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// UpdateProfile patches the customer's profile
// PATCH /api/v1/me/profile
func (ctrl *AccountController) UpdateProfile(c *gin.Context) {
	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	update := service.ProfileUpdate{PreferredPaymentMethod: req.PreferredPaymentMethod}
	if req.DateOfBirth != nil {
		dob, err := time.Parse(time.DateOnly, *req.DateOfBirth)
		if err != nil {
			respondError(c, "Invalid date of birth", validationError("date_of_birth", "must be YYYY-MM-DD"), nil)
			return
		}
		update.DateOfBirth = &dob
	}

	profile, err := ctrl.accountService.UpdateProfile(c.Request.Context(), customerID, update)
	if err != nil {
		respondError(c, "Failed to update profile", err, map[string]interface{}{"user_id": customerID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// AdjustLoyaltyPoints credits or debits a customer's points (Staff only)
// POST /api/v1/admin/customers/:id/loyalty
func (ctrl *AccountController) AdjustLoyaltyPoints(c *gin.Context) {
	customerID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req LoyaltyAdjustmentRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := ctrl.accountService.AdjustLoyaltyPoints(c.Request.Context(), customerID, req.Delta)
	if err != nil {
		respondError(c, "Failed to adjust loyalty points", err, map[string]interface{}{
			"user_id": customerID,
			"delta":   req.Delta,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// ListAddresses returns the customer's addresses, default first
// GET /api/v1/me/addresses
func (ctrl *AccountController) ListAddresses(c *gin.Context) {
	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}

	addresses, err := ctrl.accountService.ListAddresses(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, "Failed to list addresses", err, map[string]interface{}{"user_id": customerID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"addresses": addresses,
		"count":     len(addresses),
	})
}

// CreateAddress adds an address
// POST /api/v1/me/addresses
func (ctrl *AccountController) CreateAddress(c *gin.Context) {
	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}

	var req AddressRequest
	if !bindJSON(c, &req) {
		return
	}

	address, err := ctrl.accountService.CreateAddress(c.Request.Context(), customerID, req.input())
	if err != nil {
		respondError(c, "Failed to create address", err, map[string]interface{}{"user_id": customerID})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"address": address})
}

// UpdateAddress replaces an address
// PUT /api/v1/me/addresses/:id
func (ctrl *AccountController) UpdateAddress(c *gin.Context) {
	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}
	addressID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req AddressRequest
	if !bindJSON(c, &req) {
		return
	}

	address, err := ctrl.accountService.UpdateAddress(c.Request.Context(), customerID, addressID, req.input())
	if err != nil {
		respondError(c, "Failed to update address", err, map[string]interface{}{"address_id": addressID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"address": address})
}

// SetDefaultAddress makes an address the default
// PUT /api/v1/me/addresses/:id/default
func (ctrl *AccountController) SetDefaultAddress(c *gin.Context) {
	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}
	addressID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.accountService.SetDefaultAddress(c.Request.Context(), customerID, addressID); err != nil {
		respondError(c, "Failed to set default address", err, map[string]interface{}{"address_id": addressID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Default address updated"})
}

// DeleteAddress removes an address no order refers to
// DELETE /api/v1/me/addresses/:id
func (ctrl *AccountController) DeleteAddress(c *gin.Context) {
	customerID, ok := currentCustomer(c)
	if !ok {
		return
	}
	addressID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.accountService.DeleteAddress(c.Request.Context(), customerID, addressID); err != nil {
		respondError(c, "Failed to delete address", err, map[string]interface{}{"address_id": addressID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address deleted successfully"})
}
