package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/db"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/ikkim/storefront-backend/internal/observability/metrics"
	"github.com/ikkim/storefront-backend/internal/storage"
	"github.com/ikkim/storefront-backend/pkg/ordernumber"
	"github.com/ikkim/storefront-backend/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-for-controllers"

type fakeImageStore struct {
	calls int
}

func (f *fakeImageStore) PresignProductImage(_ context.Context, productID uuid.UUID, filename, contentType string) (*storage.PresignedUpload, error) {
	f.calls++
	if err := storage.ValidateContentType(contentType, storage.AllowedImageTypes); err != nil {
		return nil, err
	}
	key := storage.ProductImageKey(productID, filename)
	return &storage.PresignedUpload{
		UploadURL: "https://uploads.example.com/" + key + "?X-Amz-Signature=test",
		FileURL:   "https://cdn.example.com/" + key,
		Key:       key,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}, nil
}

type controllerEnv struct {
	router *gin.Engine

	accounts service.AccountService
	catalog  service.CatalogService
	carts    service.CartService
	orders   service.OrderService
	coupons  service.CouponService
	reviews  service.ReviewService
	images   *fakeImageStore

	staffToken string
}

func setupControllerTest(t *testing.T) *controllerEnv {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	userRepo := repository.NewUserRepository(testDB)
	addressRepo := repository.NewAddressRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	variantRepo := repository.NewProductVariantRepository(testDB)
	cartRepo := repository.NewCartRepository(testDB)
	orderRepo := repository.NewOrderRepository(testDB)
	couponRepo := repository.NewCouponRepository(testDB)

	numbers, err := ordernumber.NewSnowflake("ORD", 1)
	require.NoError(t, err)
	storeMetrics := metrics.NewStoreMetrics(prometheus.NewRegistry(), metrics.Config{})

	env := &controllerEnv{
		accounts: service.NewAccountService(userRepo, addressRepo, testDB),
		catalog: service.NewCatalogService(
			repository.NewCategoryRepository(testDB),
			repository.NewBrandRepository(testDB),
			productRepo,
			variantRepo,
			repository.NewProductImageRepository(testDB),
			testDB,
			10,
		),
		carts:   service.NewCartService(cartRepo, productRepo, variantRepo, testDB),
		coupons: service.NewCouponService(couponRepo),
		orders: service.NewOrderService(orderRepo, cartRepo, productRepo, variantRepo, addressRepo,
			couponRepo, numbers, storeMetrics, testDB),
		reviews: service.NewReviewService(repository.NewReviewRepository(testDB), productRepo, orderRepo, testDB),
		images:  &fakeImageStore{},
	}
	env.staffToken = env.token(t, uuid.New(), util.RoleStaff)

	gin.SetMode(gin.TestMode)
	env.router = gin.New()
	env.mount(middleware.NewAuthMiddleware(testJWTSecret))
	return env
}

// mount registers the handlers under test the way the production router does.
func (e *controllerEnv) mount(authMiddleware *middleware.AuthMiddleware) {
	accounts := NewAccountController(e.accounts, testJWTSecret, time.Hour)
	catalog := NewCatalogController(e.catalog)
	carts := NewCartController(e.carts)
	orders := NewOrderController(e.orders)
	coupons := NewCouponController(e.coupons)
	reviews := NewReviewController(e.reviews, e.catalog)
	uploads := NewUploadController(e.images, e.catalog)

	auth := authMiddleware.Authenticate()
	staff := authMiddleware.RequireRole(util.RoleStaff)
	owner := authMiddleware.ResolveCartOwner()

	r := e.router
	r.POST("/auth/register", accounts.Register)
	r.GET("/me", auth, accounts.Me)
	r.PATCH("/me/profile", auth, accounts.UpdateProfile)
	r.GET("/me/addresses", auth, accounts.ListAddresses)
	r.POST("/me/addresses", auth, accounts.CreateAddress)
	r.DELETE("/me/addresses/:id", auth, accounts.DeleteAddress)
	r.POST("/admin/customers/:id/loyalty", auth, staff, accounts.AdjustLoyaltyPoints)

	r.GET("/categories", catalog.ListCategories)
	r.POST("/admin/categories", auth, staff, catalog.CreateCategory)
	r.GET("/products", catalog.ListProducts)
	r.GET("/products/:slug", catalog.GetProduct)
	r.GET("/products/:slug/reviews", reviews.ListReviews)
	r.POST("/products/:slug/reviews", auth, reviews.SubmitReview)
	r.POST("/admin/products", auth, staff, catalog.CreateProduct)
	r.GET("/admin/products/:id", auth, staff, catalog.GetProductByID)
	r.DELETE("/admin/products/:id", auth, staff, catalog.DeleteProduct)
	r.POST("/admin/products/:id/images", auth, staff, catalog.AttachImage)
	r.POST("/admin/products/:id/images/presign", auth, staff, uploads.PresignProductImage)
	r.POST("/admin/catalog/import", auth, staff, catalog.ImportCatalog)
	r.GET("/admin/catalog/template", auth, staff, catalog.CatalogTemplate)
	r.PUT("/admin/reviews/:id/approve", auth, staff, reviews.ApproveReview)

	r.POST("/cart/session", carts.NewSession)
	r.POST("/cart/merge", auth, carts.MergeGuestCart)
	r.GET("/cart", owner, carts.GetCart)
	r.POST("/cart/items", owner, carts.AddToCart)
	r.PUT("/cart/items/:id", owner, carts.UpdateCartItem)
	r.DELETE("/cart/items/:id", owner, carts.RemoveCartItem)

	r.POST("/coupons/apply", coupons.ApplyCoupon)
	r.POST("/admin/coupons", auth, staff, coupons.CreateCoupon)

	r.POST("/orders", auth, orders.Checkout)
	r.GET("/orders", auth, orders.ListOrders)
	r.GET("/orders/:id", auth, orders.GetOrder)
	r.POST("/orders/:id/cancel", auth, orders.CancelOrder)
	r.GET("/admin/orders", auth, staff, orders.FindOrderByNumber)
	r.GET("/admin/orders/:id", auth, staff, orders.AdminGetOrder)
	r.PUT("/admin/orders/:id/status", auth, staff, orders.UpdateOrderStatus)
	r.PUT("/admin/orders/:id/tracking", auth, staff, orders.SetTrackingNumber)
	r.PUT("/admin/orders/:id/notes", auth, staff, orders.SetAdminNotes)
}

func (e *controllerEnv) token(t *testing.T, id uuid.UUID, role string) string {
	token, err := util.GenerateToken(id, "someone@example.com", role, testJWTSecret, time.Hour)
	require.NoError(t, err)
	return token
}

type request struct {
	method  string
	path    string
	token   string
	session string
	body    interface{}
}

func (e *controllerEnv) do(t *testing.T, r request) *httptest.ResponseRecorder {
	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(r.method, r.path, body)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.session != "" {
		req.Header.Set(middleware.SessionHeader, r.session)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	var body apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error
}

// decimalField reads a decimal rendered as a JSON string.
func decimalField(t *testing.T, obj map[string]interface{}, key string) decimal.Decimal {
	raw, ok := obj[key].(string)
	require.True(t, ok, "%s is %T", key, obj[key])
	return decimal.RequireFromString(raw)
}

type shopper struct {
	user    *model.User
	token   string
	address *model.Address
}

func (e *controllerEnv) shopper(t *testing.T) shopper {
	ctx := context.Background()
	user, err := e.accounts.RegisterUser(ctx, service.RegisterUserInput{
		Email:     fmt.Sprintf("shopper-%s@example.com", uuid.NewString()[:8]),
		FirstName: "Sam",
		LastName:  "Shopper",
	})
	require.NoError(t, err)
	address, err := e.accounts.CreateAddress(ctx, user.ID, service.AddressInput{
		FullName:     "Sam Shopper",
		Phone:        "555-0101",
		AddressLine1: "2 Elm St",
		City:         "Springfield",
		State:        "IL",
		PostalCode:   "62701",
		Country:      "US",
	})
	require.NoError(t, err)
	return shopper{user: user, token: e.token(t, user.ID, util.RoleCustomer), address: address}
}

func (e *controllerEnv) product(t *testing.T, name, price string, stock int) *model.Product {
	ctx := context.Background()
	category, err := e.catalog.CreateCategory(ctx, service.CategoryInput{Name: "Cat " + uuid.NewString()[:8], IsActive: true})
	require.NoError(t, err)
	product, err := e.catalog.CreateProduct(ctx, service.ProductInput{
		Name:          name,
		CategoryID:    category.ID,
		Price:         decimal.RequireFromString(price),
		CostPrice:     decimal.RequireFromString(price).Div(decimal.NewFromInt(2)),
		StockQuantity: stock,
		IsAvailable:   true,
	})
	require.NoError(t, err)
	return product
}

// cartWith fills the shopper's cart and returns its id.
func (e *controllerEnv) cartWith(t *testing.T, s shopper, productID uuid.UUID, quantity int) uuid.UUID {
	cart, err := e.carts.AddItem(context.Background(), service.UserOwner(s.user.ID), service.AddItemInput{
		ProductID: productID,
		Quantity:  quantity,
	})
	require.NoError(t, err)
	return cart.ID
}

func (e *controllerEnv) checkoutBody(s shopper, cartID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"cart_id":             cartID,
		"shipping_address_id": s.address.ID,
		"billing_address_id":  s.address.ID,
		"shipping_cost":       "5.00",
		"tax":                 "0",
	}
}
