package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/ikkim/storefront-backend/internal/observability/metrics"
	"github.com/ikkim/storefront-backend/pkg/ordernumber"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var ctx = context.Background()

// fixedNow is the clock every service under test sees.
var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db       *gorm.DB
	metrics  *metrics.StoreMetrics
	registry *prometheus.Registry

	accounts *accountService
	catalog  *catalogService
	carts    *cartService
	coupons  *couponService
	orders   *orderService
	reviews  *reviewService
}

func setupServiceTest(t *testing.T) *testEnv {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return newTestEnv(t, testDB)
}

// newTestEnv wires every service against an already migrated connection.
func newTestEnv(t *testing.T, testDB *gorm.DB) *testEnv {
	userRepo := repository.NewUserRepository(testDB)
	addressRepo := repository.NewAddressRepository(testDB)
	categoryRepo := repository.NewCategoryRepository(testDB)
	brandRepo := repository.NewBrandRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	variantRepo := repository.NewProductVariantRepository(testDB)
	imageRepo := repository.NewProductImageRepository(testDB)
	cartRepo := repository.NewCartRepository(testDB)
	orderRepo := repository.NewOrderRepository(testDB)
	couponRepo := repository.NewCouponRepository(testDB)
	reviewRepo := repository.NewReviewRepository(testDB)

	numbers, err := ordernumber.NewSnowflake("ORD", 1)
	require.NoError(t, err)
	registry := prometheus.NewRegistry()
	storeMetrics := metrics.NewStoreMetrics(registry, metrics.Config{})

	clock := func() time.Time { return fixedNow }

	env := &testEnv{
		db:       testDB,
		metrics:  storeMetrics,
		registry: registry,
		accounts: NewAccountService(userRepo, addressRepo, testDB).(*accountService),
		catalog:  NewCatalogService(categoryRepo, brandRepo, productRepo, variantRepo, imageRepo, testDB, 10).(*catalogService),
		carts:    NewCartService(cartRepo, productRepo, variantRepo, testDB).(*cartService),
		coupons:  NewCouponService(couponRepo).(*couponService),
		orders: NewOrderService(orderRepo, cartRepo, productRepo, variantRepo, addressRepo,
			couponRepo, numbers, storeMetrics, testDB).(*orderService),
		reviews: NewReviewService(reviewRepo, productRepo, orderRepo, testDB).(*reviewService),
	}
	env.catalog.now = clock
	env.carts.now = clock
	env.orders.now = clock
	return env
}

// counter reads a counter series from the test registry; labels must match exactly
// the non-constant labels of the series.
func (e *testEnv) counter(t *testing.T, name string, labels map[string]string) float64 {
	families, err := e.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	series:
		for _, m := range family.GetMetric() {
			for _, pair := range m.GetLabel() {
				want, ok := labels[pair.GetName()]
				if ok && want != pair.GetValue() {
					continue series
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) user(t *testing.T, email string) *model.User {
	user, err := e.accounts.RegisterUser(ctx, RegisterUserInput{Email: email, FirstName: "Test", LastName: "User"})
	require.NoError(t, err)
	return user
}

func (e *testEnv) address(t *testing.T, userID uuid.UUID) *model.Address {
	address, err := e.accounts.CreateAddress(ctx, userID, AddressInput{
		FullName:     "Jane Doe",
		Phone:        "555-0100",
		AddressLine1: "1 Main St",
		City:         "Springfield",
		State:        "IL",
		PostalCode:   "62701",
		Country:      "US",
	})
	require.NoError(t, err)
	return address
}

func (e *testEnv) category(t *testing.T, name string) *model.Category {
	category, err := e.catalog.CreateCategory(ctx, CategoryInput{Name: name, IsActive: true})
	require.NoError(t, err)
	return category
}

func (e *testEnv) product(t *testing.T, categoryID uuid.UUID, name, price string, stock int) *model.Product {
	sku := fmt.Sprintf("SKU-%s", uuid.NewString()[:8])
	product, err := e.catalog.CreateProduct(ctx, ProductInput{
		Name:          name,
		SKU:           &sku,
		CategoryID:    categoryID,
		Price:         dec(price),
		CostPrice:     dec("1.00"),
		StockQuantity: stock,
		IsAvailable:   true,
	})
	require.NoError(t, err)
	return product
}

func (e *testEnv) stockOf(t *testing.T, productID uuid.UUID) int {
	var product model.Product
	require.NoError(t, e.db.First(&product, "id = ?", productID).Error)
	return product.StockQuantity
}

func (e *testEnv) variantStockOf(t *testing.T, variantID uuid.UUID) int {
	var variant model.ProductVariant
	require.NoError(t, e.db.First(&variant, "id = ?", variantID).Error)
	return variant.StockQuantity
}

// shopper is a registered customer with an address and a filled cart.
type shopper struct {
	user    *model.User
	address *model.Address
	cart    *model.Cart
}

func (e *testEnv) shopper(t *testing.T, email string, lines ...AddItemInput) shopper {
	user := e.user(t, email)
	address := e.address(t, user.ID)
	cart, err := e.carts.GetOrCreateCart(ctx, UserOwner(user.ID))
	require.NoError(t, err)
	for _, line := range lines {
		cart, err = e.carts.AddItem(ctx, UserOwner(user.ID), line)
		require.NoError(t, err)
	}
	return shopper{user: user, address: address, cart: cart}
}

func (s shopper) checkoutInput() CheckoutInput {
	return CheckoutInput{
		CartID:            s.cart.ID,
		CustomerID:        s.user.ID,
		ShippingAddressID: s.address.ID,
		BillingAddressID:  s.address.ID,
		Tax:               decimal.Zero,
		ShippingCost:      decimal.Zero,
	}
}
