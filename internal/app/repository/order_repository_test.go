package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createOrder(t *testing.T, conn *gorm.DB, customer *model.User, address *model.Address, product *model.Product, status model.OrderStatus) *model.Order {
	order := &model.Order{
		OrderNumber:       "ORD-" + uuid.NewString()[:8],
		CustomerID:        customer.ID,
		Status:            status,
		ShippingAddressID: address.ID,
		BillingAddressID:  address.ID,
		ShippingAddress:   address.Snapshot(),
		BillingAddress:    address.Snapshot(),
		Subtotal:          product.Price,
		Total:             product.Price,
		Items: []model.OrderItem{{
			ProductID:   product.ID,
			ProductName: product.Name,
			ProductSKU:  *product.SKU,
			UnitPrice:   product.Price,
			Quantity:    1,
		}},
	}
	require.NoError(t, NewOrderRepository(conn).Create(ctx, order))
	return order
}

func TestOrderRepository_CreateAndFind(t *testing.T) {
	testDB := setupRepositoryTest(t)
	repo := NewOrderRepository(testDB)
	user := createUser(t, testDB, "a@example.com")
	address := createAddress(t, testDB, user.ID, true)
	category := createCategory(t, testDB, "Shirts")
	product := createProduct(t, testDB, category.ID, "Tee", "10.00", 5)

	order := createOrder(t, testDB, user, address, product, model.OrderStatusPending)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, found.OrderNumber)
	assert.Equal(t, "Springfield", found.ShippingAddress.City)
	require.Len(t, found.Items, 1)
	assert.True(t, found.Items[0].UnitPrice.Equal(dec("10.00")))

	byNumber, err := repo.FindByOrderNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byNumber.ID)
}

func TestOrderRepository_UpdateStatus_GuardsFromState(t *testing.T) {
	testDB := setupRepositoryTest(t)
	repo := NewOrderRepository(testDB)
	user := createUser(t, testDB, "a@example.com")
	address := createAddress(t, testDB, user.ID, true)
	category := createCategory(t, testDB, "Shirts")
	product := createProduct(t, testDB, category.ID, "Tee", "10.00", 5)
	order := createOrder(t, testDB, user, address, product, model.OrderStatusPending)

	ok, err := repo.UpdateStatus(ctx, order.ID, model.OrderStatusPending, map[string]interface{}{"status": model.OrderStatusProcessing})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, order.ID, model.OrderStatusPending, map[string]interface{}{"status": model.OrderStatusCancelled})
	require.NoError(t, err)
	assert.False(t, ok, "stale from-state must not apply")
}

func TestOrderRepository_FindByCustomer_Paginates(t *testing.T) {
	testDB := setupRepositoryTest(t)
	repo := NewOrderRepository(testDB)
	user := createUser(t, testDB, "a@example.com")
	other := createUser(t, testDB, "b@example.com")
	address := createAddress(t, testDB, user.ID, true)
	otherAddress := createAddress(t, testDB, other.ID, true)
	category := createCategory(t, testDB, "Shirts")
	product := createProduct(t, testDB, category.ID, "Tee", "10.00", 5)

	for i := 0; i < 3; i++ {
		createOrder(t, testDB, user, address, product, model.OrderStatusPending)
	}
	createOrder(t, testDB, other, otherAddress, product, model.OrderStatusPending)

	orders, total, err := repo.FindByCustomer(ctx, user.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, user.ID, o.CustomerID)
	}
}

func TestOrderRepository_HasDeliveredItem(t *testing.T) {
	testDB := setupRepositoryTest(t)
	repo := NewOrderRepository(testDB)
	user := createUser(t, testDB, "a@example.com")
	address := createAddress(t, testDB, user.ID, true)
	category := createCategory(t, testDB, "Shirts")
	delivered := createProduct(t, testDB, category.ID, "Delivered", "10.00", 5)
	pending := createProduct(t, testDB, category.ID, "Pending", "10.00", 5)

	createOrder(t, testDB, user, address, delivered, model.OrderStatusDelivered)
	createOrder(t, testDB, user, address, pending, model.OrderStatusShipped)

	ok, err := repo.HasDeliveredItem(ctx, user.ID, delivered.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasDeliveredItem(ctx, user.ID, pending.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
