package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var ctx = context.Background()

func setupRepositoryTest(t *testing.T) *gorm.DB {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return testDB
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createUser(t *testing.T, conn *gorm.DB, email string) *model.User {
	user := &model.User{Email: email, Profile: &model.CustomerProfile{}}
	require.NoError(t, conn.Create(user).Error)
	return user
}

func createAddress(t *testing.T, conn *gorm.DB, userID uuid.UUID, isDefault bool) *model.Address {
	address := &model.Address{
		UserID:       userID,
		FullName:     "Jane Doe",
		Phone:        "555-0100",
		AddressLine1: "1 Main St",
		City:         "Springfield",
		State:        "IL",
		PostalCode:   "62701",
		Country:      "US",
		IsDefault:    isDefault,
	}
	require.NoError(t, conn.Create(address).Error)
	return address
}

func createCategory(t *testing.T, conn *gorm.DB, name string) *model.Category {
	category := &model.Category{Name: name, Slug: slugOf(name), IsActive: true}
	require.NoError(t, conn.Create(category).Error)
	return category
}

func createProduct(t *testing.T, conn *gorm.DB, categoryID uuid.UUID, name, price string, stock int) *model.Product {
	sku := fmt.Sprintf("SKU-%s", slugOf(name))
	product := &model.Product{
		Name:          name,
		Slug:          slugOf(name),
		SKU:           &sku,
		CategoryID:    categoryID,
		Price:         dec(price),
		CostPrice:     dec("1.00"),
		StockQuantity: stock,
		IsAvailable:   true,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

func slugOf(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ':
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// backdate sets created_at so recency ordering is deterministic.
func backdate(t *testing.T, conn *gorm.DB, table string, id uuid.UUID, at time.Time) {
	require.NoError(t, conn.Table(table).Where("id = ?", id).UpdateColumn("created_at", at).Error)
}
