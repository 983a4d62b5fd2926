package db

import (
	"fmt"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

// Models lists every table in dependency order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.CustomerProfile{},
		&model.Address{},
		&model.Category{},
		&model.Brand{},
		&model.Product{},
		&model.ProductImage{},
		&model.ProductVariant{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.Coupon{},
		&model.Review{},
	}
}

// partialIndexes back the single-row invariants that plain unique indexes
// cannot express. The syntax is shared by PostgreSQL and SQLite.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_product_images_single_primary
		ON product_images (product_id) WHERE is_primary = true`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_addresses_single_default
		ON addresses (user_id) WHERE is_default = true`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_items_line_plain
		ON cart_items (cart_id, product_id) WHERE variant_id IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_items_line_variant
		ON cart_items (cart_id, product_id, variant_id) WHERE variant_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_active_user
		ON carts (user_id) WHERE is_active = true AND user_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_active_session
		ON carts (session_key) WHERE is_active = true AND session_key IS NOT NULL`,
}

// AutoMigrate creates or updates the schema on the given connection.
func AutoMigrate(conn *gorm.DB) error {
	models := Models()
	if err := conn.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range partialIndexes {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create partial index: %w", err)
		}
	}
	return nil
}

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	if err := AutoMigrate(DB); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count":    len(Models()),
		"partial_indexes": len(partialIndexes),
	})
	return nil
}
