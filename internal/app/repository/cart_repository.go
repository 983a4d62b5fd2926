package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, cart *model.Cart) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Cart, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	FindActiveBySession(ctx context.Context, sessionKey string) (*model.Cart, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Cart, error)
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	DeactivateIdleGuestCarts(ctx context.Context, idleSince time.Time) (int64, error)

	FindItem(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID) (*model.CartItem, error)
	FindItemByID(ctx context.Context, cartID, itemID uuid.UUID) (*model.CartItem, error)
	CreateItem(ctx context.Context, item *model.CartItem) error
	SetItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error)
	Touch(ctx context.Context, cartID uuid.UUID, now time.Time) error
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) WithTx(tx *gorm.DB) CartRepository {
	return &cartRepository{db: tx}
}

func (r *cartRepository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Items.Product").
		Preload("Items.Variant")
}

func (r *cartRepository) Create(ctx context.Context, cart *model.Cart) error {
	logger.Debug("Creating cart in database", map[string]interface{}{
		"user_id":     cart.UserID,
		"has_session": cart.SessionKey != nil,
	})

	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		logger.Error("Failed to create cart in database", err, map[string]interface{}{
			"user_id": cart.UserID,
		})
		return err
	}
	return nil
}

func (r *cartRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	var cart model.Cart
	if err := r.withItems(ctx).First(&cart, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	var cart model.Cart
	err := r.withItems(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) FindActiveBySession(ctx context.Context, sessionKey string) (*model.Cart, error) {
	var cart model.Cart
	err := r.withItems(ctx).
		Where("session_key = ? AND is_active = ?", sessionKey, true).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	var cart model.Cart
	if err := forUpdate(r.db.WithContext(ctx)).First(&cart, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// Deactivate flips an active cart to inactive and reports whether this call
// did it. A second caller racing on the same cart sees false.
func (r *cartRepository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Cart{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		logger.Error("Failed to deactivate cart", result.Error, map[string]interface{}{
			"cart_id": id,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *cartRepository) DeactivateIdleGuestCarts(ctx context.Context, idleSince time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Cart{}).
		Where("user_id IS NULL AND is_active = ? AND updated_at < ?", true, idleSince).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

func (r *cartRepository) FindItem(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID) (*model.CartItem, error) {
	query := r.db.WithContext(ctx).Where("cart_id = ? AND product_id = ?", cartID, productID)
	if variantID == nil {
		query = query.Where("variant_id IS NULL")
	} else {
		query = query.Where("variant_id = ?", *variantID)
	}

	var item model.CartItem
	if err := query.First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) FindItemByID(ctx context.Context, cartID, itemID uuid.UUID) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) CreateItem(ctx context.Context, item *model.CartItem) error {
	logger.Debug("Creating cart item in database", map[string]interface{}{
		"cart_id":    item.CartID,
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
	})

	if err := r.db.WithContext(ctx).Omit("Product", "Variant").Create(item).Error; err != nil {
		logger.Error("Failed to create cart item in database", err, map[string]interface{}{
			"cart_id":    item.CartID,
			"product_id": item.ProductID,
		})
		return err
	}
	return nil
}

func (r *cartRepository) SetItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).Model(&model.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error) {
	logger.Debug("Deleting cart item from database", map[string]interface{}{
		"cart_id":      cartID,
		"cart_item_id": itemID,
	})

	result := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&model.CartItem{})
	if result.Error != nil {
		logger.Error("Failed to delete cart item from database", result.Error, map[string]interface{}{
			"cart_item_id": itemID,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Touch bumps updated_at so idle-cart cleanup measures from the last change.
func (r *cartRepository) Touch(ctx context.Context, cartID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Cart{}).
		Where("id = ?", cartID).
		UpdateColumn("updated_at", now).Error
}
