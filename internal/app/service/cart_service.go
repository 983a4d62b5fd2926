package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/db"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartOwner identifies whose cart an operation targets: an authenticated
// user or an anonymous session, never both.
type CartOwner struct {
	UserID     *uuid.UUID
	SessionKey string
}

func UserOwner(userID uuid.UUID) CartOwner {
	return CartOwner{UserID: &userID}
}

func SessionOwner(sessionKey string) CartOwner {
	return CartOwner{SessionKey: sessionKey}
}

func (o CartOwner) Validate() error {
	hasUser := o.UserID != nil && *o.UserID != uuid.Nil
	hasSession := strings.TrimSpace(o.SessionKey) != ""
	switch {
	case hasUser && hasSession:
		return apperrors.NewValidation("owner", "cart owner must be a user or a session, not both")
	case !hasUser && !hasSession:
		return apperrors.NewValidation("owner", "cart owner is required")
	case hasSession && len(o.SessionKey) > 40:
		return apperrors.NewValidation("session_key", "is too long")
	}
	return nil
}

func (o CartOwner) logFields() map[string]interface{} {
	if o.UserID != nil {
		return map[string]interface{}{"user_id": *o.UserID}
	}
	return map[string]interface{}{"guest": true}
}

type AddItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

type CartService interface {
	GetOrCreateCart(ctx context.Context, owner CartOwner) (*model.Cart, error)
	AddItem(ctx context.Context, owner CartOwner, input AddItemInput) (*model.Cart, error)
	UpdateItemQuantity(ctx context.Context, owner CartOwner, itemID uuid.UUID, quantity int) (*model.Cart, error)
	RemoveItem(ctx context.Context, owner CartOwner, itemID uuid.UUID) (*model.Cart, error)
	GetCartTotal(ctx context.Context, owner CartOwner) (decimal.Decimal, error)
	MergeGuestCart(ctx context.Context, sessionKey string, userID uuid.UUID) (*model.Cart, error)
	DeactivateIdleGuestCarts(ctx context.Context, ttl time.Duration) (int64, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	variantRepo repository.ProductVariantRepository
	db          *gorm.DB
	now         Clock
}

func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	variantRepo repository.ProductVariantRepository,
	db *gorm.DB,
) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		variantRepo: variantRepo,
		db:          db,
		now:         systemClock,
	}
}

func findActiveCart(ctx context.Context, carts repository.CartRepository, owner CartOwner) (*model.Cart, error) {
	if owner.UserID != nil {
		return carts.FindActiveByUser(ctx, *owner.UserID)
	}
	return carts.FindActiveBySession(ctx, owner.SessionKey)
}

// lockOrCreateCart returns the owner's active cart with its row locked,
// creating an empty one when none exists.
func lockOrCreateCart(ctx context.Context, carts repository.CartRepository, owner CartOwner) (*model.Cart, error) {
	cart, err := findActiveCart(ctx, carts, owner)
	if err == nil {
		return carts.LockByID(ctx, cart.ID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = &model.Cart{UserID: owner.UserID, IsActive: true}
	if owner.UserID == nil {
		key := owner.SessionKey
		cart.SessionKey = &key
	}
	if err := carts.Create(ctx, cart); err != nil {
		return nil, apperrors.ClassifyDBError(err, "cart", owner.SessionKey)
	}
	return cart, nil
}

func (s *cartService) GetOrCreateCart(ctx context.Context, owner CartOwner) (*model.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	cart, err := findActiveCart(ctx, s.cartRepo, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to fetch cart", err, owner.logFields())
		return nil, err
	}

	var cartID uuid.UUID
	err = db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		created, err := lockOrCreateCart(ctx, s.cartRepo.WithTx(tx), owner)
		if err != nil {
			return err
		}
		cartID = created.ID
		return nil
	})
	if err != nil {
		// A concurrent request created the cart first.
		if apperrors.IsConflict(err) {
			return findActiveCart(ctx, s.cartRepo, owner)
		}
		return nil, err
	}

	logger.Info("Cart created", owner.logFields())
	return s.cartRepo.FindByID(ctx, cartID)
}

// AddItem adds quantity of a product (or one of its variants) to the cart.
// An existing line for the same product and variant is incremented.
func (s *cartService) AddItem(ctx context.Context, owner CartOwner, input AddItemInput) (*model.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if input.Quantity < 1 {
		return nil, apperrors.NewValidation("quantity", "must be at least 1")
	}

	fields := owner.logFields()
	fields["product_id"] = input.ProductID
	fields["quantity"] = input.Quantity
	logger.Info("Adding item to cart", fields)

	cartID, err := s.addItem(ctx, owner, input)
	if apperrors.IsConflict(err) {
		// A concurrent request created the cart or the line first.
		cartID, err = s.addItem(ctx, owner, input)
	}
	if err != nil {
		if apperrors.IsValidation(err) || apperrors.IsNotFound(err) {
			logger.Warn("Add to cart rejected", map[string]interface{}{
				"product_id": input.ProductID,
				"error":      err.Error(),
			})
		}
		return nil, err
	}

	return s.cartRepo.FindByID(ctx, cartID)
}

func (s *cartService) addItem(ctx context.Context, owner CartOwner, input AddItemInput) (uuid.UUID, error) {
	var cartID uuid.UUID
	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		carts := s.cartRepo.WithTx(tx)

		product, err := s.productRepo.WithTx(tx).FindByID(ctx, input.ProductID)
		if err != nil {
			return apperrors.ClassifyDBError(err, "product", input.ProductID)
		}
		if !product.IsPurchasable() {
			return apperrors.NewValidation("product_id", "product is not available")
		}
		if input.VariantID != nil {
			variant, err := s.variantRepo.WithTx(tx).FindByID(ctx, *input.VariantID)
			if err != nil {
				return apperrors.ClassifyDBError(err, "product_variant", *input.VariantID)
			}
			if variant.ProductID != product.ID {
				return apperrors.NewValidation("variant_id", "variant does not belong to product")
			}
		}

		cart, err := lockOrCreateCart(ctx, carts, owner)
		if err != nil {
			return err
		}
		cartID = cart.ID

		existing, err := carts.FindItem(ctx, cart.ID, input.ProductID, input.VariantID)
		switch {
		case err == nil:
			if err := carts.SetItemQuantity(ctx, existing.ID, existing.Quantity+input.Quantity); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			item := &model.CartItem{
				CartID:    cart.ID,
				ProductID: input.ProductID,
				VariantID: input.VariantID,
				Quantity:  input.Quantity,
			}
			if err := carts.CreateItem(ctx, item); err != nil {
				return apperrors.ClassifyDBError(err, "cart_item", input.ProductID)
			}
		default:
			return err
		}
		return carts.Touch(ctx, cart.ID, s.now())
	})
	return cartID, err
}

func (s *cartService) UpdateItemQuantity(ctx context.Context, owner CartOwner, itemID uuid.UUID, quantity int) (*model.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, apperrors.NewValidation("quantity", "must be at least 1; remove the item instead")
	}

	var cartID uuid.UUID
	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		carts := s.cartRepo.WithTx(tx)

		cart, err := findActiveCart(ctx, carts, owner)
		if err != nil {
			return apperrors.ClassifyDBError(err, "cart", itemID)
		}
		cartID = cart.ID

		if _, err := carts.FindItemByID(ctx, cart.ID, itemID); err != nil {
			return apperrors.ClassifyDBError(err, "cart_item", itemID)
		}
		if err := carts.SetItemQuantity(ctx, itemID, quantity); err != nil {
			return err
		}
		return carts.Touch(ctx, cart.ID, s.now())
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Cart item quantity updated", map[string]interface{}{
		"cart_item_id": itemID,
		"quantity":     quantity,
	})
	return s.cartRepo.FindByID(ctx, cartID)
}

func (s *cartService) RemoveItem(ctx context.Context, owner CartOwner, itemID uuid.UUID) (*model.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	var cartID uuid.UUID
	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		carts := s.cartRepo.WithTx(tx)

		cart, err := findActiveCart(ctx, carts, owner)
		if err != nil {
			return apperrors.ClassifyDBError(err, "cart", itemID)
		}
		cartID = cart.ID

		ok, err := carts.DeleteItem(ctx, cart.ID, itemID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NewNotFound("cart_item", itemID)
		}
		return carts.Touch(ctx, cart.ID, s.now())
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Cart item removed", map[string]interface{}{
		"cart_item_id": itemID,
	})
	return s.cartRepo.FindByID(ctx, cartID)
}

func (s *cartService) GetCartTotal(ctx context.Context, owner CartOwner) (decimal.Decimal, error) {
	cart, err := s.GetOrCreateCart(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	return cart.Total(), nil
}

// MergeGuestCart folds the session's cart into the user's active cart,
// summing quantities of matching lines, and deactivates the guest cart.
func (s *cartService) MergeGuestCart(ctx context.Context, sessionKey string, userID uuid.UUID) (*model.Cart, error) {
	if err := SessionOwner(sessionKey).Validate(); err != nil {
		return nil, err
	}
	if userID == uuid.Nil {
		return nil, apperrors.NewValidation("user_id", "is required")
	}

	var (
		cartID uuid.UUID
		merged int
	)
	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		carts := s.cartRepo.WithTx(tx)

		target, err := lockOrCreateCart(ctx, carts, UserOwner(userID))
		if err != nil {
			return err
		}
		cartID = target.ID

		guest, err := carts.FindActiveBySession(ctx, sessionKey)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := carts.LockByID(ctx, guest.ID); err != nil {
			return err
		}

		for _, line := range guest.Items {
			existing, err := carts.FindItem(ctx, target.ID, line.ProductID, line.VariantID)
			switch {
			case err == nil:
				if err := carts.SetItemQuantity(ctx, existing.ID, existing.Quantity+line.Quantity); err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				item := &model.CartItem{
					CartID:    target.ID,
					ProductID: line.ProductID,
					VariantID: line.VariantID,
					Quantity:  line.Quantity,
				}
				if err := carts.CreateItem(ctx, item); err != nil {
					return apperrors.ClassifyDBError(err, "cart_item", line.ProductID)
				}
			default:
				return err
			}
			merged++
		}

		if _, err := carts.Deactivate(ctx, guest.ID); err != nil {
			return err
		}
		return carts.Touch(ctx, target.ID, s.now())
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Guest cart merged", map[string]interface{}{
		"user_id":      userID,
		"merged_lines": merged,
	})
	return s.cartRepo.FindByID(ctx, cartID)
}

// DeactivateIdleGuestCarts retires guest carts untouched for longer than ttl.
// Customer carts are never expired.
func (s *cartService) DeactivateIdleGuestCarts(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, apperrors.NewValidation("ttl", "must be positive")
	}
	affected, err := s.cartRepo.DeactivateIdleGuestCarts(ctx, s.now().Add(-ttl))
	if err != nil {
		logger.Error("Failed to deactivate idle guest carts", err)
		return 0, err
	}
	if affected > 0 {
		logger.Info("Idle guest carts deactivated", map[string]interface{}{
			"count": affected,
			"ttl":   ttl.String(),
		})
	}
	return affected, nil
}
