package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindProfile(ctx context.Context, userID uuid.UUID) (*model.CustomerProfile, error)
	UpdateProfile(ctx context.Context, profile *model.CustomerProfile) error
	AdjustLoyaltyPoints(ctx context.Context, userID uuid.UUID, delta int) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	logger.Debug("Creating user in database", map[string]interface{}{
		"email": user.Email,
	})

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		logger.Error("Failed to create user in database", err, map[string]interface{}{
			"email": user.Email,
		})
		return err
	}

	logger.Debug("User created in database", map[string]interface{}{
		"user_id": user.ID,
	})
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Preload("Profile").First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// LockByID takes a row lock on the user, serialising per-user invariants
// such as the single default address.
func (r *userRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := forUpdate(r.db.WithContext(ctx)).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindProfile(ctx context.Context, userID uuid.UUID) (*model.CustomerProfile, error) {
	var profile model.CustomerProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, profile *model.CustomerProfile) error {
	logger.Debug("Updating customer profile in database", map[string]interface{}{
		"user_id": profile.UserID,
	})

	err := r.db.WithContext(ctx).Model(&model.CustomerProfile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]interface{}{
			"date_of_birth":            profile.DateOfBirth,
			"preferred_payment_method": profile.PreferredPaymentMethod,
		}).Error
	if err != nil {
		logger.Error("Failed to update customer profile in database", err, map[string]interface{}{
			"user_id": profile.UserID,
		})
		return err
	}
	return nil
}

// AdjustLoyaltyPoints adds delta to the balance unless it would go negative.
// It reports whether the row was changed.
func (r *userRepository) AdjustLoyaltyPoints(ctx context.Context, userID uuid.UUID, delta int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.CustomerProfile{}).
		Where("user_id = ? AND loyalty_points + ? >= 0", userID, delta).
		UpdateColumn("loyalty_points", gorm.Expr("loyalty_points + ?", delta))
	if result.Error != nil {
		logger.Error("Failed to adjust loyalty points", result.Error, map[string]interface{}{
			"user_id": userID,
			"delta":   delta,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
