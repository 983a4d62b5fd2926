package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type AddressRepository interface {
	WithTx(tx *gorm.DB) AddressRepository
	Create(ctx context.Context, address *model.Address) error
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]model.Address, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Address, error)
	Update(ctx context.Context, address *model.Address) error
	Delete(ctx context.Context, id uuid.UUID) error
	ClearDefault(ctx context.Context, userID uuid.UUID) error
	MarkDefault(ctx context.Context, userID, addressID uuid.UUID) (bool, error)
	CountOrderReferences(ctx context.Context, id uuid.UUID) (int64, error)
}

type addressRepository struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) AddressRepository {
	return &addressRepository{db: db}
}

func (r *addressRepository) WithTx(tx *gorm.DB) AddressRepository {
	return &addressRepository{db: tx}
}

func (r *addressRepository) Create(ctx context.Context, address *model.Address) error {
	logger.Debug("Creating address in database", map[string]interface{}{
		"user_id":    address.UserID,
		"is_default": address.IsDefault,
	})

	if err := r.db.WithContext(ctx).Create(address).Error; err != nil {
		logger.Error("Failed to create address in database", err, map[string]interface{}{
			"user_id": address.UserID,
		})
		return err
	}

	logger.Debug("Address created in database", map[string]interface{}{
		"address_id": address.ID,
		"user_id":    address.UserID,
	})
	return nil
}

func (r *addressRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]model.Address, error) {
	var addresses []model.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at ASC").
		Find(&addresses).Error
	if err != nil {
		logger.Error("Failed to find addresses by user ID", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return addresses, nil
}

func (r *addressRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Address, error) {
	var address model.Address
	if err := r.db.WithContext(ctx).First(&address, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &address, nil
}

// Update writes the editable fields; ownership and the default flag are
// changed through their own operations.
func (r *addressRepository) Update(ctx context.Context, address *model.Address) error {
	logger.Debug("Updating address in database", map[string]interface{}{
		"address_id": address.ID,
	})

	err := r.db.WithContext(ctx).Model(address).
		Select("FullName", "Phone", "AddressLine1", "AddressLine2", "City", "State", "PostalCode", "Country").
		Updates(address).Error
	if err != nil {
		logger.Error("Failed to update address in database", err, map[string]interface{}{
			"address_id": address.ID,
		})
		return err
	}
	return nil
}

func (r *addressRepository) Delete(ctx context.Context, id uuid.UUID) error {
	logger.Debug("Deleting address from database", map[string]interface{}{
		"address_id": id,
	})

	if err := r.db.WithContext(ctx).Delete(&model.Address{}, "id = ?", id).Error; err != nil {
		logger.Error("Failed to delete address from database", err, map[string]interface{}{
			"address_id": id,
		})
		return err
	}
	return nil
}

func (r *addressRepository) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Address{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}

// MarkDefault sets the flag on one address owned by userID. Callers clear
// siblings first in the same transaction.
func (r *addressRepository) MarkDefault(ctx context.Context, userID, addressID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Address{}).
		Where("id = ? AND user_id = ?", addressID, userID).
		Update("is_default", true)
	if result.Error != nil {
		logger.Error("Failed to set address as default", result.Error, map[string]interface{}{
			"user_id":    userID,
			"address_id": addressID,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *addressRepository) CountOrderReferences(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("shipping_address_id = ? OR billing_address_id = ?", id, id).
		Count(&count).Error
	return count, err
}
