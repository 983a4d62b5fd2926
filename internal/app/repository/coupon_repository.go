package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type CouponRepository interface {
	WithTx(tx *gorm.DB) CouponRepository
	Create(ctx context.Context, coupon *model.Coupon) error
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)
	LockByCode(ctx context.Context, code string) (*model.Coupon, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type couponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) WithTx(tx *gorm.DB) CouponRepository {
	return &couponRepository{db: tx}
}

func (r *couponRepository) Create(ctx context.Context, coupon *model.Coupon) error {
	logger.Debug("Creating coupon in database", map[string]interface{}{
		"code": coupon.Code,
		"type": coupon.DiscountType,
	})

	if err := r.db.WithContext(ctx).Create(coupon).Error; err != nil {
		logger.Error("Failed to create coupon in database", err, map[string]interface{}{
			"code": coupon.Code,
		})
		return err
	}
	return nil
}

func (r *couponRepository) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *couponRepository) LockByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	if err := forUpdate(r.db.WithContext(ctx)).Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// IncrementUsage consumes one use if the limit allows it.
func (r *couponRepository) IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if result.Error != nil {
		logger.Error("Failed to increment coupon usage", result.Error, map[string]interface{}{
			"coupon_id": id,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *couponRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Coupon{}).
		Where("is_active = ? AND valid_to < ?", true, now).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}
