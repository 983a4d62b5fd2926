package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

type ReviewRepository interface {
	WithTx(tx *gorm.DB) ReviewRepository
	Create(ctx context.Context, review *model.Review) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Review, error)
	FindByProductAndUser(ctx context.Context, productID, userID uuid.UUID) (*model.Review, error)
	UpdateContent(ctx context.Context, review *model.Review) error
	SetApproved(ctx context.Context, id uuid.UUID, approved bool) (bool, error)
	ListApprovedByProduct(ctx context.Context, productID uuid.UUID, page, pageSize int) ([]model.Review, int64, error)
	RatingSummary(ctx context.Context, productID uuid.UUID) (RatingSummary, error)
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) WithTx(tx *gorm.DB) ReviewRepository {
	return &reviewRepository{db: tx}
}

func (r *reviewRepository) Create(ctx context.Context, review *model.Review) error {
	logger.Debug("Creating review in database", map[string]interface{}{
		"product_id": review.ProductID,
		"user_id":    review.UserID,
		"rating":     review.Rating,
	})

	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		logger.Error("Failed to create review in database", err, map[string]interface{}{
			"product_id": review.ProductID,
			"user_id":    review.UserID,
		})
		return err
	}
	return nil
}

func (r *reviewRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Review, error) {
	var review model.Review
	if err := r.db.WithContext(ctx).First(&review, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) FindByProductAndUser(ctx context.Context, productID, userID uuid.UUID) (*model.Review, error) {
	var review model.Review
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND user_id = ?", productID, userID).
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// UpdateContent rewrites a resubmitted review and sends it back for moderation.
func (r *reviewRepository) UpdateContent(ctx context.Context, review *model.Review) error {
	return r.db.WithContext(ctx).Model(review).
		Select("Rating", "Title", "Comment", "IsVerifiedPurchase", "IsApproved").
		Updates(review).Error
}

func (r *reviewRepository) SetApproved(ctx context.Context, id uuid.UUID, approved bool) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Review{}).
		Where("id = ?", id).
		Update("is_approved", approved)
	return result.RowsAffected == 1, result.Error
}

func (r *reviewRepository) ListApprovedByProduct(ctx context.Context, productID uuid.UUID, page, pageSize int) ([]model.Review, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)
	query := r.db.WithContext(ctx).Model(&model.Review{}).
		Where("product_id = ? AND is_approved = ?", productID, true).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reviews []model.Review
	err := query.
		Order("created_at DESC, id ASC").
		Limit(pageSize).
		Offset(offset(page, pageSize)).
		Find(&reviews).Error
	if err != nil {
		logger.Error("Failed to list reviews", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, 0, err
	}
	return reviews, total, nil
}

// RatingSummary averages approved ratings only.
func (r *reviewRepository) RatingSummary(ctx context.Context, productID uuid.UUID) (RatingSummary, error) {
	var row struct {
		Average *float64
		Count   int64
	}
	err := r.db.WithContext(ctx).Model(&model.Review{}).
		Select("AVG(rating) AS average, COUNT(*) AS count").
		Where("product_id = ? AND is_approved = ?", productID, true).
		Scan(&row).Error
	if err != nil {
		return RatingSummary{}, err
	}

	summary := RatingSummary{Count: row.Count}
	if row.Average != nil {
		summary.Average = *row.Average
	}
	return summary, nil
}
