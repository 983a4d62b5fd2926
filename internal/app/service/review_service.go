package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/db"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type ReviewInput struct {
	ProductID uuid.UUID
	UserID    uuid.UUID
	Rating    int
	Title     string
	Comment   string
}

type ReviewService interface {
	SubmitReview(ctx context.Context, input ReviewInput) (*model.Review, error)
	ApproveReview(ctx context.Context, reviewID uuid.UUID) (*model.Review, error)
	ListProductReviews(ctx context.Context, productID uuid.UUID, page, pageSize int) (model.Page[model.Review], error)
	AverageRating(ctx context.Context, productID uuid.UUID) (repository.RatingSummary, error)
}

type reviewService struct {
	reviewRepo  repository.ReviewRepository
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	db          *gorm.DB
}

func NewReviewService(
	reviewRepo repository.ReviewRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	db *gorm.DB,
) ReviewService {
	return &reviewService{
		reviewRepo:  reviewRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		db:          db,
	}
}

func validateReview(input ReviewInput) error {
	if !model.RatingInRange(input.Rating) {
		return apperrors.NewValidation("rating", "must be between 1 and 5")
	}
	if err := requireText("title", input.Title, 200); err != nil {
		return err
	}
	return requireText("comment", input.Comment, 0)
}

// SubmitReview creates the user's review of a product, or rewrites it when
// one exists. Either way the review awaits moderation again and is flagged
// verified only if the user has received the product.
func (s *reviewService) SubmitReview(ctx context.Context, input ReviewInput) (*model.Review, error) {
	if err := validateReview(input); err != nil {
		return nil, err
	}

	review, err := s.writeReview(ctx, input)
	if apperrors.IsConflict(err) {
		// A concurrent first submission won the insert; rewrite it instead.
		review, err = s.writeReview(ctx, input)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Review submitted", map[string]interface{}{
		"review_id":  review.ID,
		"product_id": review.ProductID,
		"user_id":    review.UserID,
		"verified":   review.IsVerifiedPurchase,
	})
	return review, nil
}

func (s *reviewService) writeReview(ctx context.Context, input ReviewInput) (*model.Review, error) {
	var review *model.Review
	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		reviews := s.reviewRepo.WithTx(tx)

		product, err := s.productRepo.WithTx(tx).FindByID(ctx, input.ProductID)
		if err != nil {
			return apperrors.ClassifyDBError(err, "product", input.ProductID)
		}
		if product.IsDeleted {
			return apperrors.NewNotFound("product", input.ProductID)
		}

		verified, err := s.orderRepo.WithTx(tx).HasDeliveredItem(ctx, input.UserID, input.ProductID)
		if err != nil {
			return err
		}

		existing, err := reviews.FindByProductAndUser(ctx, input.ProductID, input.UserID)
		switch {
		case err == nil:
			existing.Rating = input.Rating
			existing.Title = strings.TrimSpace(input.Title)
			existing.Comment = strings.TrimSpace(input.Comment)
			existing.IsVerifiedPurchase = verified
			existing.IsApproved = false
			review = existing
			return reviews.UpdateContent(ctx, existing)
		case errors.Is(err, gorm.ErrRecordNotFound):
			review = &model.Review{
				ProductID:          input.ProductID,
				UserID:             input.UserID,
				Rating:             input.Rating,
				Title:              strings.TrimSpace(input.Title),
				Comment:            strings.TrimSpace(input.Comment),
				IsVerifiedPurchase: verified,
			}
			if err := reviews.Create(ctx, review); err != nil {
				return apperrors.ClassifyDBError(err, "review", input.ProductID)
			}
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

func (s *reviewService) ApproveReview(ctx context.Context, reviewID uuid.UUID) (*model.Review, error) {
	ok, err := s.reviewRepo.SetApproved(ctx, reviewID, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewNotFound("review", reviewID)
	}

	logger.Info("Review approved", map[string]interface{}{
		"review_id": reviewID,
	})
	review, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, apperrors.ClassifyDBError(err, "review", reviewID)
	}
	return review, nil
}

func (s *reviewService) ListProductReviews(ctx context.Context, productID uuid.UUID, page, pageSize int) (model.Page[model.Review], error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	reviews, total, err := s.reviewRepo.ListApprovedByProduct(ctx, productID, page, pageSize)
	if err != nil {
		return model.Page[model.Review]{}, err
	}
	return model.NewPage(reviews, total, page, pageSize), nil
}

func (s *reviewService) AverageRating(ctx context.Context, productID uuid.UUID) (repository.RatingSummary, error) {
	return s.reviewRepo.RatingSummary(ctx, productID)
}
