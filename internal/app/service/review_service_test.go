package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestReviewService_SubmitReview_Validation(t *testing.T) {
	env := setupServiceTest(t)
	category := env.category(t, "Shirts")
	tee := env.product(t, category.ID, "Tee", "10.00", 5)
	user := env.user(t, "reviewer@example.com")

	tests := []struct {
		name  string
		input ReviewInput
	}{
		{name: "rating too low", input: ReviewInput{Rating: 0, Title: "t", Comment: "c"}},
		{name: "rating too high", input: ReviewInput{Rating: 6, Title: "t", Comment: "c"}},
		{name: "blank title", input: ReviewInput{Rating: 3, Title: " ", Comment: "c"}},
		{name: "blank comment", input: ReviewInput{Rating: 3, Title: "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			input.ProductID = tee.ID
			input.UserID = user.ID
			_, err := env.reviews.SubmitReview(ctx, input)
			assert.True(t, apperrors.IsValidation(err))
		})
	}

	_, err := env.reviews.SubmitReview(ctx, ReviewInput{
		ProductID: uuid.New(), UserID: user.ID, Rating: 4, Title: "t", Comment: "c",
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReviewService_SubmitReview_ResubmissionResetsApproval(t *testing.T) {
	env := setupServiceTest(t)
	category := env.category(t, "Shirts")
	tee := env.product(t, category.ID, "Tee", "10.00", 5)
	user := env.user(t, "reviewer@example.com")

	first, err := env.reviews.SubmitReview(ctx, ReviewInput{
		ProductID: tee.ID, UserID: user.ID, Rating: 2, Title: "Meh", Comment: "Shrank in the wash",
	})
	require.NoError(t, err)
	assert.False(t, first.IsApproved)
	assert.False(t, first.IsVerifiedPurchase)

	approved, err := env.reviews.ApproveReview(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)

	second, err := env.reviews.SubmitReview(ctx, ReviewInput{
		ProductID: tee.ID, UserID: user.ID, Rating: 4, Title: "Better", Comment: "Second one fit",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	stored, err := env.reviews.reviewRepo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Rating)
	assert.Equal(t, "Better", stored.Title)
	assert.False(t, stored.IsApproved)

	var count int64
	require.NoError(t, env.db.Model(&model.Review{}).Where("product_id = ?", tee.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = env.reviews.ApproveReview(ctx, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

// staleReviews misses the user's existing review on the first lookups, as a
// submission racing the first insert would.
type staleReviews struct {
	repository.ReviewRepository
	misses *int
}

func (r staleReviews) WithTx(tx *gorm.DB) repository.ReviewRepository {
	return staleReviews{ReviewRepository: r.ReviewRepository.WithTx(tx), misses: r.misses}
}

func (r staleReviews) FindByProductAndUser(ctx context.Context, productID, userID uuid.UUID) (*model.Review, error) {
	if *r.misses > 0 {
		*r.misses--
		return nil, gorm.ErrRecordNotFound
	}
	return r.ReviewRepository.FindByProductAndUser(ctx, productID, userID)
}

func TestReviewService_SubmitReview_LosingFirstInsertUpdates(t *testing.T) {
	env := setupServiceTest(t)
	category := env.category(t, "Shirts")
	tee := env.product(t, category.ID, "Tee", "10.00", 5)
	user := env.user(t, "double@example.com")

	first, err := env.reviews.SubmitReview(ctx, ReviewInput{
		ProductID: tee.ID, UserID: user.ID, Rating: 3, Title: "Okay", Comment: "Fine",
	})
	require.NoError(t, err)

	misses := 1
	env.reviews.reviewRepo = staleReviews{ReviewRepository: env.reviews.reviewRepo, misses: &misses}

	second, err := env.reviews.SubmitReview(ctx, ReviewInput{
		ProductID: tee.ID, UserID: user.ID, Rating: 5, Title: "Great", Comment: "Grew on me",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Zero(t, misses)

	stored, err := env.reviews.reviewRepo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Rating)
	assert.Equal(t, "Great", stored.Title)

	var count int64
	require.NoError(t, env.db.Model(&model.Review{}).
		Where("product_id = ? AND user_id = ?", tee.ID, user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReviewService_VerifiedPurchase(t *testing.T) {
	env := setupServiceTest(t)
	order, product := placeOrder(t, env, 1)

	review, err := env.reviews.SubmitReview(ctx, ReviewInput{
		ProductID: product.ID, UserID: order.CustomerID, Rating: 5, Title: "Arrived?", Comment: "Not yet",
	})
	require.NoError(t, err)
	assert.False(t, review.IsVerifiedPurchase, "pending orders do not verify")

	for _, next := range []model.OrderStatus{model.OrderStatusProcessing, model.OrderStatusShipped, model.OrderStatusDelivered} {
		_, err := env.orders.TransitionStatus(ctx, order.ID, next)
		require.NoError(t, err)
	}

	review, err = env.reviews.SubmitReview(ctx, ReviewInput{
		ProductID: product.ID, UserID: order.CustomerID, Rating: 5, Title: "Great", Comment: "Arrived fast",
	})
	require.NoError(t, err)
	assert.True(t, review.IsVerifiedPurchase)
}

func TestReviewService_ListingAndAverage(t *testing.T) {
	env := setupServiceTest(t)
	category := env.category(t, "Shirts")
	tee := env.product(t, category.ID, "Tee", "10.00", 5)

	ratings := map[string]int{"a@example.com": 5, "b@example.com": 4, "c@example.com": 1}
	for email, rating := range ratings {
		user := env.user(t, email)
		review, err := env.reviews.SubmitReview(ctx, ReviewInput{
			ProductID: tee.ID, UserID: user.ID, Rating: rating, Title: "Title", Comment: "Comment",
		})
		require.NoError(t, err)
		if rating > 1 {
			_, err = env.reviews.ApproveReview(ctx, review.ID)
			require.NoError(t, err)
		}
	}

	page, err := env.reviews.ListProductReviews(ctx, tee.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 2)

	summary, err := env.reviews.AverageRating(ctx, tee.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Count)
	assert.InDelta(t, 4.5, summary.Average, 0.001)

	empty, err := env.reviews.AverageRating(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.Zero(t, empty.Average)
}
