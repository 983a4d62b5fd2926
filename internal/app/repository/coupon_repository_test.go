package repository

import (
	"testing"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouponRepository_IncrementUsage_RespectsLimit(t *testing.T) {
	testDB := setupRepositoryTest(t)
	repo := NewCouponRepository(testDB)
	limit := 2
	coupon := &model.Coupon{
		Code:          "SAVE10",
		DiscountType:  model.DiscountPercentage,
		DiscountValue: dec("10"),
		UsageLimit:    &limit,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(time.Hour),
		IsActive:      true,
	}
	require.NoError(t, repo.Create(ctx, coupon))

	for i := 0; i < 2; i++ {
		ok, err := repo.IncrementUsage(ctx, coupon.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := repo.IncrementUsage(ctx, coupon.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 2, found.UsageCount)
}

func TestCouponRepository_IncrementUsage_Unlimited(t *testing.T) {
	testDB := setupRepositoryTest(t)
	repo := NewCouponRepository(testDB)
	coupon := &model.Coupon{
		Code:          "FOREVER",
		DiscountType:  model.DiscountFixed,
		DiscountValue: dec("5"),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(time.Hour),
		IsActive:      true,
	}
	require.NoError(t, repo.Create(ctx, coupon))

	for i := 0; i < 10; i++ {
		ok, err := repo.IncrementUsage(ctx, coupon.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestCouponRepository_DeactivateExpired(t *testing.T) {
	testDB := setupRepositoryTest(t)
	repo := NewCouponRepository(testDB)
	now := time.Now()

	expired := &model.Coupon{Code: "OLD", DiscountType: model.DiscountFixed, DiscountValue: dec("1"),
		ValidFrom: now.Add(-48 * time.Hour), ValidTo: now.Add(-24 * time.Hour), IsActive: true}
	current := &model.Coupon{Code: "NEW", DiscountType: model.DiscountFixed, DiscountValue: dec("1"),
		ValidFrom: now.Add(-time.Hour), ValidTo: now.Add(time.Hour), IsActive: true}
	require.NoError(t, repo.Create(ctx, expired))
	require.NoError(t, repo.Create(ctx, current))

	affected, err := repo.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	found, err := repo.FindByCode(ctx, "OLD")
	require.NoError(t, err)
	assert.False(t, found.IsActive)
}
