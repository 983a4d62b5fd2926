package model

import "github.com/google/uuid"

const (
	MinRating = 1
	MaxRating = 5
)

// Review is unique per (product, user).
type Review struct {
	Base
	ProductID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_product_user" json:"product_id"`
	UserID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_product_user;index" json:"user_id"`
	Rating             int       `gorm:"not null" json:"rating"`
	Title              string    `gorm:"size:200;not null" json:"title"`
	Comment            string    `gorm:"type:text;not null" json:"comment"`
	IsVerifiedPurchase bool      `gorm:"not null;default:false" json:"is_verified_purchase"`
	IsApproved         bool      `gorm:"not null;default:false;index" json:"is_approved"`
}

func (Review) TableName() string {
	return "reviews"
}

// RatingInRange reports whether rating is between MinRating and MaxRating.
func RatingInRange(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}
