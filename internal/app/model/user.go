package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Base
	Email     string `gorm:"size:254;not null;uniqueIndex" json:"email"` // stored lower-case
	Phone     string `gorm:"size:20" json:"phone"`
	FirstName string `gorm:"size:150" json:"first_name"`
	LastName  string `gorm:"size:150" json:"last_name"`

	Profile   *CustomerProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	Addresses []Address        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"addresses,omitempty"`
	Carts     []Cart           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Reviews   []Review         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// CustomerProfile holds customer-specific data; exactly one per user.
type CustomerProfile struct {
	Base
	UserID                 uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	DateOfBirth            *time.Time `gorm:"type:date" json:"date_of_birth,omitempty"`
	LoyaltyPoints          int        `gorm:"not null;default:0" json:"loyalty_points"`
	PreferredPaymentMethod string     `gorm:"size:50" json:"preferred_payment_method"`
}

func (CustomerProfile) TableName() string {
	return "customer_profiles"
}
