package model

import "github.com/google/uuid"

// Address is a shipping/billing target owned by a user.
// At most one address per user has IsDefault set.
type Address struct {
	Base
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	FullName     string    `gorm:"size:100;not null" json:"full_name"`
	Phone        string    `gorm:"size:20;not null" json:"phone"`
	AddressLine1 string    `gorm:"size:200;not null" json:"address_line1"`
	AddressLine2 string    `gorm:"size:200" json:"address_line2"`
	City         string    `gorm:"size:100;not null" json:"city"`
	State        string    `gorm:"size:100;not null" json:"state"`
	PostalCode   string    `gorm:"size:20;not null" json:"postal_code"`
	Country      string    `gorm:"size:100;not null" json:"country"`
	IsDefault    bool      `gorm:"not null;default:false" json:"is_default"`
}

func (Address) TableName() string {
	return "addresses"
}

// Snapshot copies the address fields for storage on an order.
func (a Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
	}
}

// AddressSnapshot is the value copy of an address embedded in an order.
// Later edits to the source address never reach it.
type AddressSnapshot struct {
	FullName     string `gorm:"size:100" json:"full_name"`
	Phone        string `gorm:"size:20" json:"phone"`
	AddressLine1 string `gorm:"size:200" json:"address_line1"`
	AddressLine2 string `gorm:"size:200" json:"address_line2"`
	City         string `gorm:"size:100" json:"city"`
	State        string `gorm:"size:100" json:"state"`
	PostalCode   string `gorm:"size:20" json:"postal_code"`
	Country      string `gorm:"size:100" json:"country"`
}
