package model

import "github.com/google/uuid"

// Category is a node in the catalog tree. The parent chain is acyclic.
type Category struct {
	Base
	Name        string     `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Slug        string     `gorm:"size:100;not null;uniqueIndex" json:"slug"`
	Description string     `gorm:"type:text" json:"description"`
	ParentID    *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	IsActive    bool       `gorm:"not null" json:"is_active"`

	Children []Category `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"children,omitempty"`
}

func (Category) TableName() string {
	return "categories"
}

type Brand struct {
	Base
	Name        string `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Slug        string `gorm:"size:100;not null;uniqueIndex" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
}

func (Brand) TableName() string {
	return "brands"
}
