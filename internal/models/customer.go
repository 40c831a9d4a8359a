package models

import "github.com/google/uuid"

type Customer struct {
	Base
	VendorID uuid.UUID `gorm:"type:uuid;index;not null" json:"vendor_id"`
	Name     string    `gorm:"size:150;not null" json:"name"`
	Phone    string    `gorm:"size:30" json:"phone"`
	Email    string    `gorm:"size:150" json:"email"`
	Address  string    `gorm:"size:255" json:"address"`
	Notes    string    `gorm:"type:text" json:"notes"`
}
