package models

// Vendor is the tenant root; every other tenant row carries its id.
type Vendor struct {
	Base
	Name    string `gorm:"size:150;not null" json:"name"`
	Email   string `gorm:"size:150" json:"email"`
	Phone   string `gorm:"size:50" json:"phone"`
	Address string `gorm:"size:255" json:"address"`

	Users []User `json:"-"`
}
