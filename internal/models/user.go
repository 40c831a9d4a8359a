package models

import (
	"time"

	"dhuni-backend/internal/tenant"

	"github.com/google/uuid"
)

// Credential is the authentication principal. Its id is reused as the
// User id once provisioning links it to a vendor.
type Credential struct {
	Base
	Email        string `gorm:"size:150;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	FullName     string `gorm:"size:150;not null"`
}

type User struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	VendorID  uuid.UUID   `gorm:"type:uuid;index;not null" json:"vendor_id"`
	Vendor    *Vendor     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Role      tenant.Role `gorm:"size:20;not null" json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}
