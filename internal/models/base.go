package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base gives tenant entities a client-generated UUID key.
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// All lists every model for AutoMigrate, parents first.
func All() []any {
	return []any{
		&Vendor{},
		&Credential{},
		&User{},
		&Customer{},
		&Item{},
		&StockEntry{},
		&Allocation{},
		&ItemImage{},
		&Sale{},
	}
}
