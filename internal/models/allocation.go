package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AllocationStatus string

const (
	AllocationPending  AllocationStatus = "pending"
	AllocationReturned AllocationStatus = "returned"
)

// Allocation lends QuantityUsed units of an item to a customer for an event.
type Allocation struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	VendorID           uuid.UUID  `gorm:"type:uuid;index;not null" json:"vendor_id"`
	ItemID             uuid.UUID  `gorm:"type:uuid;index;not null" json:"item_id"`
	Item               *Item      `json:"-"`
	CustomerID         uuid.UUID  `gorm:"type:uuid;index;not null" json:"customer_id"`
	Customer           *Customer  `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	QuantityUsed       int        `gorm:"not null;check:chk_allocations_quantity_used,quantity_used > 0" json:"quantity_used"`
	EventName          string     `gorm:"size:200" json:"event_name"`
	EventDate          *time.Time `json:"event_date"`
	ExpectedReturnDate *time.Time `gorm:"index" json:"expected_return_date"`
	IsReturned         bool       `gorm:"not null;default:false;index" json:"is_returned"`
	ReturnedAt         *time.Time `json:"returned_at"`
	CreatedBy          uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`
}

func (a *Allocation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a Allocation) Status() AllocationStatus {
	if a.IsReturned {
		return AllocationReturned
	}
	return AllocationPending
}

// IsOverdue is a display property only; it never gates a transition.
func (a Allocation) IsOverdue(now time.Time) bool {
	if a.IsReturned || a.ExpectedReturnDate == nil {
		return false
	}
	return a.ExpectedReturnDate.Before(now)
}
