package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPaid, PaymentPending, PaymentPartial:
		return true
	}
	return false
}

// Sale invoice numbers are unique per vendor.
type Sale struct {
	Base
	VendorID      uuid.UUID       `gorm:"type:uuid;index;not null;uniqueIndex:idx_sales_vendor_invoice" json:"vendor_id"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;index;not null" json:"customer_id"`
	Customer      *Customer       `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_amount"`
	Discount      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"discount"`
	FinalAmount   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"final_amount"`
	ItemsCost     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"items_cost"`
	Profit        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"profit"`
	PaymentStatus PaymentStatus   `gorm:"size:20;not null;default:pending" json:"payment_status"`
	PaymentMethod string          `gorm:"size:50" json:"payment_method"`
	InvoiceNumber string          `gorm:"size:50;not null;uniqueIndex:idx_sales_vendor_invoice" json:"invoice_number"`
	Notes         string          `gorm:"type:text" json:"notes"`
	Date          time.Time       `gorm:"index;not null" json:"date"`
}

// Recompute derives FinalAmount and Profit from the editable amounts.
func (s *Sale) Recompute() {
	s.FinalAmount = s.TotalAmount.Sub(s.Discount)
	s.Profit = s.FinalAmount.Sub(s.ItemsCost)
}

// BeforeSave runs on both create and save, so a stored profit always
// matches its amounts.
func (s *Sale) BeforeSave(tx *gorm.DB) error {
	s.Recompute()
	return nil
}
