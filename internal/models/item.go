package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a rentable unit type. TotalQuantity and AvailableQuantity are
// derived from the stock and allocation ledgers and only change through
// the reconciler.
type Item struct {
	Base
	VendorID          uuid.UUID       `gorm:"type:uuid;index;not null" json:"vendor_id"`
	Name              string          `gorm:"size:200;not null" json:"name"`
	Category          string          `gorm:"size:100;not null;index" json:"category"`
	Description       string          `gorm:"type:text" json:"description"`
	Unit              string          `gorm:"size:30" json:"unit"`
	CostPrice         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"cost_price"`
	SellingPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"selling_price"`
	TotalQuantity     int             `gorm:"not null;default:0;check:chk_items_total_quantity,total_quantity >= 0" json:"total_quantity"`
	AvailableQuantity int             `gorm:"not null;default:0;check:chk_items_available_quantity,available_quantity >= 0 AND available_quantity <= total_quantity" json:"available_quantity"`

	Images       []ItemImage  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	StockEntries []StockEntry `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Allocations  []Allocation `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Allocated is the number of units currently out with customers.
func (i Item) Allocated() int {
	return i.TotalQuantity - i.AvailableQuantity
}
