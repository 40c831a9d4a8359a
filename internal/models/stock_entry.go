package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockEntry records units added to an item. Rows are never updated.
type StockEntry struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	VendorID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"vendor_id"`
	ItemID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"item_id"`
	QuantityAdded int             `gorm:"not null;check:chk_stock_entries_quantity_added,quantity_added > 0" json:"quantity_added"`
	CostPerUnit   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"cost_per_unit"`
	TotalCost     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_cost"`
	CreatedBy     uuid.UUID       `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

func (e *StockEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.TotalCost = e.CostPerUnit.Mul(decimal.NewFromInt(int64(e.QuantityAdded)))
	return nil
}
