package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/customer"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NewAllocation lends units to an existing customer (CustomerID) or to one
// created inline (NewCustomer). Exactly one must be set.
type NewAllocation struct {
	ItemID             uuid.UUID
	CustomerID         *uuid.UUID
	NewCustomer        *customer.Input
	Quantity           int
	EventName          string
	EventDate          *time.Time
	ExpectedReturnDate *time.Time
}

// AddStock appends a stock entry and raises total and available by qty.
func (s *Service) AddStock(ctx context.Context, itemID uuid.UUID, qty int, costPerUnit decimal.Decimal) (*models.StockEntry, error) {
	scope, err := tenant.RequireWriter(ctx)
	if err != nil {
		return nil, err
	}
	var entry *models.StockEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.addStock(tx, scope, itemID, qty, costPerUnit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) addStock(tx *gorm.DB, scope tenant.Scope, itemID uuid.UUID, qty int, costPerUnit decimal.Decimal) (*models.StockEntry, error) {
	if qty <= 0 {
		return nil, apperr.Validation("quantity must be greater than 0")
	}
	if costPerUnit.IsNegative() {
		return nil, apperr.Validation("cost per unit cannot be negative")
	}

	res := tx.Model(&models.Item{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"total_quantity":     gorm.Expr("total_quantity + ?", qty),
			"available_quantity": gorm.Expr("available_quantity + ?", qty),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("increment item stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("item")
	}

	entry := models.StockEntry{
		ItemID:        itemID,
		QuantityAdded: qty,
		CostPerUnit:   costPerUnit,
		CreatedBy:     scope.UserID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("create stock entry: %w", err)
	}
	return &entry, nil
}

// takeUnits is the single conditional decrement every allocation path uses.
// It never leaves available_quantity negative.
func takeUnits(tx *gorm.DB, itemID uuid.UUID, qty int) error {
	res := tx.Model(&models.Item{}).
		Where("id = ? AND available_quantity >= ?", itemID, qty).
		Update("available_quantity", gorm.Expr("available_quantity - ?", qty))
	if res.Error != nil {
		return fmt.Errorf("decrement available quantity: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var item models.Item
	err := tx.Select("id", "available_quantity").First(&item, "id = ?", itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("item")
	}
	if err != nil {
		return fmt.Errorf("load item: %w", err)
	}
	return apperr.InsufficientStock(item.AvailableQuantity, qty)
}

func giveBackUnits(tx *gorm.DB, itemID uuid.UUID, qty int) error {
	res := tx.Model(&models.Item{}).
		Where("id = ? AND available_quantity + ? <= total_quantity", itemID, qty).
		Update("available_quantity", gorm.Expr("available_quantity + ?", qty))
	if res.Error != nil {
		return fmt.Errorf("increment available quantity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("returned quantity exceeds the item's total quantity")
	}
	return nil
}

// Allocate creates a pending allocation and takes its units from the item.
// An inline customer is created in the same transaction.
func (s *Service) Allocate(ctx context.Context, in NewAllocation) (*models.Allocation, error) {
	scope, err := tenant.RequireWriter(ctx)
	if err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be greater than 0")
	}
	if in.CustomerID == nil && in.NewCustomer == nil {
		return nil, apperr.Validation("select a customer or add a new one")
	}
	if in.CustomerID != nil && in.NewCustomer != nil {
		return nil, apperr.Validation("choose either an existing customer or a new one, not both")
	}
	if in.EventDate != nil && in.ExpectedReturnDate != nil && in.ExpectedReturnDate.Before(*in.EventDate) {
		return nil, apperr.Validation("expected return date cannot be before the event date")
	}

	var alloc models.Allocation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customerID uuid.UUID
		if in.NewCustomer != nil {
			c, err := s.customers.CreateTx(ctx, tx, *in.NewCustomer)
			if err != nil {
				return err
			}
			customerID = c.ID
		} else {
			if err := s.customers.Exists(ctx, tx, *in.CustomerID); err != nil {
				return err
			}
			customerID = *in.CustomerID
		}

		if err := takeUnits(tx, in.ItemID, in.Quantity); err != nil {
			return err
		}

		alloc = models.Allocation{
			ItemID:             in.ItemID,
			CustomerID:         customerID,
			QuantityUsed:       in.Quantity,
			EventName:          strings.TrimSpace(in.EventName),
			EventDate:          utc(in.EventDate),
			ExpectedReturnDate: utc(in.ExpectedReturnDate),
			CreatedBy:          scope.UserID,
		}
		if err := tx.Create(&alloc).Error; err != nil {
			return fmt.Errorf("create allocation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &alloc, nil
}

// MarkReturned moves a pending allocation to returned and gives its units
// back to the item.
func (s *Service) MarkReturned(ctx context.Context, allocationID uuid.UUID) (*models.Allocation, error) {
	if _, err := tenant.RequireWriter(ctx); err != nil {
		return nil, err
	}
	var alloc models.Allocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadAllocation(tx, allocationID, &alloc); err != nil {
			return err
		}
		if alloc.IsReturned {
			return apperr.Conflict("allocation is already returned")
		}

		now := s.now().UTC()
		if err := flipReturned(tx, alloc.ID, false, map[string]any{"is_returned": true, "returned_at": now}); err != nil {
			return err
		}
		if err := giveBackUnits(tx, alloc.ItemID, alloc.QuantityUsed); err != nil {
			return err
		}
		alloc.IsReturned = true
		alloc.ReturnedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &alloc, nil
}

// UndoReturn moves a returned allocation back to pending. The units are
// taken again, so it fails when another allocation used them meanwhile.
func (s *Service) UndoReturn(ctx context.Context, allocationID uuid.UUID) (*models.Allocation, error) {
	if _, err := tenant.RequireWriter(ctx); err != nil {
		return nil, err
	}
	var alloc models.Allocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadAllocation(tx, allocationID, &alloc); err != nil {
			return err
		}
		if !alloc.IsReturned {
			return apperr.Conflict("allocation is not returned")
		}

		if err := flipReturned(tx, alloc.ID, true, map[string]any{"is_returned": false, "returned_at": nil}); err != nil {
			return err
		}
		if err := takeUnits(tx, alloc.ItemID, alloc.QuantityUsed); err != nil {
			return err
		}
		alloc.IsReturned = false
		alloc.ReturnedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &alloc, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func loadAllocation(tx *gorm.DB, id uuid.UUID, alloc *models.Allocation) error {
	err := tx.First(alloc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("allocation")
	}
	if err != nil {
		return fmt.Errorf("load allocation: %w", err)
	}
	return nil
}

// flipReturned updates the allocation only if it is still in the state the
// caller read.
func flipReturned(tx *gorm.DB, id uuid.UUID, from bool, values map[string]any) error {
	res := tx.Model(&models.Allocation{}).
		Where("id = ? AND is_returned = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update allocation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("allocation was changed by another request")
	}
	return nil
}
