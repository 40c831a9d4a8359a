package inventory

import (
	"context"
	"fmt"
	"time"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/tenant"

	"github.com/google/uuid"
)

const (
	FilterAll      = "all"
	FilterPending  = "pending"
	FilterReturned = "returned"
	FilterOverdue  = "overdue"
)

type AllocationFilter struct {
	// Status is one of all, pending, returned or overdue. Empty means all.
	Status string
	ItemID *uuid.UUID
}

// ListAllocations returns allocations newest first with item and customer
// names resolved.
func (s *Service) ListAllocations(ctx context.Context, filter AllocationFilter) ([]AllocationView, error) {
	if _, err := tenant.Require(ctx); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	q := s.db.WithContext(ctx).
		Preload("Item").
		Preload("Customer").
		Order("created_at DESC")
	switch filter.Status {
	case "", FilterAll:
	case FilterPending:
		q = q.Where("is_returned = ?", false)
	case FilterReturned:
		q = q.Where("is_returned = ?", true)
	case FilterOverdue:
		q = q.Where("is_returned = ? AND expected_return_date IS NOT NULL AND expected_return_date < ?", false, now)
	default:
		return nil, apperr.Validationf("unknown status filter %q", filter.Status)
	}
	if filter.ItemID != nil {
		q = q.Where("item_id = ?", *filter.ItemID)
	}

	var rows []models.Allocation
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	out := make([]AllocationView, 0, len(rows))
	for _, a := range rows {
		out = append(out, allocationView(a, now))
	}
	return out, nil
}

func allocationView(a models.Allocation, now time.Time) AllocationView {
	v := AllocationView{
		ID:                 a.ID,
		ItemID:             a.ItemID,
		CustomerID:         a.CustomerID,
		QuantityUsed:       a.QuantityUsed,
		EventName:          a.EventName,
		EventDate:          a.EventDate,
		ExpectedReturnDate: a.ExpectedReturnDate,
		Status:             a.Status(),
		ReturnedAt:         a.ReturnedAt,
		IsOverdue:          a.IsOverdue(now),
		CreatedAt:          a.CreatedAt,
	}
	if a.Item != nil {
		v.ItemName = a.Item.Name
	}
	if a.Customer != nil {
		v.CustomerName = a.Customer.Name
	}
	return v
}
