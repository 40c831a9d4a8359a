package inventory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/customer"
	"dhuni-backend/internal/database/dbtest"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestStockAndAllocationScenario(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Fairy lights")
	customerID := f.customer(t, "Sita")

	if total, avail := f.quantities(t, itemID); total != 0 || avail != 0 {
		t.Fatalf("new item quantities = %d/%d", total, avail)
	}

	entry, err := f.svc.AddStock(f.ctx, itemID, 10, decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("AddStock() error = %v", err)
	}
	if !entry.TotalCost.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("total cost = %s, want 50", entry.TotalCost)
	}
	if entry.VendorID != f.scope.VendorID || entry.CreatedBy != f.scope.UserID {
		t.Fatalf("entry = %+v", entry)
	}
	if total, avail := f.quantities(t, itemID); total != 10 || avail != 10 {
		t.Fatalf("after stock = %d/%d, want 10/10", total, avail)
	}

	alloc, err := f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, CustomerID: &customerID, Quantity: 4, EventName: "Wedding"})
	if err != nil {
		t.Fatalf("Allocate(4) error = %v", err)
	}
	if alloc.Status() != models.AllocationPending {
		t.Fatalf("status = %s", alloc.Status())
	}
	if _, avail := f.quantities(t, itemID); avail != 6 {
		t.Fatalf("after allocate available = %d, want 6", avail)
	}

	_, err = f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, CustomerID: &customerID, Quantity: 10})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindInsufficientStock {
		t.Fatalf("Allocate(10) error = %v, want insufficient stock", err)
	}
	if ae.Available != 6 {
		t.Fatalf("reported available = %d, want 6", ae.Available)
	}

	returned, err := f.svc.MarkReturned(f.ctx, alloc.ID)
	if err != nil {
		t.Fatalf("MarkReturned() error = %v", err)
	}
	if !returned.IsReturned || returned.ReturnedAt == nil {
		t.Fatalf("returned = %+v", returned)
	}
	if _, avail := f.quantities(t, itemID); avail != 10 {
		t.Fatalf("after return available = %d, want 10", avail)
	}

	undone, err := f.svc.UndoReturn(f.ctx, alloc.ID)
	if err != nil {
		t.Fatalf("UndoReturn() error = %v", err)
	}
	if undone.IsReturned || undone.ReturnedAt != nil {
		t.Fatalf("undone = %+v", undone)
	}
	if _, avail := f.quantities(t, itemID); avail != 6 {
		t.Fatalf("after undo available = %d, want 6", avail)
	}
	f.checkInvariant(t)
}

func TestConcurrentAllocationsNeverOversell(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Chairs")
	customerID := f.customer(t, "Sita")
	if _, err := f.svc.AddStock(f.ctx, itemID, 10, decimal.NewFromInt(1)); err != nil {
		t.Fatalf("AddStock() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, CustomerID: &customerID, Quantity: 6})
		}(i)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.Is(err, apperr.KindInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("succeeded=%d insufficient=%d, want 1 and 1", succeeded, insufficient)
	}
	if _, avail := f.quantities(t, itemID); avail != 4 {
		t.Fatalf("available = %d, want 4", avail)
	}
	f.checkInvariant(t)
}

func TestUndoReturnRevalidatesAvailability(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Tables")
	customerID := f.customer(t, "Sita")
	if _, err := f.svc.AddStock(f.ctx, itemID, 5, decimal.Zero); err != nil {
		t.Fatalf("AddStock() error = %v", err)
	}

	first, err := f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, CustomerID: &customerID, Quantity: 5})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if _, err := f.svc.MarkReturned(f.ctx, first.ID); err != nil {
		t.Fatalf("MarkReturned() error = %v", err)
	}
	if _, err := f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, CustomerID: &customerID, Quantity: 3}); err != nil {
		t.Fatalf("intervening Allocate() error = %v", err)
	}

	if _, err := f.svc.UndoReturn(f.ctx, first.ID); !apperr.Is(err, apperr.KindInsufficientStock) {
		t.Fatalf("UndoReturn() error = %v, want insufficient stock", err)
	}

	// The failed undo leaves the allocation returned and quantities intact.
	var stored models.Allocation
	if err := f.db.WithContext(f.ctx).First(&stored, "id = ?", first.ID).Error; err != nil {
		t.Fatalf("load allocation: %v", err)
	}
	if !stored.IsReturned || stored.ReturnedAt == nil {
		t.Fatalf("allocation after failed undo = %+v", stored)
	}
	if _, avail := f.quantities(t, itemID); avail != 2 {
		t.Fatalf("available = %d, want 2", avail)
	}
	f.checkInvariant(t)
}

func TestAllocationTransitionsAreStrict(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Drapes")
	customerID := f.customer(t, "Sita")
	if _, err := f.svc.AddStock(f.ctx, itemID, 2, decimal.Zero); err != nil {
		t.Fatalf("AddStock() error = %v", err)
	}
	alloc, err := f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, CustomerID: &customerID, Quantity: 2})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	if _, err := f.svc.UndoReturn(f.ctx, alloc.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("UndoReturn(pending) error = %v", err)
	}
	if _, err := f.svc.MarkReturned(f.ctx, alloc.ID); err != nil {
		t.Fatalf("MarkReturned() error = %v", err)
	}
	if _, err := f.svc.MarkReturned(f.ctx, alloc.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("MarkReturned(returned) error = %v", err)
	}
	if _, err := f.svc.MarkReturned(f.ctx, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("MarkReturned(unknown) error = %v", err)
	}
	if total, avail := f.quantities(t, itemID); total != 2 || avail != 2 {
		t.Fatalf("quantities = %d/%d", total, avail)
	}
}

func TestAllocateValidation(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Lamps")
	customerID := f.customer(t, "Sita")

	cases := map[string]NewAllocation{
		"no customer":   {ItemID: itemID, Quantity: 1},
		"zero quantity": {ItemID: itemID, CustomerID: &customerID, Quantity: 0},
		"both customers": {
			ItemID: itemID, CustomerID: &customerID, NewCustomer: &customer.Input{Name: "Ram"}, Quantity: 1,
		},
	}
	for name, in := range cases {
		if _, err := f.svc.Allocate(f.ctx, in); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%s: Allocate() error = %v, want validation", name, err)
		}
	}

	missing := uuid.New()
	if _, err := f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, CustomerID: &missing, Quantity: 1}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("unknown customer error = %v", err)
	}
	if _, err := f.svc.Allocate(f.ctx, NewAllocation{ItemID: uuid.New(), CustomerID: &customerID, Quantity: 1}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("unknown item error = %v", err)
	}
	if _, err := f.svc.AddStock(f.ctx, itemID, 0, decimal.Zero); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("AddStock(0) error = %v", err)
	}
	if _, err := f.svc.AddStock(f.ctx, itemID, 1, decimal.NewFromInt(-1)); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("AddStock(negative cost) error = %v", err)
	}

	viewer := tenant.WithScope(f.ctx, tenant.Scope{VendorID: f.scope.VendorID, UserID: f.scope.UserID, Role: tenant.RoleViewer})
	if _, err := f.svc.AddStock(viewer, itemID, 1, decimal.Zero); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("viewer AddStock() error = %v", err)
	}
}

func TestAllocateWithInlineCustomer(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Stage")
	if _, err := f.svc.AddStock(f.ctx, itemID, 3, decimal.Zero); err != nil {
		t.Fatalf("AddStock() error = %v", err)
	}

	// Rejected allocations do not leave the inline customer behind.
	_, err := f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, NewCustomer: &customer.Input{Name: "Ram"}, Quantity: 5})
	if !apperr.Is(err, apperr.KindInsufficientStock) {
		t.Fatalf("Allocate(5) error = %v", err)
	}
	var count int64
	f.db.WithContext(f.ctx).Model(&models.Customer{}).Count(&count)
	if count != 0 {
		t.Fatalf("customers after rollback = %d", count)
	}

	alloc, err := f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, NewCustomer: &customer.Input{Name: "Ram", Phone: "+1 650 253 0000"}, Quantity: 2})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	var c models.Customer
	if err := f.db.WithContext(f.ctx).First(&c, "id = ?", alloc.CustomerID).Error; err != nil {
		t.Fatalf("load inline customer: %v", err)
	}
	if c.Name != "Ram" || c.Phone != "+16502530000" {
		t.Fatalf("inline customer = %+v", c)
	}
}

func TestReconcilerIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Arch")
	otherCtx, _ := dbtest.NewTenant(t, f.db, "Other", tenant.RoleOwner)

	if _, err := f.svc.AddStock(otherCtx, itemID, 5, decimal.Zero); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("foreign AddStock() error = %v", err)
	}
	if _, err := f.svc.GetItemDetail(otherCtx, itemID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("foreign GetItemDetail() error = %v", err)
	}
	if total, _ := f.quantities(t, itemID); total != 0 {
		t.Fatalf("total = %d after foreign AddStock", total)
	}
}

func TestListAllocationsFilters(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Tent")
	customerID := f.customer(t, "Sita")
	if _, err := f.svc.AddStock(f.ctx, itemID, 10, decimal.Zero); err != nil {
		t.Fatalf("AddStock() error = %v", err)
	}
	yesterday := time.Now().Add(-24 * time.Hour)
	nextWeek := time.Now().Add(7 * 24 * time.Hour)

	overdue, err := f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, CustomerID: &customerID, Quantity: 1, ExpectedReturnDate: &yesterday})
	if err != nil {
		t.Fatalf("Allocate(overdue) error = %v", err)
	}
	if _, err := f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, CustomerID: &customerID, Quantity: 1, ExpectedReturnDate: &nextWeek}); err != nil {
		t.Fatalf("Allocate(future) error = %v", err)
	}
	returned, err := f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, CustomerID: &customerID, Quantity: 1, ExpectedReturnDate: &yesterday})
	if err != nil {
		t.Fatalf("Allocate(returned) error = %v", err)
	}
	if _, err := f.svc.MarkReturned(f.ctx, returned.ID); err != nil {
		t.Fatalf("MarkReturned() error = %v", err)
	}

	counts := map[string]int{FilterAll: 3, FilterPending: 2, FilterReturned: 1, FilterOverdue: 1}
	for status, want := range counts {
		rows, err := f.svc.ListAllocations(f.ctx, AllocationFilter{Status: status})
		if err != nil {
			t.Fatalf("ListAllocations(%s) error = %v", status, err)
		}
		if len(rows) != want {
			t.Fatalf("ListAllocations(%s) = %d rows, want %d", status, len(rows), want)
		}
	}

	rows, _ := f.svc.ListAllocations(f.ctx, AllocationFilter{Status: FilterOverdue})
	if rows[0].ID != overdue.ID || !rows[0].IsOverdue || rows[0].CustomerName != "Sita" || rows[0].ItemName != "Tent" {
		t.Fatalf("overdue row = %+v", rows[0])
	}

	rows, _ = f.svc.ListAllocations(f.ctx, AllocationFilter{Status: FilterReturned})
	if rows[0].IsOverdue || rows[0].Status != models.AllocationReturned {
		t.Fatalf("returned row = %+v", rows[0])
	}

	if _, err := f.svc.ListAllocations(f.ctx, AllocationFilter{Status: "lost"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("unknown filter error = %v", err)
	}
}
