// Package dashboard serves the overview page: counts and simple sums over
// the vendor's ledgers.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"dhuni-backend/internal/models"
	"dhuni-backend/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const chartMonths = 6

type MonthPoint struct {
	Label   string          `json:"label"` // YYYY-MM
	Revenue decimal.Decimal `json:"revenue"`
	Profit  decimal.Decimal `json:"profit"`
	Sales   int             `json:"sales"`
}

type Overview struct {
	Items              int64           `json:"items"`
	TotalUnits         int64           `json:"total_units"`
	AvailableUnits     int64           `json:"available_units"`
	Customers          int64           `json:"customers"`
	Sales              int64           `json:"sales"`
	Allocations        int64           `json:"allocations"`
	PendingAllocations int64           `json:"pending_allocations"`
	OverdueAllocations int64           `json:"overdue_allocations"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	TotalProfit        decimal.Decimal `json:"total_profit"`
	Months             []MonthPoint    `json:"months"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	if _, err := tenant.Require(ctx); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	now := s.now().UTC()
	out := &Overview{}

	counts := []struct {
		dst   *int64
		model any
		where []any
	}{
		{&out.Items, &models.Item{}, nil},
		{&out.Customers, &models.Customer{}, nil},
		{&out.Sales, &models.Sale{}, nil},
		{&out.Allocations, &models.Allocation{}, nil},
		{&out.PendingAllocations, &models.Allocation{}, []any{"is_returned = ?", false}},
		{&out.OverdueAllocations, &models.Allocation{}, []any{
			"is_returned = ? AND expected_return_date IS NOT NULL AND expected_return_date < ?", false, now,
		}},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if len(c.where) > 0 {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("count %T: %w", c.model, err)
		}
	}

	var units struct {
		Total     int64
		Available int64
	}
	if err := db.Model(&models.Item{}).
		Select("COALESCE(SUM(total_quantity), 0) AS total, COALESCE(SUM(available_quantity), 0) AS available").
		Scan(&units).Error; err != nil {
		return nil, fmt.Errorf("sum item units: %w", err)
	}
	out.TotalUnits, out.AvailableUnits = units.Total, units.Available

	// Money is summed in decimal rather than by the database so the result
	// does not depend on the driver's numeric type.
	var sales []models.Sale
	if err := db.Select("final_amount", "profit", "date").Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	out.TotalRevenue, out.TotalProfit = decimal.Zero, decimal.Zero
	out.Months = monthWindow(now)
	index := make(map[string]int, len(out.Months))
	for i, m := range out.Months {
		index[m.Label] = i
	}
	for _, sale := range sales {
		out.TotalRevenue = out.TotalRevenue.Add(sale.FinalAmount)
		out.TotalProfit = out.TotalProfit.Add(sale.Profit)
		if i, ok := index[sale.Date.UTC().Format("2006-01")]; ok {
			p := &out.Months[i]
			p.Revenue = p.Revenue.Add(sale.FinalAmount)
			p.Profit = p.Profit.Add(sale.Profit)
			p.Sales++
		}
	}
	return out, nil
}

// monthWindow returns the last chartMonths months, oldest first.
func monthWindow(now time.Time) []MonthPoint {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	points := make([]MonthPoint, chartMonths)
	for i := range points {
		m := first.AddDate(0, i-(chartMonths-1), 0)
		points[i] = MonthPoint{Label: m.Format("2006-01"), Revenue: decimal.Zero, Profit: decimal.Zero}
	}
	return points
}

// GET /api/dashboard
func OverviewHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ov, err := svc.Overview(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(ov)
	}
}
