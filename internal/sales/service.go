// Package sales records completed sales. Final amount and profit are always
// derived from the entered amounts.
package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/customer"
	"dhuni-backend/internal/database"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type NewSale struct {
	CustomerID    uuid.UUID
	TotalAmount   decimal.Decimal
	Discount      decimal.Decimal
	ItemsCost     decimal.Decimal
	PaymentStatus models.PaymentStatus
	PaymentMethod string
	InvoiceNumber string
	Notes         string
	Date          time.Time
}

// SalePatch changes only the non-nil fields.
type SalePatch struct {
	TotalAmount   *decimal.Decimal
	Discount      *decimal.Decimal
	ItemsCost     *decimal.Decimal
	PaymentStatus *models.PaymentStatus
	PaymentMethod *string
	Notes         *string
}

type Filter struct {
	PaymentStatus models.PaymentStatus
	CustomerID    *uuid.UUID
	From, To      *time.Time
}

type SaleView struct {
	models.Sale
	CustomerName string `json:"customer_name"`
}

type Service struct {
	db        *gorm.DB
	customers *customer.Service
	now       func() time.Time
}

func NewService(db *gorm.DB, customers *customer.Service) *Service {
	return &Service{db: db, customers: customers, now: time.Now}
}

func validateAmounts(s *models.Sale) error {
	switch {
	case s.TotalAmount.IsNegative():
		return apperr.Validation("total amount cannot be negative")
	case s.Discount.IsNegative():
		return apperr.Validation("discount cannot be negative")
	case s.ItemsCost.IsNegative():
		return apperr.Validation("items cost cannot be negative")
	case s.Discount.GreaterThan(s.TotalAmount):
		return apperr.Validation("discount cannot exceed the total amount")
	case !s.PaymentStatus.Valid():
		return apperr.Validationf("payment status must be one of: %s, %s, %s", models.PaymentPaid, models.PaymentPending, models.PaymentPartial)
	}
	return nil
}

// invoiceNumber is INV-YYYYMMDD-XXXXXX.
func invoiceNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("INV-%s-%s", at.UTC().Format("20060102"), suffix)
}

func (s *Service) Create(ctx context.Context, in NewSale) (*models.Sale, error) {
	if _, err := tenant.RequireWriter(ctx); err != nil {
		return nil, err
	}
	sale := models.Sale{
		CustomerID:    in.CustomerID,
		TotalAmount:   in.TotalAmount,
		Discount:      in.Discount,
		ItemsCost:     in.ItemsCost,
		PaymentStatus: in.PaymentStatus,
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		InvoiceNumber: strings.TrimSpace(in.InvoiceNumber),
		Notes:         strings.TrimSpace(in.Notes),
		Date:          in.Date.UTC(),
	}
	if sale.PaymentStatus == "" {
		sale.PaymentStatus = models.PaymentPending
	}
	if sale.Date.IsZero() {
		sale.Date = s.now().UTC()
	}
	if in.CustomerID == uuid.Nil {
		return nil, apperr.Validation("customer is required")
	}
	if err := validateAmounts(&sale); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.customers.Exists(ctx, tx, in.CustomerID); err != nil {
			return err
		}
		if sale.InvoiceNumber == "" {
			sale.InvoiceNumber = invoiceNumber(sale.Date)
		} else {
			var count int64
			if err := tx.Model(&models.Sale{}).Where("invoice_number = ?", sale.InvoiceNumber).Count(&count).Error; err != nil {
				return fmt.Errorf("check invoice number: %w", err)
			}
			if count > 0 {
				return apperr.Conflict(fmt.Sprintf("invoice number %s is already used", sale.InvoiceNumber))
			}
		}
		if err := tx.Create(&sale).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return apperr.Conflict(fmt.Sprintf("invoice number %s is already used", sale.InvoiceNumber))
			}
			return fmt.Errorf("create sale: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]SaleView, error) {
	if _, err := tenant.Require(ctx); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Preload("Customer").Order("date DESC, created_at DESC")
	if filter.PaymentStatus != "" {
		if !filter.PaymentStatus.Valid() {
			return nil, apperr.Validationf("unknown payment status %q", filter.PaymentStatus)
		}
		q = q.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.From != nil {
		q = q.Where("date >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("date < ?", filter.To.UTC())
	}

	var rows []models.Sale
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	out := make([]SaleView, 0, len(rows))
	for _, r := range rows {
		out = append(out, view(r))
	}
	return out, nil
}

func view(s models.Sale) SaleView {
	v := SaleView{Sale: s}
	if s.Customer != nil {
		v.CustomerName = s.Customer.Name
	}
	return v
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*SaleView, error) {
	if _, err := tenant.Require(ctx); err != nil {
		return nil, err
	}
	var sale models.Sale
	err := s.db.WithContext(ctx).Preload("Customer").First(&sale, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("sale")
	}
	if err != nil {
		return nil, fmt.Errorf("load sale: %w", err)
	}
	v := view(sale)
	return &v, nil
}

// Update applies the patch and saves the whole row, so the save hook
// recomputes final amount and profit.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch SalePatch) (*SaleView, error) {
	if _, err := tenant.RequireWriter(ctx); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sale models.Sale
		err := tx.First(&sale, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("sale")
		}
		if err != nil {
			return fmt.Errorf("load sale: %w", err)
		}

		if patch.TotalAmount != nil {
			sale.TotalAmount = *patch.TotalAmount
		}
		if patch.Discount != nil {
			sale.Discount = *patch.Discount
		}
		if patch.ItemsCost != nil {
			sale.ItemsCost = *patch.ItemsCost
		}
		if patch.PaymentStatus != nil {
			sale.PaymentStatus = *patch.PaymentStatus
		}
		if patch.PaymentMethod != nil {
			sale.PaymentMethod = strings.TrimSpace(*patch.PaymentMethod)
		}
		if patch.Notes != nil {
			sale.Notes = strings.TrimSpace(*patch.Notes)
		}
		if err := validateAmounts(&sale); err != nil {
			return err
		}
		if err := tx.Save(&sale).Error; err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
