// Package customer keeps the vendor's contact directory.
package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/tenant"
	"dhuni-backend/internal/validation"

	"github.com/google/uuid"
	"github.com/ttacon/libphonenumber"
	"gorm.io/gorm"
)

// Input is used for create and update. Update replaces every field.
type Input struct {
	Name    string `json:"name" validate:"required,max=150"`
	Phone   string `json:"phone" validate:"max=30"`
	Email   string `json:"email" validate:"omitempty,email,max=150"`
	Address string `json:"address" validate:"max=255"`
	Notes   string `json:"notes"`
}

type Service struct {
	db     *gorm.DB
	region string
}

// NewService uses region to parse phone numbers written without a
// country code.
func NewService(db *gorm.DB, region string) *Service {
	return &Service{db: db, region: strings.ToUpper(region)}
}

// NormalizePhone returns the E.164 form of phone, or "" for an empty input.
func NormalizePhone(phone, region string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}
	p, err := libphonenumber.Parse(phone, region)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return "", apperr.Validationf("phone %q is not a valid number", phone)
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

func (s *Service) apply(c *models.Customer, in Input) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := validation.Struct(in); err != nil {
		return err
	}
	phone, err := NormalizePhone(in.Phone, s.region)
	if err != nil {
		return err
	}
	c.Name = in.Name
	c.Phone = phone
	c.Email = in.Email
	c.Address = strings.TrimSpace(in.Address)
	c.Notes = strings.TrimSpace(in.Notes)
	return nil
}

func (s *Service) Create(ctx context.Context, in Input) (*models.Customer, error) {
	return s.CreateTx(ctx, s.db, in)
}

// CreateTx creates the customer on tx so that allocation can add one inline
// and roll it back with the allocation.
func (s *Service) CreateTx(ctx context.Context, tx *gorm.DB, in Input) (*models.Customer, error) {
	scope, err := tenant.RequireWriter(ctx)
	if err != nil {
		return nil, err
	}
	c := models.Customer{VendorID: scope.VendorID}
	if err := s.apply(&c, in); err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return &c, nil
}

func (s *Service) List(ctx context.Context, search string) ([]models.Customer, error) {
	if _, err := tenant.Require(ctx); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Order("name ASC")
	if search = strings.TrimSpace(strings.ToLower(search)); search != "" {
		like := "%" + search + "%"
		q = q.Where("LOWER(name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	customers := []models.Customer{}
	if err := q.Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if _, err := tenant.Require(ctx); err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, id)
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	err := tx.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("customer")
	}
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	return &c, nil
}

// Exists is used by ledgers that reference a customer inside their own
// transaction.
func (s *Service) Exists(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	_, err := s.load(ctx, tx, id)
	return err
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*models.Customer, error) {
	if _, err := tenant.RequireWriter(ctx); err != nil {
		return nil, err
	}
	c, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(c, in); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(c).Select("name", "phone", "email", "address", "notes").Updates(c).Error
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return c, nil
}

// Delete refuses to remove a customer that allocations or sales still
// reference.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := tenant.RequireWriter(ctx); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.load(ctx, tx, id); err != nil {
			return err
		}
		var allocations, sales int64
		if err := tx.Model(&models.Allocation{}).Where("customer_id = ?", id).Count(&allocations).Error; err != nil {
			return fmt.Errorf("count allocations: %w", err)
		}
		if err := tx.Model(&models.Sale{}).Where("customer_id = ?", id).Count(&sales).Error; err != nil {
			return fmt.Errorf("count sales: %w", err)
		}
		if allocations > 0 || sales > 0 {
			return apperr.Conflict(fmt.Sprintf("customer has %d allocations and %d sales and cannot be deleted", allocations, sales))
		}
		if err := tx.Delete(&models.Customer{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete customer: %w", err)
		}
		return nil
	})
}
