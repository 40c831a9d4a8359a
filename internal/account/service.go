// Package account links authenticated principals to vendors.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/tenant"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileAttrs are the signup fields used to provision a vendor.
type ProfileAttrs struct {
	FullName     string
	BusinessName string
	Email        string
}

// Provisioner creates the Vendor and its owner User after a signup. It
// runs inside the signup transaction so a failure leaves nothing behind.
type Provisioner interface {
	Provision(ctx context.Context, tx *gorm.DB, principalID uuid.UUID, attrs ProfileAttrs) (tenant.Scope, error)
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Provision(ctx context.Context, tx *gorm.DB, principalID uuid.UUID, attrs ProfileAttrs) (tenant.Scope, error) {
	name := strings.TrimSpace(attrs.BusinessName)
	if name == "" {
		return tenant.Scope{}, apperr.Validation("business name is required")
	}

	skip := tenant.WithoutScope(ctx)
	vendor := models.Vendor{Name: name, Email: attrs.Email}
	if err := tx.WithContext(skip).Create(&vendor).Error; err != nil {
		return tenant.Scope{}, fmt.Errorf("create vendor: %w", err)
	}
	user := models.User{ID: principalID, VendorID: vendor.ID, Role: tenant.RoleOwner}
	if err := tx.WithContext(skip).Create(&user).Error; err != nil {
		return tenant.Scope{}, fmt.Errorf("create owner user: %w", err)
	}
	return tenant.Scope{VendorID: vendor.ID, UserID: user.ID, Role: user.Role}, nil
}

// ResolveScope maps a principal to its tenant scope.
func (s *Service) ResolveScope(ctx context.Context, principalID uuid.UUID) (tenant.Scope, error) {
	var user models.User
	err := s.db.WithContext(tenant.WithoutScope(ctx)).First(&user, "id = ?", principalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tenant.Scope{}, apperr.NotFound("vendor link")
	}
	if err != nil {
		return tenant.Scope{}, fmt.Errorf("load user: %w", err)
	}
	return tenant.Scope{VendorID: user.VendorID, UserID: user.ID, Role: user.Role}, nil
}

func (s *Service) GetVendor(ctx context.Context) (*models.Vendor, error) {
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	var vendor models.Vendor
	err = s.db.WithContext(ctx).First(&vendor, "id = ?", scope.VendorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("vendor")
	}
	if err != nil {
		return nil, fmt.Errorf("load vendor: %w", err)
	}
	return &vendor, nil
}

type VendorPatch struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

// UpdateVendor edits the acting tenant's profile. Owners only.
func (s *Service) UpdateVendor(ctx context.Context, patch VendorPatch) (*models.Vendor, error) {
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	if scope.Role != tenant.RoleOwner {
		return nil, apperr.Forbidden("only the owner can edit the business profile")
	}
	vendor, err := s.GetVendor(ctx)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation("business name cannot be empty")
		}
		vendor.Name = name
	}
	if patch.Email != nil {
		vendor.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.Phone != nil {
		vendor.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Address != nil {
		vendor.Address = strings.TrimSpace(*patch.Address)
	}
	if err := s.db.WithContext(ctx).Save(vendor).Error; err != nil {
		return nil, fmt.Errorf("save vendor: %w", err)
	}
	return vendor, nil
}
