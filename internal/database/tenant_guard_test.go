package database_test

import (
	"context"
	"errors"
	"testing"

	"dhuni-backend/internal/database"
	"dhuni-backend/internal/database/dbtest"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/tenant"
)

func TestTenantGuardScopesReads(t *testing.T) {
	db := dbtest.Open(t)
	ctxA, _ := dbtest.NewTenant(t, db, "Vendor A", tenant.RoleOwner)
	ctxB, _ := dbtest.NewTenant(t, db, "Vendor B", tenant.RoleOwner)

	if err := db.WithContext(ctxA).Create(&models.Customer{Name: "Asha"}).Error; err != nil {
		t.Fatalf("create A customer: %v", err)
	}
	if err := db.WithContext(ctxB).Create(&models.Customer{Name: "Bikash"}).Error; err != nil {
		t.Fatalf("create B customer: %v", err)
	}

	var got []models.Customer
	if err := db.WithContext(ctxA).Find(&got).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Asha" {
		t.Fatalf("vendor A sees %+v, want only Asha", got)
	}
}

func TestTenantGuardFillsVendorOnCreate(t *testing.T) {
	db := dbtest.Open(t)
	ctx, scope := dbtest.NewTenant(t, db, "Vendor", tenant.RoleOwner)

	c := models.Customer{Name: "Asha"}
	if err := db.WithContext(ctx).Create(&c).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.VendorID != scope.VendorID {
		t.Fatalf("VendorID = %s, want %s", c.VendorID, scope.VendorID)
	}
}

func TestTenantGuardRejectsForeignCreate(t *testing.T) {
	db := dbtest.Open(t)
	ctxA, _ := dbtest.NewTenant(t, db, "Vendor A", tenant.RoleOwner)
	_, scopeB := dbtest.NewTenant(t, db, "Vendor B", tenant.RoleOwner)

	err := db.WithContext(ctxA).Create(&models.Customer{VendorID: scopeB.VendorID, Name: "Sneaky"}).Error
	if !errors.Is(err, database.ErrTenantMismatch) {
		t.Fatalf("create for other vendor = %v, want ErrTenantMismatch", err)
	}
}

func TestTenantGuardRequiresScope(t *testing.T) {
	db := dbtest.Open(t)

	var got []models.Item
	err := db.WithContext(context.Background()).Find(&got).Error
	if !errors.Is(err, database.ErrMissingTenant) {
		t.Fatalf("unscoped find = %v, want ErrMissingTenant", err)
	}
}

func TestTenantGuardScopesUpdates(t *testing.T) {
	db := dbtest.Open(t)
	ctxA, _ := dbtest.NewTenant(t, db, "Vendor A", tenant.RoleOwner)
	ctxB, _ := dbtest.NewTenant(t, db, "Vendor B", tenant.RoleOwner)

	c := models.Customer{Name: "Asha"}
	if err := db.WithContext(ctxA).Create(&c).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	res := db.WithContext(ctxB).Model(&models.Customer{}).Where("id = ?", c.ID).Update("name", "Hijacked")
	if res.Error != nil {
		t.Fatalf("update: %v", res.Error)
	}
	if res.RowsAffected != 0 {
		t.Fatalf("foreign update touched %d rows", res.RowsAffected)
	}

	var reloaded models.Customer
	if err := db.WithContext(ctxA).First(&reloaded, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Name != "Asha" {
		t.Fatalf("name = %q, want Asha", reloaded.Name)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	db := dbtest.Open(t)
	skip := tenant.WithoutScope(context.Background())

	first := models.Credential{Email: "asha@example.com", PasswordHash: "x", FullName: "Asha"}
	if err := db.WithContext(skip).Create(&first).Error; err != nil {
		t.Fatalf("create credential: %v", err)
	}
	second := models.Credential{Email: "asha@example.com", PasswordHash: "y", FullName: "Other"}
	err := db.WithContext(skip).Create(&second).Error
	if !database.IsDuplicateKey(err) {
		t.Fatalf("duplicate email error = %v, want duplicate key", err)
	}
	if database.IsDuplicateKey(errors.New("boom")) {
		t.Fatal("plain error reported as duplicate key")
	}
}
