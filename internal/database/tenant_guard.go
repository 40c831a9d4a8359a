package database

import (
	"context"
	"errors"
	"reflect"

	"dhuni-backend/internal/tenant"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const tenantColumn = "vendor_id"

var (
	ErrMissingTenant  = errors.New("tenant scope missing for tenant-owned table")
	ErrTenantMismatch = errors.New("row vendor_id does not match tenant scope")
)

// TenantGuardPlugin scopes every query, update and delete on a model with a
// vendor_id column to the context's tenant, and rejects creates for another
// tenant. Raw SQL is not covered.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("tenant_guard:create", tenantGuardCreateCallback); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	return nil
}

func tenantField(db *gorm.DB) *schema.Field {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return nil
	}
	return db.Statement.Schema.LookUpField(tenantColumn)
}

func tenantGuardCallback(db *gorm.DB) {
	if tenantField(db) == nil {
		return
	}
	ctx := statementContext(db)
	if tenant.ScopeSkipped(ctx) {
		return
	}
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		_ = db.AddError(ErrMissingTenant)
		return
	}

	// Always added, even when the caller filtered on vendor_id itself, so an
	// explicit filter can never widen the scope.
	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: tenantColumn},
				Value:  scope.VendorID,
			},
		},
	})
}

func tenantGuardCreateCallback(db *gorm.DB) {
	field := tenantField(db)
	if field == nil {
		return
	}
	ctx := statementContext(db)
	if tenant.ScopeSkipped(ctx) {
		return
	}
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		_ = db.AddError(ErrMissingTenant)
		return
	}

	check := func(rv reflect.Value) {
		v, zero := field.ValueOf(ctx, rv)
		if zero {
			if err := field.Set(ctx, rv, scope.VendorID); err != nil {
				_ = db.AddError(err)
			}
			return
		}
		if id, ok := v.(uuid.UUID); !ok || id != scope.VendorID {
			_ = db.AddError(ErrTenantMismatch)
		}
	}

	rv := reflect.Indirect(db.Statement.ReflectValue)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			check(reflect.Indirect(rv.Index(i)))
		}
	case reflect.Struct:
		check(rv)
	}
}

func statementContext(db *gorm.DB) context.Context {
	if db.Statement.Context != nil {
		return db.Statement.Context
	}
	return context.Background()
}

func skipCtx() context.Context {
	return tenant.WithoutScope(context.Background())
}
