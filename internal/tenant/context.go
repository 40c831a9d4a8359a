// Package tenant carries the acting vendor through context.Context so the
// store can scope every statement to it.
package tenant

import (
	"context"

	"dhuni-backend/internal/apperr"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleStaff  Role = "staff"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleStaff, RoleViewer:
		return true
	}
	return false
}

// CanWrite reports whether the role may mutate tenant data.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleStaff
}

// Scope is the authenticated capability every store operation runs under.
type Scope struct {
	VendorID uuid.UUID
	UserID   uuid.UUID
	Role     Role
}

type contextKey string

const (
	scopeKey     contextKey = "TenantScope"
	skipScopeKey contextKey = "SkipTenantScope"
)

func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey).(Scope)
	if !ok || s.VendorID == uuid.Nil {
		return Scope{}, false
	}
	return s, true
}

// Require returns the scope or a NotAuthenticated error.
func Require(ctx context.Context) (Scope, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return Scope{}, apperr.NotAuthenticated()
	}
	return s, nil
}

// RequireWriter is Require plus a role check for mutating operations.
func RequireWriter(ctx context.Context) (Scope, error) {
	s, err := Require(ctx)
	if err != nil {
		return Scope{}, err
	}
	if !s.Role.CanWrite() {
		return Scope{}, apperr.Forbidden("your role cannot modify data")
	}
	return s, nil
}

// WithoutScope disables tenant scoping. Only authentication lookups and
// signup provisioning use it.
func WithoutScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipScopeKey, true)
}

func ScopeSkipped(ctx context.Context) bool {
	v, ok := ctx.Value(skipScopeKey).(bool)
	return ok && v
}
