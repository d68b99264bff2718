// Package tenant provides multi-tenant database scoping for GORM.
//
// Every ledger table carries a tenant_id column, and every query must be
// constrained by it. The tenant identity is established once, by the JWT
// middleware, and flows through the request context; this package turns
// that identity into WHERE tenant_id = ? conditions and refuses to run
// queries when no tenant is present.
//
// Usage:
//
//	db := tenant.NewTenantDB(gormDB)
//	scopedDB := db.WithContext(ctx) // applies the tenant filter from context
//	scopedDB.Find(&lots)            // WHERE tenant_id = 'xxx' is auto-added
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

// ErrTenantRequired is returned when a query runs without a tenant identity
var ErrTenantRequired = errors.New("tenant_id is required but not found in context")

// ErrInvalidTenantID is returned when the tenant identity is not a valid UUID
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// Scope applies tenant filtering to GORM queries
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// ScopeString applies tenant filtering using a string tenant ID
func ScopeString(tenantID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// TenantDB wraps a GORM DB with mandatory tenant scoping
type TenantDB struct {
	db *gorm.DB
}

// NewTenantDB creates a new TenantDB
func NewTenantDB(db *gorm.DB) *TenantDB {
	return &TenantDB{db: db}
}

// WithContext returns a GORM DB scoped to the tenant carried by the context.
// The tenant identity is set by the JWT middleware; there is no header or
// query-parameter fallback. If the context carries no tenant, the returned
// DB errors on any operation.
func (t *TenantDB) WithContext(ctx context.Context) *gorm.DB {
	tenantID := logger.GetTenantID(ctx)

	if tenantID == "" {
		db := t.db.WithContext(ctx)
		_ = db.AddError(ErrTenantRequired)
		return db
	}

	if _, err := uuid.Parse(tenantID); err != nil {
		db := t.db.WithContext(ctx)
		_ = db.AddError(ErrInvalidTenantID)
		return db
	}

	return t.db.WithContext(ctx).Scopes(ScopeString(tenantID))
}

// WithTenant returns a GORM DB scoped to an explicit tenant ID.
// Use this when the tenant identity has already been resolved.
func (t *TenantDB) WithTenant(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	if tenantID == uuid.Nil {
		db := t.db.WithContext(ctx)
		_ = db.AddError(ErrTenantRequired)
		return db
	}
	return t.db.WithContext(ctx).Scopes(Scope(tenantID))
}

// Transaction executes a function within a database transaction scoped to
// the tenant carried by the context.
func (t *TenantDB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tenantID := logger.GetTenantID(ctx)
	if tenantID == "" {
		return ErrTenantRequired
	}
	if _, err := uuid.Parse(tenantID); err != nil {
		return ErrInvalidTenantID
	}

	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx.Scopes(ScopeString(tenantID)))
	})
}

// Unscoped returns the underlying DB without any tenant scoping.
// This should only be used for system-level operations or migrations.
func (t *TenantDB) Unscoped() *gorm.DB {
	return t.db
}
