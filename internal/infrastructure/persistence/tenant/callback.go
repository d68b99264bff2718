package tenant

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GuardCallback registers GORM hooks that reject queries, updates and
// deletes against tenant-owned tables when no tenant_id condition is
// present. Repositories always filter by tenant explicitly; the guard is
// a safety net that turns an accidental unscoped query into an error
// instead of a cross-tenant leak.
type GuardCallback struct {
	tenantColumn string
	tables       map[string]struct{}
}

// NewGuardCallback creates a guard for the given tenant-owned table names
func NewGuardCallback(tables ...string) *GuardCallback {
	set := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		set[t] = struct{}{}
	}
	return &GuardCallback{
		tenantColumn: "tenant_id",
		tables:       set,
	}
}

// RegisterCallbacks registers the guard with GORM
func (gc *GuardCallback) RegisterCallbacks(db *gorm.DB) {
	_ = db.Callback().Query().Before("gorm:query").Register("tenant:guard_query", gc.check)
	_ = db.Callback().Update().Before("gorm:update").Register("tenant:guard_update", gc.check)
	_ = db.Callback().Delete().Before("gorm:delete").Register("tenant:guard_delete", gc.check)
	_ = db.Callback().Row().Before("gorm:row").Register("tenant:guard_row", gc.check)
}

func (gc *GuardCallback) check(db *gorm.DB) {
	if db.Statement.Unscoped {
		return
	}
	if !gc.guardedTable(db) {
		return
	}
	if gc.hasTenantCondition(db) {
		return
	}
	_ = db.AddError(ErrTenantRequired)
}

func (gc *GuardCallback) guardedTable(db *gorm.DB) bool {
	table := db.Statement.Table
	if table == "" && db.Statement.Schema != nil {
		table = db.Statement.Schema.Table
	}
	_, ok := gc.tables[table]
	return ok
}

// hasTenantCondition checks whether a tenant_id predicate is already present
func (gc *GuardCallback) hasTenantCondition(db *gorm.DB) bool {
	if whereClause, ok := db.Statement.Clauses["WHERE"]; ok {
		if where, ok := whereClause.Expression.(clause.Where); ok {
			for _, expr := range where.Exprs {
				if gc.exprContainsTenant(expr) {
					return true
				}
			}
		}
	}

	// Raw SQL built before callbacks run
	sql := db.Statement.SQL.String()
	return sql != "" && strings.Contains(sql, gc.tenantColumn)
}

func (gc *GuardCallback) exprContainsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == gc.tenantColumn
		}
		if col, ok := e.Column.(string); ok {
			return col == gc.tenantColumn
		}
	case clause.IN:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == gc.tenantColumn
		}
	case clause.Expr:
		return strings.Contains(e.SQL, gc.tenantColumn)
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if gc.exprContainsTenant(cond) {
				return true
			}
		}
	case clause.OrConditions:
		for _, cond := range e.Exprs {
			if gc.exprContainsTenant(cond) {
				return true
			}
		}
	}
	return false
}

// GuardedTables lists the tenant-owned tables of the stock ledger schema
func GuardedTables() []string {
	return []string{
		"stock_moves",
		"lots_or_serials",
		"inventory_levels",
		"reservations",
		"reservation_allocations",
		"stock_takes",
		"stock_take_lines",
		"adjustment_documents",
		"adjustment_lines",
	}
}

// EnableGuard wires the tenant guard for all ledger tables
func EnableGuard(db *gorm.DB) {
	NewGuardCallback(GuardedTables()...).RegisterCallbacks(db)
}
