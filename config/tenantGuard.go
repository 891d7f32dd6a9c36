package config

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/oakcrm/lettings_backend/appctx"
)

// TenantGuardPlugin enforces multi-agency isolation by automatically
// scoping queries/updates/deletes to the request's agency_id when the
// model has an agency_id column.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include agency_id manually.
// - Internal bypass is explicit via a context flag.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
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

func tenantGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassTenantScope(ctx) {
		return
	}
	agencyId := agencyIdFromContext(ctx)
	if agencyId == "" {
		return
	}

	// Only apply if the current model/table includes an agency_id column.
	if db.Statement.Schema == nil {
		return
	}
	hasAgencyId := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "agency_id") {
			hasAgencyId = true
			break
		}
	}
	if !hasAgencyId {
		return
	}

	// Don't duplicate an explicit tenant filter.
	if whereHasAgencyId(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "agency_id"},
				Value:  agencyId,
			},
		},
	})
}

func agencyIdFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(appctx.ContextKeyAgencyId).(string); ok && v != "" {
		return v
	}
	return ""
}

func shouldBypassTenantScope(ctx context.Context) bool {
	if v, ok := ctx.Value(appctx.ContextKeySkipTenantScope).(bool); ok && v {
		return true
	}
	return false
}

func whereHasAgencyId(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasAgencyId(e) {
			return true
		}
	}
	return false
}

func exprHasAgencyId(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsAgencyId(v.Column)
	case clause.IN:
		return colIsAgencyId(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasAgencyId(x) {
				return true
			}
		}
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasAgencyId(x) {
				return true
			}
		}
	case clause.Expr:
		return strings.Contains(strings.ToLower(v.SQL), "agency_id")
	case clause.NamedExpr:
		return strings.Contains(strings.ToLower(v.SQL), "agency_id")
	}
	return false
}

func colIsAgencyId(col interface{}) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "agency_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "agency_id")
	}
	return false
}
