package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

const (
	PermDocumentsView   Permission = "documents.view"
	PermDocumentsCreate Permission = "documents.create"
	PermDocumentsEdit   Permission = "documents.edit"
	PermDocumentsDelete Permission = "documents.delete"
	PermDocumentsShare  Permission = "documents.share"
	PermDepartmentsView Permission = "departments.view"
	PermDepartmentsEdit Permission = "departments.manage"
	PermCategoriesView  Permission = "categories.view"
	PermCategoriesEdit  Permission = "categories.manage"
	PermUsersManage     Permission = "users.manage"
	PermLogsView        Permission = "logs.view"
	PermStatsView       Permission = "stats.view"
)

// Route-level model: a role is granted a flat permission. Department scoping
// is not expressed here; it is enforced by the pure checks in core/docs,
// which run again inside every mutation (defense in depth).
const modelText = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj
`

// grants lists each role's direct permissions. archiviste carries no direct
// grants: it inherits admin_local wholesale via a grouping rule, so the two
// roles cannot drift apart silently.
var grants = map[string][]Permission{
	"admin": {
		PermDocumentsView, PermDocumentsCreate, PermDocumentsEdit, PermDocumentsDelete,
		PermDocumentsShare, PermDepartmentsView, PermDepartmentsEdit,
		PermCategoriesView, PermCategoriesEdit, PermUsersManage, PermLogsView, PermStatsView,
	},
	"admin_local": {
		PermDocumentsView, PermDocumentsCreate, PermDocumentsEdit, PermDocumentsDelete,
		PermDocumentsShare, PermDepartmentsView, PermCategoriesView, PermLogsView, PermStatsView,
	},
	"utilisateur": {
		PermDocumentsView, PermDepartmentsView, PermCategoriesView, PermStatsView,
	},
}

type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	for role, perms := range grants {
		for _, p := range perms {
			if _, err := e.AddPolicy(role, string(p)); err != nil {
				return nil, err
			}
		}
	}
	if _, err := e.AddGroupingPolicy("archiviste", "admin_local"); err != nil {
		return nil, err
	}
	return &Policy{enforcer: e}, nil
}

func (p *Policy) Allowed(role string, perm Permission) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	ok, err := p.enforcer.Enforce(role, string(perm))
	return err == nil && ok
}

// KnownRole reports whether the role name is one the policy was built with.
func KnownRole(role string) bool {
	switch role {
	case "admin", "admin_local", "archiviste", "utilisateur":
		return true
	}
	return false
}
