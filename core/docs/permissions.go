package docs

// Role names match the profile rows verbatim.
const (
	RoleAdmin      = "admin"
	RoleAdminLocal = "admin_local"
	RoleArchivist  = "archiviste"
	RoleUser       = "utilisateur"
)

// The permission model is pure: every function takes role and departments
// as explicit arguments and reads no ambient state. The server-side policy
// remains the trust boundary; these checks fail fast before any write.

// IsDepartmentScoped reports whether the role is confined to one
// department. archiviste is aliased to admin_local here on purpose: a
// single predicate keeps the two roles from drifting apart.
func IsDepartmentScoped(role string) bool {
	return role == RoleAdminLocal || role == RoleArchivist
}

func CanCreate(role string) bool {
	return role == RoleAdmin || IsDepartmentScoped(role)
}

func CanEdit(role, userDept, docDept string) bool {
	if role == RoleAdmin {
		return true
	}
	if IsDepartmentScoped(role) {
		return userDept != "" && userDept == docDept
	}
	return false
}

func CanDelete(role, userDept, docDept string) bool {
	return CanEdit(role, userDept, docDept)
}

// CanViewDepartmentScoped filters query results: admin sees everything,
// everyone else only their own department.
func CanViewDepartmentScoped(role, userDept, docDept string) bool {
	if role == RoleAdmin {
		return true
	}
	return userDept != "" && userDept == docDept
}

// ResolveEffectiveDepartment forces the issuing department of a create or
// update to the caller's own department for scoped roles, regardless of
// what was requested. This is a hard security rule, not a default.
func ResolveEffectiveDepartment(role, requestedDept, userDept string) string {
	if IsDepartmentScoped(role) {
		return userDept
	}
	return requestedDept
}
