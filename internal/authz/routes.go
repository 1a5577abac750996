package authz

// Route capability requirements, declared per protected page rather
// than inferred. Routes that want the super_admin override list it
// explicitly; absence from this table means the route is public.
var routeRequirements = map[string]RoleSet{
	"/student-dashboard":    NewRoleSet(RoleStudent, RoleSuperAdmin),
	"/instructor-dashboard": NewRoleSet(RoleInstructor, RoleSuperAdmin),
	"/company-dashboard":    NewRoleSet(RoleCompanyAdmin, RoleSuperAdmin),
	"/employees":            NewRoleSet(RoleCompanyAdmin, RoleSuperAdmin),
	"/admin-dashboard":      NewRoleSet(RoleSuperAdmin),
	"/admin/users":          NewRoleSet(RoleSuperAdmin),
	"/admin/companies":      NewRoleSet(RoleSuperAdmin),
}

// RequirementFor returns the declared role set for a route path.
func RequirementFor(path string) (RoleSet, bool) {
	set, ok := routeRequirements[path]
	return set, ok
}
