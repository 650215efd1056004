// roles.go defines the built-in role names and helpers for role-claim checks.
// Authorization is OR-semantics across roles: an endpoint listing several
// acceptable roles grants access to a caller holding any one of them.
package auth

// Built-in role names seeded by migration.
const (
	RoleAdmin         = "Admin"
	RoleRecruiter     = "Recruiter"
	RoleHiringManager = "HiringManager"
	RoleInterviewer   = "Interviewer"
)

// HasRole checks if the caller's role claims include the required role.
func HasRole(userRoles []string, required string) bool {
	for _, r := range userRoles {
		if r == required {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the caller holds at least one of the required roles.
// An empty requirement always passes: it means "any authenticated caller".
func HasAnyRole(userRoles []string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, req := range required {
		if HasRole(userRoles, req) {
			return true
		}
	}
	return false
}
