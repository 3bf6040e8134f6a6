package domain

import "strings"

// Role is the portal role snapshot an actor carries. Tickets record the
// creator's role at creation time; later role changes never rewrite history.
type Role string

const (
	RoleCoordinator   Role = "COORDINATOR"
	RoleAdministrator Role = "ADMINISTRATOR"
	// RoleAdministrative is an alternate spelling of the administrator role
	// that the portal's identity provider also issues.
	RoleAdministrative Role = "ADMINISTRATIVE"
	RolePatient        Role = "PATIENT"
	RoleProvider       Role = "PROVIDER"
)

// Actor is the authenticated caller of an operation, supplied by the
// identity boundary after token verification.
type Actor struct {
	ID   string
	Role Role
}

// NormalizeRole canonicalizes casing and collapses the administrative
// spelling onto the administrator role.
func NormalizeRole(s string) Role {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if role == RoleAdministrative {
		return RoleAdministrator
	}
	return role
}
