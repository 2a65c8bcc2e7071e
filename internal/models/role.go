package models

import "fmt"

// Role is a character's standing on an account. Roles are totally ordered:
// contributor < manager < owner.
type Role string

const (
	RoleNone        Role = ""
	RoleContributor Role = "contributor"
	RoleManager     Role = "manager"
	RoleOwner       Role = "owner"
)

var roleRank = map[Role]int{
	RoleContributor: 1,
	RoleManager:     2,
	RoleOwner:       3,
}

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRank[r]; !ok {
		return RoleNone, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Rank returns the privilege rank; RoleNone and unknown roles rank 0.
func (r Role) Rank() int {
	return roleRank[r]
}

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() > 0 && r.Rank() >= min.Rank()
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r.Rank() > 0
}
